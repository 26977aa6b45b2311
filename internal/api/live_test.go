package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/recognition"
)

func newLiveServer(t *testing.T, backend string) (*http.ServeMux, *LiveManager) {
	t.Helper()
	live := NewLiveManager(LiveConfig{Backend: backend}, nil, nil, events.NewLocalPublisher("test"), nil)
	t.Cleanup(func() { live.Shutdown(context.Background()) })

	mux := http.NewServeMux()
	live.RegisterRoutes(mux)
	return mux, live
}

func createLive(t *testing.T, mux http.Handler, body string) recognition.Snapshot {
	t.Helper()
	rec := do(t, mux, http.MethodPost, "/api/live", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create live status = %d, body %s", rec.Code, rec.Body)
	}
	return decodeBody[recognition.Snapshot](t, rec)
}

func waitForSnapshot(t *testing.T, mux http.Handler, id string, cond func(recognition.Snapshot) bool) recognition.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := decodeBody[recognition.Snapshot](t, do(t, mux, http.MethodGet, "/api/live/"+id, ""))
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached, last snapshot %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLiveSessionLifecycle(t *testing.T) {
	mux, _ := newLiveServer(t, "push")

	snap := createLive(t, mux, `{"language":"pt-BR"}`)
	if snap.State != recognition.Idle || snap.Language != "pt-BR" {
		t.Fatalf("new snapshot = %+v", snap)
	}
	id := snap.ID

	rec := do(t, mux, http.MethodPost, "/api/live/"+id+"/results", `{"results":[{"transcript":"cedo","isFinal":true}]}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("results before start status = %d, want 409", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decodeBody[recognition.Snapshot](t, rec); !got.Recording {
		t.Errorf("after start recording = false")
	}

	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/results", `{"results":[{"transcript":"olá pessoal","isFinal":true}]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("results status = %d, body %s", rec.Code, rec.Body)
	}
	waitForSnapshot(t, mux, id, func(s recognition.Snapshot) bool { return s.Transcript == "olá pessoal" })

	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/results", `{"results":[{"transcript":"como vai","isFinal":false}]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("interim results status = %d", rec.Code)
	}
	waitForSnapshot(t, mux, id, func(s recognition.Snapshot) bool { return s.Interim == "como vai" })

	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/enhanced-mode", "")
	if got := decodeBody[recognition.Snapshot](t, rec); !got.EnhancedMode {
		t.Error("enhanced mode not toggled on")
	}

	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/stop", "")
	stopped := decodeBody[recognition.Snapshot](t, rec)
	if stopped.Recording || stopped.Interim != "" || stopped.Transcript != "olá pessoal" {
		t.Errorf("after stop = %+v", stopped)
	}

	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/clear", "")
	if got := decodeBody[recognition.Snapshot](t, rec); got.Transcript != "" || got.WordCount != 0 {
		t.Errorf("after clear = %+v", got)
	}

	rec = do(t, mux, http.MethodDelete, "/api/live/"+id, "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = do(t, mux, http.MethodGet, "/api/live/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestLiveRecognizerErrorStopsSession(t *testing.T) {
	mux, _ := newLiveServer(t, "push")
	id := createLive(t, mux, "").ID

	do(t, mux, http.MethodPost, "/api/live/"+id+"/start", "")
	rec := do(t, mux, http.MethodPost, "/api/live/"+id+"/results", `{"error":"network"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("results status = %d", rec.Code)
	}
	snap := waitForSnapshot(t, mux, id, func(s recognition.Snapshot) bool { return !s.Recording })
	if snap.LastError == "" {
		t.Error("recognizer error not recorded")
	}
}

func TestLiveUnsupportedBackend(t *testing.T) {
	mux, _ := newLiveServer(t, "none")
	id := createLive(t, mux, "").ID

	rec := do(t, mux, http.MethodPost, "/api/live/"+id+"/start", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("start status = %d, want 501", rec.Code)
	}
	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/results", `{"results":[]}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("results status = %d, want 409", rec.Code)
	}
	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/audio", "\x00\x00")
	if rec.Code != http.StatusConflict {
		t.Errorf("audio status = %d, want 409", rec.Code)
	}
}

func TestLiveLanguage(t *testing.T) {
	mux, _ := newLiveServer(t, "push")

	rec := do(t, mux, http.MethodPost, "/api/live", `{"language":"xx-YY"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("create with unknown language status = %d, want 400", rec.Code)
	}

	id := createLive(t, mux, "").ID
	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/language", `{"code":"xx-YY"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("switch to unknown language status = %d, want 400", rec.Code)
	}

	rec = do(t, mux, http.MethodPost, "/api/live/"+id+"/language", `{"code":"en-US"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("switch status = %d", rec.Code)
	}
	snap := decodeBody[recognition.Snapshot](t, rec)
	if snap.Language != "en-US" || snap.Recording {
		t.Errorf("after idle switch = %+v", snap)
	}
}

func TestLiveNotFound(t *testing.T) {
	mux, _ := newLiveServer(t, "push")

	for _, path := range []string{"/start", "/stop", "/clear", "/enhanced-mode"} {
		rec := do(t, mux, http.MethodPost, "/api/live/missing"+path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}
	if rec := do(t, mux, http.MethodDelete, "/api/live/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", rec.Code)
	}
}

func TestLiveReapIdle(t *testing.T) {
	mux, live := newLiveServer(t, "push")
	live.cfg.TTL = time.Minute
	id := createLive(t, mux, "").ID

	if n := live.reapIdle(context.Background(), time.Now()); n != 0 {
		t.Fatalf("reaped %d fresh sessions", n)
	}
	if n := live.reapIdle(context.Background(), time.Now().Add(2*time.Minute)); n != 1 {
		t.Fatalf("reaped %d sessions, want 1", n)
	}
	if _, ok := live.Lookup(id); ok {
		t.Error("reaped session still registered")
	}
}

func TestLiveEventStream(t *testing.T) {
	mux, _ := newLiveServer(t, "push")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	id := createLive(t, mux, "").ID
	do(t, mux, http.MethodPost, "/api/live/"+id+"/start", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/live/"+id+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read event: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "" && event != "":
				return event, data
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	event, data := next()
	if event != "snapshot" {
		t.Fatalf("first event = %q, want snapshot", event)
	}
	var snap recognition.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil || snap.ID != id {
		t.Fatalf("snapshot = %s (%v)", data, err)
	}

	do(t, mux, http.MethodPost, "/api/live/"+id+"/results", `{"results":[{"transcript":"tudo certo","isFinal":true}]}`)
	for {
		event, data = next()
		if event != string(events.TranscriptUpdated) {
			continue
		}
		var env events.Envelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			t.Fatalf("envelope: %v", err)
		}
		var td events.TranscriptData
		if err := json.Unmarshal(env.Data, &td); err != nil {
			t.Fatalf("transcript data: %v", err)
		}
		if env.SessionID != id || td.Transcript != "tudo certo" {
			t.Errorf("transcript event = %+v %+v", env, td)
		}
		return
	}
}
