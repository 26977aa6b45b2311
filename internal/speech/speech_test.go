package speech

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/livescribe/livescribe/pkg/recognition"
)

func tone(ms int, amplitude float64) []byte {
	n := sampleRate * ms / 1000
	pcm := make([]byte, n*bytesPerSample)
	for i := 0; i < n; i++ {
		s := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/sampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

func TestPushRecognizer(t *testing.T) {
	p := NewPush()
	ctx := context.Background()

	if err := p.Push(ctx, recognition.Event{}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Push before Start: err = %v", err)
	}

	ch, err := p.Start(ctx, recognition.Options{Language: "pt-BR"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ev := recognition.Event{Results: []recognition.Result{{Transcript: "oi", IsFinal: true}}}
	if err := p.Push(ctx, ev); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got := <-ch
	if len(got.Results) != 1 || got.Results[0].Transcript != "oi" {
		t.Errorf("event = %+v", got)
	}

	for i := 0; i < cap(ch); i++ {
		_ = p.Push(ctx, ev)
	}
	if err := p.Push(ctx, ev); !errors.Is(err, ErrBusy) {
		t.Errorf("Push to full buffer: err = %v, want ErrBusy", err)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for range ch {
	}
	if err := p.Push(ctx, ev); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Push after Stop: err = %v", err)
	}
}

func TestTranscriptionSegmentsUtterances(t *testing.T) {
	var (
		mu    sync.Mutex
		wavs  [][]byte
		langs []string
	)
	fn := func(_ context.Context, wav []byte, lang string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		wavs = append(wavs, wav)
		langs = append(langs, lang)
		return " bom dia ", nil
	}
	r := NewTranscription(fn, DefaultVADConfig())

	ch, err := r.Start(context.Background(), recognition.Options{Language: "pt-BR"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		_, _ = r.Write(tone(600, 8000))
		_, _ = r.Write(make([]byte, frameBytes*30))
	}()

	select {
	case ev := <-ch:
		if ev.Err != nil {
			t.Fatalf("event error: %v", ev.Err)
		}
		if len(ev.Results) != 1 || ev.Results[0].Transcript != "bom dia" || !ev.Results[0].IsFinal {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transcription event")
	}
	_ = r.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(wavs) != 1 {
		t.Fatalf("transcribe calls = %d, want 1", len(wavs))
	}
	if string(wavs[0][:4]) != "RIFF" || string(wavs[0][8:12]) != "WAVE" || len(wavs[0]) <= 44 {
		t.Errorf("utterance is not a WAV file")
	}
	if langs[0] != "pt-BR" {
		t.Errorf("language = %q, want pt-BR", langs[0])
	}
}

func TestTranscriptionErrorEndsRun(t *testing.T) {
	r := NewTranscription(func(context.Context, []byte, string) (string, error) {
		return "", errors.New("quota exceeded")
	}, DefaultVADConfig())

	ch, err := r.Start(context.Background(), recognition.Options{Language: "en-US"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	go func() {
		_, _ = r.Write(tone(600, 8000))
		_, _ = r.Write(make([]byte, frameBytes*30))
	}()

	ev, ok := <-ch
	if !ok || ev.Err == nil {
		t.Fatalf("expected an error event, got %+v (open=%v)", ev, ok)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should close after an error")
	}
	_ = r.Stop()
}

func TestTranscriptionNotRunning(t *testing.T) {
	r := NewTranscription(func(context.Context, []byte, string) (string, error) { return "", nil }, DefaultVADConfig())
	if _, err := r.Write([]byte{0, 0}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Write before Start: err = %v", err)
	}
	if _, err := NewTranscription(nil, DefaultVADConfig()).Start(context.Background(), recognition.Options{}); !errors.Is(err, recognition.ErrUnsupported) {
		t.Errorf("Start without transcriber: err = %v", err)
	}
}

func TestVADLevel(t *testing.T) {
	v := newVAD(DefaultVADConfig())
	v.process(make([]byte, frameBytes))
	if v.level() != 0 {
		t.Errorf("silence level = %d", v.level())
	}
	v.process(tone(frameMs, 30000))
	if l := v.level(); l < 90 || l > 100 {
		t.Errorf("loud level = %d", l)
	}
}

func TestNewRecognizer(t *testing.T) {
	r, err := New(None, nil)
	if err != nil || r != nil {
		t.Errorf("New(none) = %v, %v", r, err)
	}
	if r, err := New("push", nil); err != nil || r == nil {
		t.Errorf("New(push) = %v, %v", r, err)
	}
	if _, err := New("openai", map[string]string{}); err == nil {
		t.Error("openai without api key should fail")
	}
	if _, err := New("carrier-pigeon", nil); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestOpenAITranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "es" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file: %v", err)
		}
		_, _ = w.Write([]byte(`{"text":"hola"}`))
	}))
	defer srv.Close()

	fn := OpenAITranscriber(srv.Client(), srv.URL+"/", "key", "whisper-1")
	text, err := fn(context.Background(), encodeWAV(tone(100, 1000)), "es-ES")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hola" {
		t.Errorf("text = %q", text)
	}
}

func TestDeepgramTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listen" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Token dg" || r.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("headers = %v", r.Header)
		}
		if q := r.URL.Query(); q.Get("model") != "nova-2" || q.Get("language") != "pt-BR" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"olá","confidence":0.9}]}]}}`))
	}))
	defer srv.Close()

	text, err := DeepgramTranscriber(srv.Client(), srv.URL, "dg", "nova-2")(context.Background(), encodeWAV(tone(100, 1000)), "pt-BR")
	if err != nil || text != "olá" {
		t.Fatalf("transcribe = %q, %v", text, err)
	}
}

func TestGoogleTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech:recognize" || r.URL.Query().Get("key") != "gk" {
			t.Errorf("url = %s", r.URL)
		}
		var req googleRecognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Config.LanguageCode != "en-US" || req.Config.SampleRateHertz != 16000 || req.Audio.Content == "" {
			t.Errorf("request = %+v", req.Config)
		}
		_, _ = w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"hello"}]},{"alternatives":[{"transcript":" world"}]}]}`))
	}))
	defer srv.Close()

	text, err := GoogleTranscriber(srv.Client(), srv.URL+"/", "gk", "")(context.Background(), encodeWAV(tone(100, 1000)), "en-US")
	if err != nil || text != "hello world" {
		t.Fatalf("transcribe = %q, %v", text, err)
	}
}

func TestTranscriberHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := DeepgramTranscriber(srv.Client(), srv.URL, "dg", "nova-2")(context.Background(), nil, "")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want HTTP 429", err)
	}
}
