package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/rs/xid"

	"github.com/livescribe/livescribe/internal/speech"
	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/language"
	"github.com/livescribe/livescribe/pkg/recognition"
)

const (
	defaultLiveTTL     = 30 * time.Minute
	reaperInterval     = time.Minute
	sseKeepAlive       = 15 * time.Second
	sseSubscriberQueue = 256
)

// LiveConfig configures the live session manager.
type LiveConfig struct {
	// Backend is the default recognizer backend name.
	Backend       string
	BackendConfig map[string]string

	Language        string
	EnhanceMinChars int
	RestartGrace    time.Duration
	AudioInterval   time.Duration

	// TTL is how long an idle session survives without activity.
	TTL time.Duration
}

// LiveManager hosts the live recognition sessions driven over HTTP.
type LiveManager struct {
	cfg       LiveConfig
	enricher  recognition.Enricher
	detector  recognition.Detector
	publisher *events.Publisher
	pool      workerpool.WorkerPool

	mu       sync.RWMutex
	sessions map[string]*recognition.Session
}

// NewLiveManager creates a live session manager. enricher, detector and
// pool may be nil.
func NewLiveManager(cfg LiveConfig, enricher recognition.Enricher, detector recognition.Detector, pub *events.Publisher, pool workerpool.WorkerPool) *LiveManager {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultLiveTTL
	}
	if cfg.Language == "" {
		cfg.Language = language.Default
	}
	return &LiveManager{
		cfg:       cfg,
		enricher:  enricher,
		detector:  detector,
		publisher: pub,
		pool:      pool,
		sessions:  make(map[string]*recognition.Session),
	}
}

// RegisterRoutes registers the live session routes on the given mux.
func (m *LiveManager) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/live", m.Create)
	mux.HandleFunc("GET /api/live", m.List)
	mux.HandleFunc("GET /api/live/{id}", m.Get)
	mux.HandleFunc("DELETE /api/live/{id}", m.Delete)
	mux.HandleFunc("POST /api/live/{id}/start", m.Start)
	mux.HandleFunc("POST /api/live/{id}/stop", m.Stop)
	mux.HandleFunc("POST /api/live/{id}/clear", m.Clear)
	mux.HandleFunc("POST /api/live/{id}/enhanced-mode", m.ToggleEnhancedMode)
	mux.HandleFunc("POST /api/live/{id}/language", m.SwitchLanguage)
	mux.HandleFunc("POST /api/live/{id}/results", m.PushResults)
	mux.HandleFunc("POST /api/live/{id}/audio", m.PushAudio)
	mux.HandleFunc("GET /api/live/{id}/events", m.Events)
}

// Open creates a live session.
func (m *LiveManager) Open(req CreateLiveRequest) (*recognition.Session, error) {
	backend := req.Backend
	if backend == "" {
		backend = m.cfg.Backend
	}
	rec, err := speech.New(backend, m.cfg.BackendConfig)
	if err != nil {
		return nil, fmt.Errorf("recognizer %q: %w", backend, err)
	}

	lang := req.Language
	if lang == "" {
		lang = m.cfg.Language
	}

	opts := []recognition.Option{
		recognition.WithPublisher(m.publisher),
		recognition.WithPool(m.pool),
	}
	if rec != nil {
		opts = append(opts, recognition.WithRecognizer(rec))
	}
	if m.enricher != nil {
		opts = append(opts, recognition.WithEnricher(m.enricher))
	}
	if m.detector != nil {
		opts = append(opts, recognition.WithDetector(m.detector))
	}

	s, err := recognition.NewSession(recognition.Config{
		ID:                 xid.New().String(),
		Language:           lang,
		EnhancedMode:       req.EnhancedMode,
		EnhanceMinChars:    m.cfg.EnhanceMinChars,
		RestartGrace:       m.cfg.RestartGrace,
		AudioLevelInterval: m.cfg.AudioInterval,
	}, opts...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Lookup returns the live session with the given id.
func (m *LiveManager) Lookup(id string) (*recognition.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// CloseSession stops and removes a live session.
func (m *LiveManager) CloseSession(ctx context.Context, id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	if err := s.Close(ctx); err != nil {
		slog.WarnContext(ctx, "closing live session", slog.String("session_id", id), slog.String("error", err.Error()))
	}
	return true
}

// StartReaper begins the background reaper of idle sessions.
func (m *LiveManager) StartReaper(ctx context.Context) {
	reap := func() {
		ticker := time.NewTicker(reaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reapIdle(ctx, time.Now())
			}
		}
	}
	if m.pool != nil {
		if err := m.pool.Submit(ctx, reap); err == nil {
			return
		}
	}
	go reap()
}

func (m *LiveManager) reapIdle(ctx context.Context, now time.Time) int {
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.cfg.TTL {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		slog.Warn("reaping idle live session", slog.String("session_id", id))
		m.CloseSession(ctx, id)
	}
	return len(stale)
}

// Shutdown closes every live session.
func (m *LiveManager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.CloseSession(ctx, id)
	}
}

// Create handles POST /api/live.
func (m *LiveManager) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLiveRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	s, err := m.Open(req)
	if err != nil {
		if errors.Is(err, recognition.ErrUnknownLanguage) {
			writeError(w, http.StatusBadRequest, "Idioma não suportado")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

// List handles GET /api/live.
func (m *LiveManager) List(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	snaps := make([]recognition.Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		snaps = append(snaps, s.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	writeJSON(w, http.StatusOK, snaps)
}

// Get handles GET /api/live/{id}.
func (m *LiveManager) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Delete handles DELETE /api/live/{id}.
func (m *LiveManager) Delete(w http.ResponseWriter, r *http.Request) {
	if !m.CloseSession(r.Context(), r.PathValue("id")) {
		writeError(w, http.StatusNotFound, msgLiveNotFound)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgLiveClosed})
}

// Start handles POST /api/live/{id}/start.
func (m *LiveManager) Start(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	if err := s.Start(r.Context()); err != nil {
		if errors.Is(err, recognition.ErrUnsupported) {
			writeError(w, http.StatusNotImplemented, msgUnsupported)
			return
		}
		serverError(w, r, err, "Erro ao iniciar o reconhecimento")
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Stop handles POST /api/live/{id}/stop.
func (m *LiveManager) Stop(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	if err := s.Stop(r.Context()); err != nil {
		logWarn(r, err, "recognizer did not stop cleanly")
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Clear handles POST /api/live/{id}/clear.
func (m *LiveManager) Clear(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	s.Clear(r.Context())
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// ToggleEnhancedMode handles POST /api/live/{id}/enhanced-mode.
func (m *LiveManager) ToggleEnhancedMode(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	s.ToggleEnhancedMode(r.Context())
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// SwitchLanguage handles POST /api/live/{id}/language.
func (m *LiveManager) SwitchLanguage(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	var req SwitchLanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.SwitchLanguage(r.Context(), req.Code); err != nil {
		if errors.Is(err, recognition.ErrUnknownLanguage) {
			writeError(w, http.StatusBadRequest, "Idioma não suportado")
			return
		}
		serverError(w, r, err, "Erro ao trocar idioma")
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// PushResults handles POST /api/live/{id}/results. The session must use the
// push recognizer.
func (m *LiveManager) PushResults(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	push, ok := s.Recognizer().(*speech.Push)
	if !ok {
		writeError(w, http.StatusConflict, "Sessão não aceita resultados externos")
		return
	}

	var req ResultsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev := recognition.Event{Results: make([]recognition.Result, 0, len(req.Results))}
	for _, res := range req.Results {
		ev.Results = append(ev.Results, recognition.Result{Transcript: res.Transcript, IsFinal: res.IsFinal})
	}
	switch req.Error {
	case "":
	case "aborted":
		ev.Err = recognition.ErrAborted
	default:
		ev.Err = errors.New(req.Error)
	}

	if err := push.Push(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, speech.ErrNotRunning):
			writeError(w, http.StatusConflict, "Gravação não iniciada")
		case errors.Is(err, speech.ErrBusy):
			writeError(w, http.StatusServiceUnavailable, "Sessão ocupada, tente novamente")
		default:
			serverError(w, r, err, "Erro ao entregar resultados")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, MessageResponse{Message: "Resultados recebidos"})
}

// PushAudio handles POST /api/live/{id}/audio. The body is raw 16 kHz
// 16-bit mono PCM streamed into the session's recognizer.
func (m *LiveManager) PushAudio(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	sink, ok := s.Recognizer().(io.Writer)
	if !ok {
		writeError(w, http.StatusConflict, "Sessão não aceita áudio")
		return
	}

	n, err := io.Copy(sink, r.Body)
	if err != nil {
		switch {
		case errors.Is(err, speech.ErrNotRunning), errors.Is(err, io.ErrClosedPipe), errors.Is(err, recognition.ErrAborted):
			writeError(w, http.StatusConflict, "Gravação não iniciada")
		default:
			serverError(w, r, err, "Erro ao receber áudio")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int64{"bytes": n})
}

// Events handles GET /api/live/{id}/events as a server-sent event stream.
// The first event is a snapshot of the session.
func (m *LiveManager) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := m.session(w, r)
	if !ok {
		return
	}
	if m.publisher == nil {
		writeError(w, http.StatusNotImplemented, "Eventos indisponíveis")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming não suportado")
		return
	}

	subID := "sse-" + xid.New().String()
	ch := m.publisher.Subscribe(subID, sseSubscriberQueue)
	defer m.publisher.Unsubscribe(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "snapshot", s.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case env, open := <-ch:
			if !open {
				return
			}
			if env.SessionID != s.ID() {
				continue
			}
			if err := writeSSE(w, string(env.Type), env); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func (m *LiveManager) session(w http.ResponseWriter, r *http.Request) (*recognition.Session, bool) {
	s, ok := m.Lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, msgLiveNotFound)
	}
	return s, ok
}
