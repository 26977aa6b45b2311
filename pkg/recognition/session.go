// Package recognition implements the live recognition session: the state
// machine that drives a speech recognizer, accumulates its results into a
// transcript and reconciles asynchronous AI enrichment with the growing
// buffer.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/rs/xid"

	"github.com/livescribe/livescribe/pkg/enrich"
	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/language"
)

// State is the recording state of a session.
type State string

const (
	Idle      State = "idle"
	Recording State = "recording"
)

const (
	defaultRestartGrace       = 500 * time.Millisecond
	defaultTickInterval       = time.Second
	defaultAudioLevelInterval = 150 * time.Millisecond
	defaultEnhanceMinChars    = 20
	defaultEnrichTimeout      = 30 * time.Second
)

// Enricher performs the background AI calls a session makes for finalized
// segments.
type Enricher interface {
	DetectLanguage(ctx context.Context, text string) (enrich.LanguageDetection, error)
	Enhance(ctx context.Context, text, targetLanguage string) (enrich.Enhancement, error)
}

// Detector is the offline language heuristic used when the enricher fails.
type Detector interface {
	Detect(text string) (language.Language, bool)
}

// Config holds the tunables of a session. Zero values select defaults.
type Config struct {
	ID           string
	Language     string
	EnhancedMode bool

	// EnhanceMinChars is the segment length a finalized segment must exceed
	// to be sent for enhancement.
	EnhanceMinChars    int
	RestartGrace       time.Duration
	TickInterval       time.Duration
	AudioLevelInterval time.Duration
	EnrichTimeout      time.Duration
}

// Option configures the collaborators of a session.
type Option func(*Session)

// WithRecognizer sets the speech recognizer. Without one Start reports
// ErrUnsupported.
func WithRecognizer(r Recognizer) Option { return func(s *Session) { s.recognizer = r } }

// WithEnricher sets the AI enricher used for detection and enhancement.
func WithEnricher(e Enricher) Option { return func(s *Session) { s.enricher = e } }

// WithDetector sets the fallback language heuristic.
func WithDetector(d Detector) Option { return func(s *Session) { s.detector = d } }

// WithPublisher sets the event publisher.
func WithPublisher(p *events.Publisher) Option { return func(s *Session) { s.publisher = p } }

// WithNotifier sets the user notifier. Defaults to publishing notification
// events.
func WithNotifier(n Notifier) Option { return func(s *Session) { s.notifier = n } }

// WithPool runs background work on a frame worker pool.
func WithPool(p workerpool.WorkerPool) Option { return func(s *Session) { s.pool = p } }

// Session is a single-user recognition session. All state is guarded by mu
// and mutated only by the session's own methods and background tasks.
type Session struct {
	id  string
	cfg Config

	recognizer Recognizer
	enricher   Enricher
	detector   Detector
	publisher  *events.Publisher
	notifier   Notifier
	pool       workerpool.WorkerPool

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	language      string
	enhancedMode  bool
	detected      map[string]struct{}
	transcript    transcript
	seconds       int
	audioLevel    int
	epoch         uint64
	lastDetection *enrich.LanguageDetection
	lastErr       string
	lastActivity  time.Time
	closed        bool

	// run identifies the active recognition run; results from older runs
	// are ignored.
	run       uint64
	runCancel context.CancelFunc

	restart      *time.Timer
	restartToken uint64
}

// NewSession creates an idle session.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if cfg.ID == "" {
		cfg.ID = xid.New().String()
	}
	if cfg.Language == "" {
		cfg.Language = language.Default
	}
	if _, ok := language.Lookup(cfg.Language); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, cfg.Language)
	}
	if cfg.EnhanceMinChars <= 0 {
		cfg.EnhanceMinChars = defaultEnhanceMinChars
	}
	if cfg.RestartGrace <= 0 {
		cfg.RestartGrace = defaultRestartGrace
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.AudioLevelInterval <= 0 {
		cfg.AudioLevelInterval = defaultAudioLevelInterval
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = defaultEnrichTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           cfg.ID,
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		state:        Idle,
		language:     cfg.Language,
		enhancedMode: cfg.EnhancedMode,
		detected:     map[string]struct{}{cfg.Language: {}},
		lastActivity: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.detector == nil {
		s.detector = language.DefaultHeuristic()
	}
	if s.notifier == nil {
		s.notifier = EventNotifier{Publisher: s.publisher, SessionID: s.id}
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Recognizer returns the recognizer the session drives.
func (s *Session) Recognizer() Recognizer { return s.recognizer }

// LastActivity returns the time of the last command or recognizer event.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Start begins continuous recognition in the current language. Starting a
// recording session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	if s.recognizer == nil {
		s.notifier.Notify(ctx, LevelError, "Reconhecimento de voz não suportado neste ambiente.")
		return ErrUnsupported
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSessionClosed
	}
	s.cancelRestartLocked()
	if s.state == Recording {
		s.mu.Unlock()
		return nil
	}

	runCtx, runCancel := context.WithCancel(s.ctx)
	ch, err := s.recognizer.Start(runCtx, Options{
		Language:       s.language,
		Continuous:     true,
		InterimResults: true,
	})
	if err != nil {
		runCancel()
		s.mu.Unlock()
		if errors.Is(err, ErrUnsupported) {
			s.notifier.Notify(ctx, LevelError, "Reconhecimento de voz não suportado neste ambiente.")
			return ErrUnsupported
		}
		s.notifier.Notify(ctx, LevelError, "Erro ao iniciar o reconhecimento: "+err.Error())
		return fmt.Errorf("start recognizer: %w", err)
	}

	s.run++
	run := s.run
	s.runCancel = runCancel
	s.state = Recording
	s.lastErr = ""
	s.lastActivity = time.Now()
	lang := s.language
	s.mu.Unlock()

	s.spawn(runCtx, func() { s.consume(runCtx, run, ch) })
	s.spawn(runCtx, func() { s.tickElapsed(runCtx, run) })
	s.spawn(runCtx, func() { s.sampleAudioLevel(runCtx, run) })

	s.emit(ctx, events.SessionStarted, events.SessionStateData{Language: lang})
	return nil
}

// Stop halts recognition, cancels the timers and resets the audio level.
// The uncommitted interim tail is discarded. Stopping an idle session is a
// no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.cancelRestartLocked()
	if s.state != Recording {
		s.mu.Unlock()
		return nil
	}
	lang := s.language
	err := s.stopLocked()
	s.mu.Unlock()

	if err != nil {
		slog.WarnContext(ctx, "recognizer stop failed",
			slog.String("session_id", s.id), slog.String("error", err.Error()))
	}
	s.emit(ctx, events.SessionStopped, events.SessionStateData{Language: lang, Reason: "stopped"})
	return err
}

// Clear empties the transcript and resets counters and detected languages.
// In-flight enrichment results are dropped. The recording state is kept,
// including a restart pending after a language switch.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	s.transcript.reset()
	s.seconds = 0
	s.detected = map[string]struct{}{s.language: {}}
	s.lastDetection = nil
	s.epoch++
	s.lastActivity = time.Now()
	version := s.transcript.version
	s.mu.Unlock()

	s.emit(ctx, events.TranscriptCleared, events.TranscriptData{Version: version})
}

// SwitchLanguage changes the recognition language. A recording session is
// stopped and restarted in the new language after the restart grace period.
// A session waiting on such a restart counts as recording: the pending
// restart is replaced and the grace period starts over.
func (s *Session) SwitchLanguage(ctx context.Context, code string) error {
	lang, ok := language.Lookup(code)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLanguage, code)
	}

	s.mu.Lock()
	pending := s.restart != nil
	s.cancelRestartLocked()
	from := s.language
	s.language = lang.Code
	s.epoch++
	s.lastActivity = time.Now()
	wasRecording := s.state == Recording
	var stopErr error
	if wasRecording {
		stopErr = s.stopLocked()
	}
	if wasRecording || pending {
		token := s.restartToken
		s.restart = time.AfterFunc(s.cfg.RestartGrace, func() { s.restartAfterSwitch(token) })
	}
	s.mu.Unlock()

	if wasRecording {
		if stopErr != nil {
			slog.WarnContext(ctx, "recognizer stop failed during language switch",
				slog.String("session_id", s.id), slog.String("error", stopErr.Error()))
		}
		s.emit(ctx, events.SessionStopped, events.SessionStateData{Language: from, Reason: "language_switch"})
	}

	s.emit(ctx, events.LanguageSwitched, events.LanguageSwitchData{From: from, To: lang.Code, Name: lang.Name})
	s.notifier.Notify(ctx, LevelInfo, "Idioma alterado para "+lang.Name)
	return nil
}

// ToggleEnhancedMode flips enhanced mode and returns the new value.
func (s *Session) ToggleEnhancedMode(ctx context.Context) bool {
	s.mu.Lock()
	s.enhancedMode = !s.enhancedMode
	enabled := s.enhancedMode
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.emit(ctx, events.EnhancedModeToggled, events.EnhancedModeData{Enabled: enabled})
	if enabled {
		s.notifier.Notify(ctx, LevelInfo, "Modo aprimorado ativado")
	} else {
		s.notifier.Notify(ctx, LevelInfo, "Modo aprimorado desativado")
	}
	return enabled
}

// Close stops the session and cancels all of its background work.
func (s *Session) Close(ctx context.Context) error {
	err := s.Stop(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return err
}

var errSessionClosed = errors.New("session closed")

func (s *Session) restartAfterSwitch(token uint64) {
	s.mu.Lock()
	if token != s.restartToken || s.closed {
		s.mu.Unlock()
		return
	}
	s.restart = nil
	s.mu.Unlock()

	if err := s.Start(s.ctx); err != nil {
		slog.Warn("restart after language switch failed",
			slog.String("session_id", s.id), slog.String("error", err.Error()))
	}
}

// cancelRestartLocked invalidates any pending restart.
func (s *Session) cancelRestartLocked() {
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}
	s.restartToken++
}

// stopLocked moves the session to Idle, cancels the current run and stops
// the recognizer.
func (s *Session) stopLocked() error {
	s.state = Idle
	s.audioLevel = 0
	s.transcript.interim = ""
	s.run++
	if s.runCancel != nil {
		s.runCancel()
		s.runCancel = nil
	}
	s.lastActivity = time.Now()
	if err := s.recognizer.Stop(); err != nil && !errors.Is(err, ErrAborted) {
		return fmt.Errorf("stop recognizer: %w", err)
	}
	return nil
}

// spawn runs fn on the worker pool when one is configured.
func (s *Session) spawn(ctx context.Context, fn func()) {
	if s.pool != nil {
		if err := s.pool.Submit(ctx, fn); err == nil {
			return
		}
	}
	go fn()
}

func (s *Session) emit(ctx context.Context, eventType events.EventType, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, eventType, s.id, data); err != nil {
		slog.WarnContext(ctx, "event not published",
			slog.String("session_id", s.id),
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()))
	}
}

func (s *Session) emitLocal(eventType events.EventType, data any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.EmitLocal(eventType, s.id, data)
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	ID                string                    `json:"id"`
	State             State                     `json:"state"`
	Recording         bool                      `json:"isRecording"`
	Language          string                    `json:"currentLanguage"`
	LanguageName      string                    `json:"languageName"`
	EnhancedMode      bool                      `json:"enhancedMode"`
	DetectedLanguages []string                  `json:"detectedLanguages"`
	Transcript        string                    `json:"transcript"`
	Interim           string                    `json:"interim"`
	DisplayText       string                    `json:"displayText"`
	Version           uint64                    `json:"version"`
	WordCount         int                       `json:"wordCount"`
	RecordingSeconds  int                       `json:"recordingTimeSeconds"`
	AudioLevel        int                       `json:"audioLevelPercent"`
	LastDetection     *enrich.LanguageDetection `json:"lastDetection,omitempty"`
	LastError         string                    `json:"lastError,omitempty"`
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	detected := make([]string, 0, len(s.detected))
	for code := range s.detected {
		detected = append(detected, code)
	}
	sort.Strings(detected)

	snap := Snapshot{
		ID:                s.id,
		State:             s.state,
		Recording:         s.state == Recording,
		Language:          s.language,
		LanguageName:      language.DisplayName(s.language),
		EnhancedMode:      s.enhancedMode,
		DetectedLanguages: detected,
		Transcript:        s.transcript.committed,
		Interim:           s.transcript.interim,
		DisplayText:       s.transcript.display(),
		Version:           s.transcript.version,
		WordCount:         s.transcript.wordCount(),
		RecordingSeconds:  s.seconds,
		AudioLevel:        s.audioLevel,
		LastError:         s.lastErr,
	}
	if s.lastDetection != nil {
		d := *s.lastDetection
		snap.LastDetection = &d
	}
	return snap
}
