package recognition

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported means no speech recognition capability is available.
	ErrUnsupported = errors.New("speech recognition is not supported")

	// ErrAborted reports a user-initiated cancellation of recognition. It is
	// never surfaced as a failure.
	ErrAborted = errors.New("recognition aborted")

	// ErrUnknownLanguage is returned when switching to an unsupported language.
	ErrUnknownLanguage = errors.New("unsupported language")
)

// Options configures one recognition run.
type Options struct {
	Language       string
	Continuous     bool
	InterimResults bool
}

// Result is one recognition hypothesis.
type Result struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

// Event is a single recognizer callback. It carries zero or more final and
// interim results, or an error.
type Event struct {
	Results []Result
	Err     error
}

// Recognizer is the platform speech recognition capability. Start begins a
// run and returns the channel its events are delivered on; the channel is
// closed when the run ends. A recognizer may be started again after Stop.
type Recognizer interface {
	Start(ctx context.Context, opts Options) (<-chan Event, error)
	Stop() error
}

// LevelMeter is implemented by recognizers that can measure the input level
// of the audio they receive. Sessions without one sample a synthetic level.
type LevelMeter interface {
	AudioLevel() int
}
