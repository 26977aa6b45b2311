package tui

import "github.com/livescribe/livescribe/pkg/recognition"

// ConnectedMsg is sent once the live session exists and its event stream
// is open.
type ConnectedMsg struct {
	Stream   *Stream
	Snapshot recognition.Snapshot
}

// ConnectErrorMsg is sent when the server cannot be reached.
type ConnectErrorMsg struct {
	Err error
}

// StreamEventMsg wraps one server-sent event.
type StreamEventMsg struct {
	Event StreamEvent
}

// StreamErrorMsg is sent when the event stream breaks.
type StreamErrorMsg struct {
	Err error
}

// SnapshotMsg carries the session state returned by a live command.
type SnapshotMsg struct {
	Snapshot recognition.Snapshot
}

// ActionErrorMsg carries the failure of a live or AI command.
type ActionErrorMsg struct {
	Action string
	Err    error
}

// SummaryMsg carries a transcript summary.
type SummaryMsg struct {
	Summary string
}

// AnswerMsg carries the answer to a question about the transcript.
type AnswerMsg struct {
	Question   string
	Answer     string
	Confidence float64
}

// SavedMsg is sent after the transcript is stored as a session.
type SavedMsg struct {
	ID string
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
