package tui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/livescribe/livescribe/internal/api"
	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/recognition"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

const requestTimeout = 30 * time.Second

// Client talks to the livescribe HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. token is sent as a
// bearer token when non-empty.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// CreateLive opens a live session in the given language.
func (c *Client) CreateLive(ctx context.Context, lang string) (recognition.Snapshot, error) {
	var snap recognition.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/live", api.CreateLiveRequest{Language: lang}, &snap)
	return snap, err
}

// Live returns the current state of a live session.
func (c *Client) Live(ctx context.Context, id string) (recognition.Snapshot, error) {
	var snap recognition.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/live/"+id, nil, &snap)
	return snap, err
}

// Action posts one of start, stop, clear or enhanced-mode to a live session.
func (c *Client) Action(ctx context.Context, id, action string) (recognition.Snapshot, error) {
	var snap recognition.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/live/"+id+"/"+action, nil, &snap)
	return snap, err
}

// SwitchLanguage changes the recognition language of a live session.
func (c *Client) SwitchLanguage(ctx context.Context, id, code string) (recognition.Snapshot, error) {
	var snap recognition.Snapshot
	err := c.do(ctx, http.MethodPost, "/api/live/"+id+"/language", api.SwitchLanguageRequest{Code: code}, &snap)
	return snap, err
}

// Summarize asks for a summary of transcription.
func (c *Client) Summarize(ctx context.Context, transcription string) (string, error) {
	var resp api.SummaryResponse
	err := c.do(ctx, http.MethodPost, "/api/ai/summary", api.SummaryRequest{Transcription: transcription}, &resp)
	return resp.Summary, err
}

// Analyze asks a question about transcription.
func (c *Client) Analyze(ctx context.Context, transcription, question string) (AnswerMsg, error) {
	var resp struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	err := c.do(ctx, http.MethodPost, "/api/ai/analyze", api.AnalyzeRequest{Transcription: transcription, Question: question}, &resp)
	return AnswerMsg{Question: question, Answer: resp.Answer, Confidence: resp.Confidence}, err
}

// SaveSession stores a transcript as a session.
func (c *Client) SaveSession(ctx context.Context, req api.CreateSessionRequest) (api.SessionResponse, error) {
	var resp api.SessionResponse
	err := c.do(ctx, http.MethodPost, "/api/sessions", req, &resp)
	return resp, err
}

// StreamEvent is one server-sent event. Snapshot is set for the initial
// "snapshot" event and Envelope for every other event.
type StreamEvent struct {
	Name     string
	Snapshot *recognition.Snapshot
	Envelope *events.Envelope
}

// Stream reads the server-sent events of a live session.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
}

// Subscribe opens the event stream of a live session.
func (c *Client) Subscribe(ctx context.Context, id string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/live/"+id+"/events", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Stream{body: resp.Body, scanner: scanner, cancel: cancel}, nil
}

// Next blocks until the next event arrives. Comment lines are skipped.
func (s *Stream) Next() (StreamEvent, error) {
	var name string
	var data []byte
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case line == "":
			if data == nil {
				continue
			}
			return decodeStreamEvent(name, data)
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:"))...)
		}
	}
	if err := s.scanner.Err(); err != nil {
		return StreamEvent{}, fmt.Errorf("read event: %w", err)
	}
	return StreamEvent{}, io.EOF
}

// Close ends the stream.
func (s *Stream) Close() error {
	s.cancel()
	return s.body.Close()
}

func decodeStreamEvent(name string, data []byte) (StreamEvent, error) {
	ev := StreamEvent{Name: name}
	if name == "snapshot" {
		var snap recognition.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return ev, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		ev.Snapshot = &snap
		return ev, nil
	}
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ev, fmt.Errorf("unmarshal event: %w", err)
	}
	ev.Envelope = &env
	return ev, nil
}
