package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/livescribe/livescribe/pkg/recognition"
)

// TranscribeFunc transcribes one utterance, given as a WAV file, in the
// language with the given BCP-47 code.
type TranscribeFunc func(ctx context.Context, wav []byte, lang string) (string, error)

// Transcription is a recognizer fed with raw 16 kHz 16-bit mono PCM through
// Write. It cuts the stream into utterances with voice activity detection
// and transcribes each one as a final result.
type Transcription struct {
	config     VADConfig
	transcribe TranscribeFunc

	mu     sync.Mutex
	pw     *io.PipeWriter
	cancel context.CancelFunc
	level  atomic.Int32
}

// NewTranscription creates a transcription recognizer.
func NewTranscription(fn TranscribeFunc, cfg VADConfig) *Transcription {
	return &Transcription{config: cfg, transcribe: fn}
}

func (t *Transcription) Start(ctx context.Context, opts recognition.Options) (<-chan recognition.Event, error) {
	if t.transcribe == nil {
		return nil, recognition.ErrUnsupported
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()

	pr, pw := io.Pipe()
	runCtx, cancel := context.WithCancel(ctx)
	t.pw = pw
	t.cancel = cancel

	events := make(chan recognition.Event, 8)
	go t.segment(runCtx, pr, opts.Language, events)
	return events, nil
}

func (t *Transcription) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	return nil
}

func (t *Transcription) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.pw != nil {
		_ = t.pw.CloseWithError(recognition.ErrAborted)
		t.pw = nil
	}
	t.level.Store(0)
}

// Write feeds PCM audio to the running recognizer. It blocks while an
// utterance is being transcribed.
func (t *Transcription) Write(p []byte) (int, error) {
	t.mu.Lock()
	pw := t.pw
	t.mu.Unlock()
	if pw == nil {
		return 0, ErrNotRunning
	}
	return pw.Write(p)
}

// AudioLevel reports the level of the most recent audio frame.
func (t *Transcription) AudioLevel() int {
	return int(t.level.Load())
}

func (t *Transcription) segment(ctx context.Context, audio *io.PipeReader, lang string, events chan<- recognition.Event) {
	defer close(events)
	defer audio.Close()

	v := newVAD(t.config)
	maxBytes := t.config.MaxUtteranceMs * sampleRate / 1000 * bytesPerSample
	frame := make([]byte, frameBytes)
	var utterance []byte

	flush := func() bool {
		if len(utterance) == 0 {
			return true
		}
		text, err := t.transcribe(ctx, encodeWAV(utterance), lang)
		utterance = utterance[:0]
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			send(ctx, events, recognition.Event{Err: fmt.Errorf("transcribe utterance: %w", err)})
			return false
		}
		if text = strings.TrimSpace(text); text == "" {
			return true
		}
		return send(ctx, events, recognition.Event{Results: []recognition.Result{{Transcript: text, IsFinal: true}}})
	}

	for {
		n, err := io.ReadFull(audio, frame)
		if n > 0 {
			ev := v.process(frame[:n])
			t.level.Store(int32(v.level()))
			switch {
			case ev == vadSpeechStart:
				utterance = append(utterance[:0], frame[:n]...)
			case ev == vadSpeechEnd:
				if !flush() {
					return
				}
			case v.speaking:
				utterance = append(utterance, frame[:n]...)
				if maxBytes > 0 && len(utterance) >= maxBytes && !flush() {
					return
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				flush()
			} else if !errors.Is(err, recognition.ErrAborted) {
				slog.Warn("audio stream failed", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func send(ctx context.Context, events chan<- recognition.Event, ev recognition.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// primaryTag returns "pt" for "pt-BR".
func primaryTag(code string) string {
	tag, _, _ := strings.Cut(code, "-")
	return strings.ToLower(tag)
}

// OpenAITranscriber returns a TranscribeFunc posting to an OpenAI
// compatible /audio/transcriptions endpoint.
func OpenAITranscriber(client *http.Client, baseURL, apiKey, model string) TranscribeFunc {
	endpoint := strings.TrimRight(baseURL, "/") + "/audio/transcriptions"
	return func(ctx context.Context, wav []byte, lang string) (string, error) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreateFormFile("file", "audio.wav")
		if err != nil {
			return "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(wav); err != nil {
			return "", fmt.Errorf("write form file: %w", err)
		}
		_ = w.WriteField("model", model)
		_ = w.WriteField("response_format", "json")
		if lang != "" {
			_ = w.WriteField("language", primaryTag(lang))
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("close form: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", w.FormDataContentType())

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(msg))
		}

		var out struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		return out.Text, nil
	}
}
