package recognition

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/livescribe/livescribe/pkg/events"
)

// consume applies recognizer events until the run ends.
func (s *Session) consume(ctx context.Context, run uint64, ch <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				s.recognizerEnded(run, nil)
				return
			}
			if ev.Err != nil {
				if errors.Is(ev.Err, ErrAborted) {
					continue
				}
				s.recognizerEnded(run, ev.Err)
				return
			}
			s.handleResults(run, ev.Results)
		}
	}
}

// recognizerEnded moves the session to Idle when the recognizer stops on
// its own. A nil err means the recognizer finished normally.
func (s *Session) recognizerEnded(run uint64, err error) {
	s.mu.Lock()
	if run != s.run || s.state != Recording {
		s.mu.Unlock()
		return
	}
	lang := s.language
	_ = s.stopLocked()
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	ctx := s.ctx
	reason := "ended"
	if err != nil {
		reason = "error"
		slog.WarnContext(ctx, "recognizer error",
			slog.String("session_id", s.id), slog.String("error", err.Error()))
		s.emit(ctx, events.RecognizerError, events.ErrorData{Error: err.Error()})
		s.notifier.Notify(ctx, LevelError, "Erro no reconhecimento de voz: "+err.Error())
	}
	s.emit(ctx, events.SessionStopped, events.SessionStateData{Language: lang, Reason: reason})
}

// handleResults commits the final texts of one event and replaces the
// interim tail with its interim texts.
func (s *Session) handleResults(run uint64, results []Result) {
	var finals, interims strings.Builder
	for _, r := range results {
		if r.IsFinal {
			finals.WriteString(r.Transcript)
		} else {
			interims.WriteString(r.Transcript)
		}
	}
	segment := strings.TrimSpace(finals.String())
	interim := strings.TrimSpace(interims.String())

	s.mu.Lock()
	if run != s.run || s.state != Recording {
		s.mu.Unlock()
		return
	}
	s.lastActivity = time.Now()
	s.transcript.interim = interim

	var start int
	if segment != "" {
		start = s.transcript.appendSegment(segment)
	}
	data := events.TranscriptData{
		Transcript: s.transcript.committed,
		Interim:    interim,
		Segment:    segment,
		Version:    s.transcript.version,
		WordCount:  s.transcript.wordCount(),
	}
	epoch := s.epoch
	lang := s.language
	enhance := segment != "" && s.enhancedMode && utf8.RuneCountInString(segment) > s.cfg.EnhanceMinChars
	s.mu.Unlock()

	s.emit(s.ctx, events.TranscriptUpdated, data)
	if segment == "" {
		return
	}

	s.spawn(s.ctx, func() { s.detectLanguage(epoch, segment) })
	if enhance {
		s.spawn(s.ctx, func() { s.enhanceSegment(data.Version, start, segment, lang) })
	}
}

func (s *Session) tickElapsed(ctx context.Context, run uint64) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if run != s.run || s.state != Recording {
				s.mu.Unlock()
				return
			}
			s.seconds++
			seconds := s.seconds
			s.mu.Unlock()
			s.emitLocal(events.SessionTick, events.TickData{RecordingSeconds: seconds})
		}
	}
}

// sampleAudioLevel publishes the input level. Recognizers that cannot
// measure it get a synthetic signal.
func (s *Session) sampleAudioLevel(ctx context.Context, run uint64) {
	ticker := time.NewTicker(s.cfg.AudioLevelInterval)
	defer ticker.Stop()
	meter, _ := s.recognizer.(LevelMeter)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			level := rand.IntN(101)
			if meter != nil {
				level = min(max(meter.AudioLevel(), 0), 100)
			}
			s.mu.Lock()
			if run != s.run || s.state != Recording {
				s.mu.Unlock()
				return
			}
			s.audioLevel = level
			s.mu.Unlock()
			s.emitLocal(events.AudioLevel, events.AudioLevelData{Percent: level})
		}
	}
}
