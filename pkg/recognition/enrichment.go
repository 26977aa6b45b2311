package recognition

import (
	"context"
	"errors"
	"log/slog"

	"github.com/livescribe/livescribe/pkg/enrich"
	"github.com/livescribe/livescribe/pkg/events"
)

var errNoEnricher = errors.New("no enricher configured")

// detectLanguage identifies the language of a finalized segment. The keyword
// heuristic decides when the model fails or cannot tell. Results computed
// before a clear or language switch are dropped.
func (s *Session) detectLanguage(epoch uint64, segment string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.EnrichTimeout)
	defer cancel()

	var (
		det enrich.LanguageDetection
		err = errNoEnricher
	)
	if s.enricher != nil {
		det, err = s.enricher.DetectLanguage(ctx, segment)
	}

	heuristic := false
	if err != nil || det.IsUnknown() {
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.DebugContext(ctx, "language detection fell back to heuristic",
				slog.String("session_id", s.id), slog.String("error", err.Error()))
		}
		lang, ok := s.detector.Detect(segment)
		switch {
		case ok:
			det = enrich.LanguageDetection{Language: lang.Name, Confidence: lang.Confidence, LanguageCode: lang.Code}
			heuristic = true
		case err != nil:
			return
		}
	}

	s.mu.Lock()
	if epoch != s.epoch {
		current := s.epoch
		s.mu.Unlock()
		s.emit(ctx, events.EnrichmentDiscarded, events.DiscardData{Kind: "detect", SentVersion: epoch, Version: current})
		return
	}
	d := det
	s.lastDetection = &d
	if !det.IsUnknown() {
		s.detected[det.LanguageCode] = struct{}{}
	}
	s.mu.Unlock()

	s.emit(ctx, events.LanguageDetected, events.DetectionData{
		Language:     det.Language,
		LanguageCode: det.LanguageCode,
		Confidence:   det.Confidence,
		Heuristic:    heuristic,
	})
}

// enhanceSegment sends a finalized segment for correction. The result is
// applied only if the transcript has not changed since the segment was
// committed, in which case the segment is still the buffer tail at start.
func (s *Session) enhanceSegment(version uint64, start int, segment, targetLanguage string) {
	if s.enricher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.EnrichTimeout)
	defer cancel()

	res, err := s.enricher.Enhance(ctx, segment, targetLanguage)
	if err != nil {
		slog.WarnContext(ctx, "enhancement failed, keeping original text",
			slog.String("session_id", s.id), slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	if s.transcript.version != version {
		current := s.transcript.version
		s.mu.Unlock()
		slog.DebugContext(ctx, "stale enhancement discarded",
			slog.String("session_id", s.id), slog.Uint64("sent_version", version), slog.Uint64("version", current))
		s.emit(ctx, events.EnrichmentDiscarded, events.DiscardData{Kind: "enhance", SentVersion: version, Version: current})
		return
	}
	if res.EnhancedText == "" || res.EnhancedText == segment {
		s.mu.Unlock()
		return
	}
	s.transcript.replaceTail(start, res.EnhancedText)
	data := events.EnhancementData{
		Original:    segment,
		Enhanced:    res.EnhancedText,
		Corrections: res.Corrections,
		Version:     s.transcript.version,
	}
	s.mu.Unlock()

	s.emit(ctx, events.TranscriptEnhanced, data)
}
