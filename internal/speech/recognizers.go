// Package speech provides the speech recognizers a live session can drive:
// a push recognizer fed by a client-side engine, and a transcription
// recognizer that segments raw audio and sends each utterance to OpenAI,
// Deepgram or Google Speech-to-Text.
package speech

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/livescribe/livescribe/internal/registry"
	"github.com/livescribe/livescribe/pkg/recognition"
)

// None selects no recognizer; sessions then report speech recognition as
// unsupported.
const None = "none"

// Recognizers is the registry of recognizer backends. Each session gets its
// own instance. Config keys: api_key, base_url, model, timeout_sec,
// energy_threshold.
var Recognizers = registry.New[recognition.Recognizer]()

func init() {
	Recognizers.Register("push", func(map[string]string) (recognition.Recognizer, error) {
		return NewPush(), nil
	})

	Recognizers.Register("openai", transcriptionFactory("openai", "https://api.openai.com/v1", "whisper-1", OpenAITranscriber))
	Recognizers.Register("deepgram", transcriptionFactory("deepgram", "https://api.deepgram.com/v1", "nova-2", DeepgramTranscriber))
	Recognizers.Register("google", transcriptionFactory("google", "https://speech.googleapis.com/v1", "latest_long", GoogleTranscriber))
}

type transcriberFunc func(client *http.Client, baseURL, apiKey, model string) TranscribeFunc

func transcriptionFactory(name, defaultBaseURL, defaultModel string, newFn transcriberFunc) registry.Factory[recognition.Recognizer] {
	return func(config map[string]string) (recognition.Recognizer, error) {
		apiKey := config["api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("%s API key required", name)
		}
		baseURL := config["base_url"]
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		model := config["model"]
		if model == "" {
			model = defaultModel
		}
		timeout := 30 * time.Second
		if v, err := strconv.Atoi(config["timeout_sec"]); err == nil && v > 0 {
			timeout = time.Duration(v) * time.Second
		}

		cfg := DefaultVADConfig()
		if v, err := strconv.ParseFloat(config["energy_threshold"], 64); err == nil && v > 0 {
			cfg.EnergyThreshold = v
		}
		client := &http.Client{Timeout: timeout}
		return NewTranscription(newFn(client, baseURL, apiKey, model), cfg), nil
	}
}

// New creates the named recognizer. The name None, or an empty name, yields
// a nil recognizer.
func New(name string, config map[string]string) (recognition.Recognizer, error) {
	if name == "" || name == None {
		return nil, nil
	}
	return Recognizers.Create(name, config)
}
