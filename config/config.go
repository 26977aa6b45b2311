package config

import (
	"strconv"
	"time"

	"github.com/pitabwire/frame/config"
)

// LiveScribeConfig is the configuration of the livescribe service.
type LiveScribeConfig struct {
	config.ConfigurationDefault

	// AI enrichment
	AIProvider        string `envDefault:"openai"                    env:"AI_PROVIDER"`
	AIModel           string `envDefault:""                          env:"AI_MODEL"`
	OpenAIAPIKey      string `envDefault:""                          env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `envDefault:"https://api.openai.com/v1" env:"OPENAI_BASE_URL"`
	OllamaURL         string `envDefault:"http://localhost:11434"    env:"OLLAMA_URL"`
	AnthropicAPIKey   string `envDefault:""                          env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL  string `envDefault:"https://api.anthropic.com" env:"ANTHROPIC_BASE_URL"`
	AITimeoutSec      int    `envDefault:"30"                        env:"AI_TIMEOUT_SEC"`
	CBFailThreshold   int    `envDefault:"5"                         env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec int    `envDefault:"60"                        env:"CB_RESET_TIMEOUT_SEC"`

	// Session store
	StoreBackend string `envDefault:"sqlite"          env:"STORE_BACKEND"`
	SQLitePath   string `envDefault:"livescribe.db"   env:"SQLITE_PATH"`

	// Live sessions
	DefaultLanguage      string `envDefault:"pt-BR"     env:"DEFAULT_LANGUAGE"`
	EnhanceMinChars      int    `envDefault:"20"        env:"ENHANCE_MIN_CHARS"`
	RestartGraceMs       int    `envDefault:"500"       env:"RESTART_GRACE_MS"`
	AudioLevelIntervalMs int    `envDefault:"150"       env:"AUDIO_LEVEL_INTERVAL_MS"`
	KeywordDir           string `envDefault:""          env:"KEYWORD_DIR"`
	ASRBackend           string `envDefault:"push"      env:"ASR_BACKEND"`
	TranscriptionModel   string `envDefault:""          env:"TRANSCRIPTION_MODEL"`
	DeepgramAPIKey       string `envDefault:""          env:"DEEPGRAM_API_KEY"`
	DeepgramBaseURL      string `envDefault:""          env:"DEEPGRAM_BASE_URL"`
	GoogleSpeechAPIKey   string `envDefault:""          env:"GOOGLE_SPEECH_API_KEY"`
	GoogleSpeechBaseURL  string `envDefault:""          env:"GOOGLE_SPEECH_BASE_URL"`
	VADEnergyThreshold   string `envDefault:""          env:"VAD_ENERGY_THRESHOLD"`
	LiveSessionTTLMin    int    `envDefault:"30"        env:"LIVE_SESSION_TTL_MIN"`

	// Webhooks need the frame datastore.
	WebhooksEnabled          bool `envDefault:"false" env:"WEBHOOKS_ENABLED"`
	WebhookTimeoutSec        int  `envDefault:"10"    env:"WEBHOOK_TIMEOUT_SEC"`
	WebhookCBFailThreshold   int  `envDefault:"5"     env:"WEBHOOK_CB_FAILURE_THRESHOLD"`
	WebhookCBResetTimeoutSec int  `envDefault:"60"    env:"WEBHOOK_CB_RESET_TIMEOUT_SEC"`
	WebhookAllowPrivate      bool `envDefault:"false" env:"WEBHOOK_ALLOW_PRIVATE"`

	AuthEnabled bool `envDefault:"false" env:"AUTH_ENABLED"`
}

// ProviderConfig returns the settings handed to the AI provider factory.
func (c *LiveScribeConfig) ProviderConfig() map[string]string {
	cfg := map[string]string{
		"model":       c.AIModel,
		"timeout_sec": strconv.Itoa(c.AITimeoutSec),
	}
	switch c.AIProvider {
	case "openai":
		cfg["api_key"] = c.OpenAIAPIKey
		cfg["base_url"] = c.OpenAIBaseURL
	case "ollama":
		cfg["base_url"] = c.OllamaURL
	case "anthropic":
		cfg["api_key"] = c.AnthropicAPIKey
		cfg["base_url"] = c.AnthropicBaseURL
	}
	return cfg
}

// RecognizerConfig returns the settings handed to the speech backend factory.
func (c *LiveScribeConfig) RecognizerConfig() map[string]string {
	cfg := map[string]string{
		"model":            c.TranscriptionModel,
		"timeout_sec":      strconv.Itoa(c.AITimeoutSec),
		"energy_threshold": c.VADEnergyThreshold,
	}
	switch c.ASRBackend {
	case "openai":
		cfg["api_key"] = c.OpenAIAPIKey
		cfg["base_url"] = c.OpenAIBaseURL
	case "deepgram":
		cfg["api_key"] = c.DeepgramAPIKey
		cfg["base_url"] = c.DeepgramBaseURL
	case "google":
		cfg["api_key"] = c.GoogleSpeechAPIKey
		cfg["base_url"] = c.GoogleSpeechBaseURL
	}
	return cfg
}

// RestartGrace is the pause between stopping and restarting recognition on
// a language switch.
func (c *LiveScribeConfig) RestartGrace() time.Duration {
	return time.Duration(c.RestartGraceMs) * time.Millisecond
}

// AudioLevelInterval is the audio level sampling period.
func (c *LiveScribeConfig) AudioLevelInterval() time.Duration {
	return time.Duration(c.AudioLevelIntervalMs) * time.Millisecond
}

// LiveSessionTTL is how long an idle live session survives.
func (c *LiveScribeConfig) LiveSessionTTL() time.Duration {
	return time.Duration(c.LiveSessionTTLMin) * time.Minute
}

// Seconds converts a whole number of seconds from the environment to a
// duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
