package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float32 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// DeepgramTranscriber returns a TranscribeFunc posting each utterance to the
// Deepgram pre-recorded /listen endpoint.
func DeepgramTranscriber(client *http.Client, baseURL, apiKey, model string) TranscribeFunc {
	endpoint := strings.TrimRight(baseURL, "/") + "/listen"
	return func(ctx context.Context, wav []byte, lang string) (string, error) {
		params := url.Values{}
		params.Set("model", model)
		params.Set("smart_format", "true")
		if lang != "" {
			params.Set("language", lang)
		}

		var resp deepgramResponse
		headers := map[string]string{
			"Authorization": "Token " + apiKey,
			"Content-Type":  "audio/wav",
		}
		if err := postAudio(ctx, client, endpoint+"?"+params.Encode(), headers, bytes.NewReader(wav), &resp); err != nil {
			return "", fmt.Errorf("deepgram: %w", err)
		}
		if len(resp.Results.Channels) > 0 && len(resp.Results.Channels[0].Alternatives) > 0 {
			return resp.Results.Channels[0].Alternatives[0].Transcript, nil
		}
		return "", nil
	}
}

type googleRecognizeRequest struct {
	Config googleRecognizeConfig `json:"config"`
	Audio  googleRecognizeAudio  `json:"audio"`
}

type googleRecognizeConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	Model                      string `json:"model,omitempty"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type googleRecognizeAudio struct {
	Content string `json:"content"`
}

type googleRecognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float32 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// GoogleTranscriber returns a TranscribeFunc calling the Cloud
// Speech-to-Text v1 speech:recognize method. Result segments are joined.
func GoogleTranscriber(client *http.Client, baseURL, apiKey, model string) TranscribeFunc {
	endpoint := strings.TrimRight(baseURL, "/") + "/speech:recognize?key=" + url.QueryEscape(apiKey)
	return func(ctx context.Context, wav []byte, lang string) (string, error) {
		body, err := json.Marshal(googleRecognizeRequest{
			Config: googleRecognizeConfig{
				Encoding:                   "LINEAR16",
				SampleRateHertz:            sampleRate,
				LanguageCode:               lang,
				Model:                      model,
				EnableAutomaticPunctuation: true,
			},
			Audio: googleRecognizeAudio{Content: base64.StdEncoding.EncodeToString(wav)},
		})
		if err != nil {
			return "", fmt.Errorf("google: marshal request: %w", err)
		}

		var resp googleRecognizeResponse
		headers := map[string]string{"Content-Type": "application/json"}
		if err := postAudio(ctx, client, endpoint, headers, bytes.NewReader(body), &resp); err != nil {
			return "", fmt.Errorf("google: %w", err)
		}
		var parts []string
		for _, r := range resp.Results {
			if len(r.Alternatives) > 0 {
				parts = append(parts, strings.TrimSpace(r.Alternatives[0].Transcript))
			}
		}
		return strings.Join(parts, " "), nil
	}
}

func postAudio(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body io.Reader, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
