package enrich

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Clamp limits v to [0,1]. NaN maps to 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// score accepts a JSON number or a numeric string. Any other value, such
// as "high", leaves the score unset so the operation's default applies.
type score struct {
	value float64
	set   bool
}

func (s *score) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSuffix(strings.TrimSpace(str), "%")
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil
		}
		s.value, s.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	s.value, s.set = v, true
	return nil
}

// or returns the clamped score, or def when the field was absent.
func (s score) or(def float64) float64 {
	if !s.set {
		return Clamp(def)
	}
	return Clamp(s.value)
}

// corrections accepts either a list of strings or a list of
// {original, corrected} objects.
type corrections []string

func (c *corrections) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var pair struct {
			Original  string `json:"original"`
			Corrected string `json:"corrected"`
		}
		if err := json.Unmarshal(item, &pair); err != nil {
			return err
		}
		if pair.Original != "" || pair.Corrected != "" {
			out = append(out, pair.Original+" → "+pair.Corrected)
		}
	}
	*c = out
	return nil
}

// decodeModelJSON decodes the model's text output into out. Markdown code
// fences and text around the outermost JSON object are ignored.
func decodeModelJSON(text string, out any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in model output")
	}
	return json.Unmarshal([]byte(text[start:end+1]), out)
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
