// Package language holds the supported recognition languages and the offline
// keyword heuristic used when the AI language detector is unavailable.
package language

import "sort"

// Default is the language a new recognition session starts with.
const Default = "pt-BR"

// Language describes one supported recognition language.
type Language struct {
	Code string
	Name string
	// Confidence is the fixed confidence reported by the keyword heuristic
	// when this language wins. It does not depend on the score.
	Confidence float64
}

var supported = map[string]Language{
	"pt-BR": {Code: "pt-BR", Name: "Português (Brasil)", Confidence: 0.85},
	"en-US": {Code: "en-US", Name: "English (US)", Confidence: 0.82},
	"es-ES": {Code: "es-ES", Name: "Español (España)", Confidence: 0.80},
}

// Lookup returns the language registered under code.
func Lookup(code string) (Language, bool) {
	l, ok := supported[code]
	return l, ok
}

// DisplayName returns the human readable name for code, or the code itself
// when it is not a supported language.
func DisplayName(code string) string {
	if l, ok := supported[code]; ok {
		return l.Name
	}
	return code
}

// Codes returns the supported language codes in a stable order.
func Codes() []string {
	codes := make([]string, 0, len(supported))
	for code := range supported {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Next returns the language that follows code in Codes, wrapping around.
func Next(code string) string {
	codes := Codes()
	for i, c := range codes {
		if c == code {
			return codes[(i+1)%len(codes)]
		}
	}
	return codes[0]
}
