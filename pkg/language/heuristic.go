package language

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfilesYAML []byte

// Profile is the keyword set scored for one language.
type Profile struct {
	Code     string   `yaml:"code"`
	Keywords []string `yaml:"keywords"`
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Heuristic scores text against a fixed keyword set per language.
// It is immutable once built and safe for concurrent use.
type Heuristic struct {
	codes    []string
	keywords map[string]map[string]struct{}
}

// NewHeuristic builds a heuristic from the given profiles. Every profile must
// name a supported language.
func NewHeuristic(profiles []Profile) (*Heuristic, error) {
	h := &Heuristic{keywords: make(map[string]map[string]struct{}, len(profiles))}
	for _, p := range profiles {
		if _, ok := Lookup(p.Code); !ok {
			return nil, fmt.Errorf("profile for unsupported language %q", p.Code)
		}
		set, ok := h.keywords[p.Code]
		if !ok {
			set = make(map[string]struct{}, len(p.Keywords))
			h.keywords[p.Code] = set
			h.codes = append(h.codes, p.Code)
		}
		for _, kw := range p.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				set[kw] = struct{}{}
			}
		}
	}
	return h, nil
}

// DefaultProfiles returns the built-in keyword profiles.
func DefaultProfiles() []Profile {
	profiles, err := parseProfiles(defaultProfilesYAML)
	if err != nil {
		panic(fmt.Sprintf("language: embedded profiles: %v", err))
	}
	return profiles
}

// DefaultHeuristic returns a heuristic over the built-in profiles.
func DefaultHeuristic() *Heuristic {
	h, err := NewHeuristic(DefaultProfiles())
	if err != nil {
		panic(fmt.Sprintf("language: embedded profiles: %v", err))
	}
	return h
}

func parseProfiles(data []byte) ([]Profile, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return f.Profiles, nil
}

// Detect guesses the language of text. ok is false when no keyword matched or
// when the best score is shared by more than one language; callers then keep
// whatever language they had before.
func (h *Heuristic) Detect(text string) (Language, bool) {
	scores := make(map[string]int, len(h.codes))
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tok == "" {
			continue
		}
		for _, code := range h.codes {
			if _, hit := h.keywords[code][tok]; hit {
				scores[code]++
			}
		}
	}

	best, bestScore, tie := "", 0, false
	for _, code := range h.codes {
		switch s := scores[code]; {
		case s > bestScore:
			best, bestScore, tie = code, s, false
		case s == bestScore && s > 0:
			tie = true
		}
	}
	if bestScore == 0 || tie {
		return Language{}, false
	}
	return supported[best], true
}
