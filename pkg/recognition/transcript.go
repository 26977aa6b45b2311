package recognition

import "strings"

// transcript is the committed text buffer of a session plus the trailing
// interim hypothesis. Every change to the committed text bumps version.
type transcript struct {
	committed string
	interim   string
	version   uint64
}

// appendSegment commits segment and returns the offset it starts at.
func (t *transcript) appendSegment(segment string) int {
	if t.committed != "" && !endsWithSpace(t.committed) && !startsWithSpace(segment) {
		t.committed += " "
	}
	start := len(t.committed)
	t.committed += segment
	t.version++
	return start
}

// replaceTail replaces committed[start:] with text.
func (t *transcript) replaceTail(start int, text string) {
	t.committed = t.committed[:start] + text
	t.version++
}

func (t *transcript) reset() {
	t.committed = ""
	t.interim = ""
	t.version++
}

func (t *transcript) wordCount() int {
	return len(strings.Fields(t.committed))
}

// display is what the user sees: committed text followed by the interim tail.
func (t *transcript) display() string {
	interim := strings.TrimSpace(t.interim)
	if interim == "" {
		return t.committed
	}
	if t.committed == "" {
		return interim
	}
	if endsWithSpace(t.committed) {
		return t.committed + interim
	}
	return t.committed + " " + interim
}

func endsWithSpace(s string) bool {
	return s != "" && (s[len(s)-1] == ' ' || s[len(s)-1] == '\n')
}

func startsWithSpace(s string) bool {
	return s != "" && (s[0] == ' ' || s[0] == '\n')
}
