// Package textnorm holds the one text-cleaning transform shared by every
// training job, the prediction service, bulk scoring and the scraper. Any
// change here changes the features every persisted model was trained on.
package textnorm

import (
	"strings"
	"unicode"
)

// Label is the binary class of a news document.
type Label int

const (
	Real Label = 0
	Fake Label = 1
)

func (l Label) String() string {
	if l == Fake {
		return "FAKE"
	}
	return "REAL"
}

// ParseLabel accepts the CSV encodings used by the datasets: 1/0 and the
// label names in any case.
func ParseLabel(s string) (Label, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "1.0", "FAKE":
		return Fake, true
	case "0", "0.0", "REAL":
		return Real, true
	default:
		return Real, false
	}
}

// RawDocument is a news item as read from a dataset or a scraper. Only Text
// is ever cleaned and scored; Title is carried for reporting.
type RawDocument struct {
	Text  string
	Title string
	Label *Label
}

// Clean lowercases raw, strips URLs, drops every rune that is not an ASCII
// letter or whitespace and collapses whitespace. The steps run in this order;
// URL stripping sees the lowercased text, so "HTTP://X" is removed too.
//
// Dropping punctuation can glue a new URL-looking run together ("ht.tp://x"
// becomes "httpx"), so the strip and filter steps repeat until stripping no
// longer changes the text. That keeps Clean(Clean(s)) == Clean(s) for every s.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := lettersOnly(stripURLs(strings.ToLower(raw)))
	for {
		stripped := stripURLs(s)
		if stripped == s {
			return s
		}
		s = lettersOnly(stripped)
	}
}

// lettersOnly keeps ASCII letters, turns whitespace runs into single spaces
// and trims both ends.
func lettersOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// stripURLs removes every "http" followed by a run of non-whitespace runes.
// A bare "http" followed by whitespace or the end of the text is kept.
func stripURLs(s string) string {
	idx := strings.Index(s, "http")
	if idx < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for idx >= 0 {
		b.WriteString(s[:idx])
		rest := s[idx+len("http"):]
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end == 0 {
			// http\S+ needs at least one non-space rune after "http".
			b.WriteString("http")
			s = rest
		} else if end < 0 {
			if rest == "" {
				b.WriteString("http")
			}
			s = ""
		} else {
			s = rest[end:]
		}
		idx = strings.Index(s, "http")
	}
	b.WriteString(s)
	return b.String()
}
