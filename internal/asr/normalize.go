package asr

import (
	"regexp"
	"strings"
)

// Overlapping windows tend to both transcribe the sentence boundary they
// share, leaving doubled punctuation and stray spaces in the stitched
// text. The cleanup below is deterministic and idempotent.
var (
	repeatedMarks = []struct {
		re   *regexp.Regexp
		mark string
	}{
		{regexp.MustCompile(`。(?:\s*。)+`), "。"},
		{regexp.MustCompile(`！(?:\s*！)+`), "！"},
		{regexp.MustCompile(`？(?:\s*？)+`), "？"},
	}
	whitespaceRun    = regexp.MustCompile(`\s+`)
	spaceBeforePunct = regexp.MustCompile(`\s+([，。！？])`)
)

// NormalizeTranscript collapses repeated sentence-ending punctuation,
// squeezes whitespace runs to single spaces, removes spaces that precede
// punctuation, and trims the ends.
func NormalizeTranscript(text string) string {
	for _, m := range repeatedMarks {
		text = m.re.ReplaceAllString(text, m.mark)
	}
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return text
}
