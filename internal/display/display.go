// Package display renders a transcript and its translation as a single
// bilingual document: each timestamp once, the original content, a labeled
// separator, then the translated content.
package display

import (
	"strings"

	"github.com/mshattori/transcriber-web-app/internal/segment"
)

// separatorLine visually divides original from translated content.
var separatorLine = strings.Repeat("─", 20) + " Translation " + strings.Repeat("─", 20)

// Matcher pairs transcript sections with translation sections. Given the two
// section lists it returns, for each output position, the index of the
// translation section to show (or -1 for none).
type Matcher func(transcript, translation []segment.Section) []int

// MatchByPosition pairs sections by array index. This is the default: if the
// two documents have different section counts, content still pairs up by
// index, which can misalign sections that do not actually correspond. That
// is a documented limitation, not corrected by content matching.
func MatchByPosition(transcript, translation []segment.Section) []int {
	n := len(transcript)
	if len(translation) > n {
		n = len(translation)
	}
	pairs := make([]int, n)
	for i := range pairs {
		if i < len(translation) {
			pairs[i] = i
		} else {
			pairs[i] = -1
		}
	}
	return pairs
}

// MatchByTimestamp pairs sections by exact timestamp-string equality. Safe
// only when the translation was derived from parsing the exact same
// transcript; unmatched translation sections are not shown.
func MatchByTimestamp(transcript, translation []segment.Section) []int {
	byTS := make(map[string]int, len(translation))
	for i, s := range translation {
		if _, exists := byTS[s.Timestamp]; !exists {
			byTS[s.Timestamp] = i
		}
	}
	pairs := make([]int, len(transcript))
	for i, s := range transcript {
		if j, ok := byTS[s.Timestamp]; ok {
			pairs[i] = j
		} else {
			pairs[i] = -1
		}
	}
	return pairs
}

// Formatter builds integrated displays.
type Formatter struct {
	match Matcher
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithMatcher replaces the pairing strategy.
func WithMatcher(m Matcher) Option {
	return func(f *Formatter) { f.match = m }
}

func New(opts ...Option) *Formatter {
	f := &Formatter{match: MatchByPosition}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders the integrated display. With no translation it returns the
// transcript unchanged. The transcript side is authoritative for timestamps;
// a position with no transcript section gets no header. The output is a pure
// function of the two inputs and can be reproduced from the saved artifacts.
func (f *Formatter) Format(transcript, translation string) string {
	if translation == "" {
		return transcript
	}

	// Headerless text still renders as a single section, so a transcript
	// produced without timestamps, or an error notice standing in for a
	// failed translation, is never silently dropped.
	transcriptSections := segment.ParseSections(transcript)
	if len(transcriptSections) == 0 && strings.TrimSpace(transcript) != "" {
		transcriptSections = []segment.Section{{Content: strings.TrimSpace(transcript)}}
	}
	translationSections := segment.ParseSections(translation)
	if len(translationSections) == 0 {
		translationSections = []segment.Section{{Content: strings.TrimSpace(translation)}}
	}
	pairs := f.match(transcriptSections, translationSections)

	var lines []string
	for i, j := range pairs {
		var timestamp, content string
		if i < len(transcriptSections) {
			timestamp = transcriptSections[i].Timestamp
			content = transcriptSections[i].Content
		}
		var translated string
		if j >= 0 && j < len(translationSections) {
			translated = translationSections[j].Content
		}

		if timestamp != "" {
			lines = append(lines, timestamp, "")
		}
		if content != "" {
			lines = append(lines, content, "")
		}
		if translated != "" {
			lines = append(lines, separatorLine, "", translated, "")
		}
		if i < len(pairs)-1 {
			lines = append(lines, "")
		}
	}

	return strings.Join(lines, "\n")
}
