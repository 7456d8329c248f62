// Package segment parses and rebuilds timestamped transcript documents.
//
// The wire format is one header line per section:
//
//	# 00:02:30 --> 00:05:00
//	text content until the next header
//
// Hours may be omitted on either side (MM:SS). Anything before the first
// header, and any header with no content, is dropped.
package segment

import (
	"regexp"
	"strings"
)

// headerPattern matches a timestamp header line. The single space after '#'
// and the literal ' --> ' separator are part of the contract; '#' lines that
// do not match are treated as ordinary content.
var headerPattern = regexp.MustCompile(`^# \d{2}:\d{2}(:\d{2})? --> \d{2}:\d{2}(:\d{2})?`)

// Section is a (timestamp, content) pair in document order. Timestamp is the
// full header line including the leading "# ".
type Section struct {
	Timestamp string
	Content   string
}

// TranslationSegment is the unit exchanged with the translation service.
// TS is the timestamp without the leading "# ".
type TranslationSegment struct {
	TS   string `json:"ts"`
	Text string `json:"text"`
}

// ParseSections splits text into timestamped sections. Blank lines are
// skipped, content lines are newline-joined in order, and sections whose
// content is empty are never emitted.
func ParseSections(text string) []Section {
	var sections []Section
	var current *Section
	var content []string

	flush := func() {
		if current != nil && len(content) > 0 {
			current.Content = strings.Join(content, "\n")
			sections = append(sections, *current)
		}
		current = nil
		content = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if headerPattern.MatchString(line) {
			flush()
			current = &Section{Timestamp: line}
			continue
		}
		if current != nil {
			content = append(content, line)
		}
		// Lines before the first header are discarded.
	}
	flush()

	return sections
}

// ParseTranslationSegments converts a timestamped document into the list-of-
// objects form sent to the translation service.
func ParseTranslationSegments(text string) []TranslationSegment {
	sections := ParseSections(text)
	segments := make([]TranslationSegment, 0, len(sections))
	for _, s := range sections {
		segments = append(segments, TranslationSegment{
			TS:   strings.TrimPrefix(s.Timestamp, "# "),
			Text: s.Content,
		})
	}
	return segments
}

// Reconstruct rebuilds a timestamped document from translation segments.
// It is the structural inverse of ParseTranslationSegments:
// parse(Reconstruct(parse(doc))) equals parse(doc) for well-formed input.
func Reconstruct(segments []TranslationSegment) string {
	var lines []string
	for _, seg := range segments {
		lines = append(lines, "# "+seg.TS)
		if text := strings.TrimSpace(seg.Text); text != "" {
			lines = append(lines, text)
		}
		lines = append(lines, "")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
