package transcribe

import (
	"fmt"
	"strings"
)

// Merge combines per-chunk transcription text into one document. With
// timestamps enabled, each non-empty chunk gets a synthesized
// "# start --> end" header; the cursor advances by the nominal chunk
// duration, not the actual (overlapped) chunk length, so headers drift from
// true audio position in proportion to accumulated overlap. Sub-segment
// timings reported by the service are deliberately ignored here.
func Merge(results []ChunkResult, includeTimestamps bool, chunkMinutes int) string {
	if len(results) == 0 {
		return ""
	}

	chunkSeconds := chunkMinutes * 60
	var sections []string
	cursor := 0

	for _, result := range results {
		text := strings.TrimSpace(result.Text)
		if text == "" {
			continue
		}
		if includeTimestamps {
			header := fmt.Sprintf("# %s --> %s", FormatDuration(float64(cursor)), FormatDuration(float64(cursor+chunkSeconds)))
			sections = append(sections, header+"\n"+text)
			cursor += chunkSeconds
		} else {
			sections = append(sections, text)
		}
	}

	return strings.Join(sections, "\n\n")
}

// FormatDuration renders seconds as zero-padded MM:SS, or HH:MM:SS once the
// value reaches an hour.
func FormatDuration(seconds float64) string {
	s := int(seconds)
	hours := s / 3600
	minutes := (s % 3600) / 60
	secs := s % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
