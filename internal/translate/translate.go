// Package translate converts a timestamped transcript into another language
// section by section, preserving timestamp alignment. Translation goes
// through the chat service's JSON-schema structured output so responses are
// validated at the service boundary instead of parsed out of prose.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
	"github.com/mshattori/transcriber-web-app/internal/segment"
)

// defaultMaxTokensPerChunk bounds the estimated size of one translation
// request. Token count is approximated as serialized characters / 4.
const defaultMaxTokensPerChunk = 100000

// ChatClient is the structured-completion side of the OpenAI client.
type ChatClient interface {
	StructuredCompletion(ctx context.Context, model, systemPrompt, userPrompt, schemaName string, schema json.RawMessage, temperature float64) (json.RawMessage, error)
}

// ProgressFunc receives a fraction in [0,1] and a status message.
type ProgressFunc func(fraction float64, message string)

// Result is a completed translation. Immutable once produced.
type Result struct {
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	TargetLanguage string  `json:"target_language"`
	ProcessingTime float64 `json:"processing_time"`
	SegmentCount   int     `json:"segment_count"`
}

// segmentsSchema constrains the service to return {"segments":[{ts,text}]}.
var segmentsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"segments": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"ts": {"type": "string"},
					"text": {"type": "string"}
				},
				"required": ["ts", "text"],
				"additionalProperties": false
			}
		}
	},
	"required": ["segments"],
	"additionalProperties": false
}`)

// Translator translates transcript segments.
type Translator struct {
	client            ChatClient
	model             string
	maxTokensPerChunk int
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithMaxTokensPerChunk overrides the per-request token budget.
func WithMaxTokensPerChunk(n int) TranslatorOption {
	return func(t *Translator) { t.maxTokensPerChunk = n }
}

func New(client ChatClient, model string, opts ...TranslatorOption) *Translator {
	t := &Translator{client: client, model: model, maxTokensPerChunk: defaultMaxTokensPerChunk}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate translates every segment's text to targetLanguage, leaving the
// ts field untouched. The output has exactly the same length and order as
// the input; a count mismatch from the service is a hard error, never padded
// or truncated. Requests are split when the estimated size exceeds the token
// budget. The Translator does not retry; retries are the caller's choice.
func (t *Translator) Translate(ctx context.Context, segments []segment.TranslationSegment, targetLanguage, sourceLanguage string, temperature float64, progress ProgressFunc) ([]segment.TranslationSegment, error) {
	if targetLanguage == "" {
		return nil, apperrors.Validation("Target language cannot be empty", "target_language")
	}
	if len(segments) == 0 {
		return nil, apperrors.Validation("No transcript segments to translate", "segments")
	}
	report := func(p float64, msg string) {
		if progress != nil {
			progress(p, msg)
		}
	}

	chunks := t.chunkByBudget(segments)

	var translated []segment.TranslationSegment
	for i, chunk := range chunks {
		report(float64(i)/float64(len(chunks)), fmt.Sprintf("Translating chunk %d/%d", i+1, len(chunks)))

		out, err := t.translateChunk(ctx, chunk, targetLanguage, temperature)
		if err != nil {
			// Surface whatever was completed so the caller can keep it as a
			// partial translation.
			if len(translated) > 0 {
				return nil, apperrors.TranslationFailed(err, segment.Reconstruct(translated))
			}
			return nil, err
		}
		translated = append(translated, out...)
	}

	report(1.0, "Translation completed!")
	return translated, nil
}

// chunkByBudget greedily packs segments into request-sized chunks. A single
// oversized segment still forms its own chunk.
func (t *Translator) chunkByBudget(segments []segment.TranslationSegment) [][]segment.TranslationSegment {
	budgetChars := t.maxTokensPerChunk * 4

	total := 0
	for _, s := range segments {
		total += serializedLen(s)
	}
	if total/4 <= t.maxTokensPerChunk {
		return [][]segment.TranslationSegment{segments}
	}

	var chunks [][]segment.TranslationSegment
	var current []segment.TranslationSegment
	currentChars := 0
	for _, s := range segments {
		n := serializedLen(s)
		if currentChars+n > budgetChars && len(current) > 0 {
			chunks = append(chunks, current)
			current = []segment.TranslationSegment{s}
			currentChars = n
		} else {
			current = append(current, s)
			currentChars += n
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func serializedLen(s segment.TranslationSegment) int {
	b, _ := json.Marshal(s)
	return len(b)
}

func (t *Translator) translateChunk(ctx context.Context, chunk []segment.TranslationSegment, targetLanguage string, temperature float64) ([]segment.TranslationSegment, error) {
	systemPrompt := fmt.Sprintf(`You are a professional translator. Translate only the "text" field of each segment to %s.
Keep the "ts" field exactly unchanged. Maintain natural flow and consistency across segments.
Output must be valid JSON following the provided schema.`, targetLanguage)

	payload, err := json.MarshalIndent(map[string]any{"segments": chunk}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode segments: %w", err)
	}
	userPrompt := fmt.Sprintf(`Translate the following transcript segments. Only translate the "text" fields to %s, keep "ts" fields unchanged:

%s`, targetLanguage, payload)

	raw, err := t.client.StructuredCompletion(ctx, t.model, systemPrompt, userPrompt, "transcript_translation", segmentsSchema, temperature)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Segments []segment.TranslationSegment `json:"segments"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, apperrors.Processing("translation response is not valid JSON", err)
	}
	if len(decoded.Segments) != len(chunk) {
		return nil, apperrors.Processing(fmt.Sprintf(
			"Translation returned %d segments but expected %d", len(decoded.Segments), len(chunk)), nil)
	}
	return decoded.Segments, nil
}

// Document runs the full translation workflow over a timestamped transcript:
// parse into segments, translate, reconstruct the document.
func (t *Translator) Document(ctx context.Context, transcriptText, targetLanguage, sourceLanguage string, temperature float64, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	report := func(p float64, msg string) {
		if progress != nil {
			progress(p, msg)
		}
	}

	report(0.1, "Parsing transcript into segments...")
	segments := segment.ParseTranslationSegments(transcriptText)
	if len(segments) == 0 {
		return nil, apperrors.Validation("No valid transcript segments found", "transcript")
	}
	report(0.2, fmt.Sprintf("Found %d segments to translate...", len(segments)))

	translated, err := t.Translate(ctx, segments, targetLanguage, sourceLanguage, temperature, func(p float64, msg string) {
		report(0.2+p*0.7, msg)
	})
	if err != nil {
		return nil, err
	}

	report(0.9, "Reconstructing translated transcript...")
	translatedText := segment.Reconstruct(translated)

	report(1.0, "Translation completed!")
	return &Result{
		OriginalText:   transcriptText,
		TranslatedText: translatedText,
		TargetLanguage: targetLanguage,
		ProcessingTime: time.Since(start).Seconds(),
		SegmentCount:   len(segments),
	}, nil
}
