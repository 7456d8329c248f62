package errors

import (
	"fmt"
	"strings"
)

// TranslationFallback builds the substitute translation text used when the
// translation step fails after a successful transcription. The job still
// completes; only the translation artifact is degraded. Any partial
// translation produced before the failure is appended.
func TranslationFallback(err error, partialTranslation string) string {
	msg := translationFailureMessage(err)

	var b strings.Builder
	b.WriteString("[Translation Error]\n")
	b.WriteString(msg)
	b.WriteString("\n\nTranscription completed successfully. You can download the transcript and try translation again later.")

	if strings.TrimSpace(partialTranslation) != "" {
		b.WriteString("\n\n[Partial Translation]\n")
		b.WriteString(partialTranslation)
	}
	return b.String()
}

func translationFailureMessage(err error) string {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "rate limit"):
		return "Translation rate limit exceeded. Please try again later."
	case strings.Contains(s, "quota"), strings.Contains(s, "billing"):
		return "Translation quota exceeded. Please check your OpenAI account."
	case strings.Contains(s, "timeout"), strings.Contains(s, "connection"):
		return "Translation service timeout. Please try again."
	default:
		return fmt.Sprintf("Translation service error: %v", err)
	}
}

// TranslationFailed wraps err as a translation error that carries any partial
// translation so callers can still surface it.
func TranslationFailed(err error, partialTranslation string) *Error {
	return &Error{
		Kind:    KindTranslation,
		Message: "translation failed: " + err.Error(),
		Err:     err,
		Partial: partialTranslation,
	}
}

// DisplayFailed wraps err as an integrated-display error. The caller falls
// back to showing the bare transcript.
func DisplayFailed(err error) *Error {
	return &Error{
		Kind:    KindIntegratedDisplay,
		Message: "integrated display generation failed: " + err.Error(),
		Err:     err,
	}
}
