package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Kind categorizes errors so callers can decide between retrying,
// failing the job, or degrading gracefully.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindFileIO            Kind = "file_io"
	KindAPI               Kind = "api"
	KindNetwork           Kind = "network"
	KindProcessing        Kind = "processing"
	KindConfiguration     Kind = "configuration"
	KindMemory            Kind = "memory"
	KindTranslation       Kind = "translation"
	KindIntegratedDisplay Kind = "integrated_display"
)

// Error is the application error type. StatusCode and RetryAfter are only
// meaningful for API errors; Field only for validation errors.
type Error struct {
	Kind       Kind
	Message    string
	Field      string
	StatusCode int
	RetryAfter int    // seconds, hint from the service
	Partial    string // partial translation payload for KindTranslation
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by kind so errors.Is(err, &Error{Kind: KindAPI})
// style checks work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func Validation(message, field string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

func FileIO(message string, err error) *Error {
	return &Error{Kind: KindFileIO, Message: message, Err: err}
}

func API(message string, statusCode int) *Error {
	return &Error{Kind: KindAPI, Message: message, StatusCode: statusCode}
}

func Network(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

func Processing(message string, err error) *Error {
	return &Error{Kind: KindProcessing, Message: message, Err: err}
}

func Configuration(message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Err: err}
}

func Memory(message string) *Error {
	return &Error{Kind: KindMemory, Message: message}
}

// As and Is forward to the standard library so callers do not need a second
// errors import alongside this package.
func As(err error, target any) bool { return errors.As(err, target) }

func Is(err, target error) bool { return errors.Is(err, target) }

// GetKind returns the kind of err, or KindProcessing for errors that did not
// originate in this package.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProcessing
}

// StatusCode returns the HTTP status associated with an API error, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// Retryable reports whether a failed API call is worth retrying.
// Authentication (401), quota (402) and forbidden (403) failures are
// permanent; rate limits, timeouts, 5xx and unknown failures are transient.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Kind {
	case KindValidation, KindFileIO, KindConfiguration, KindMemory:
		return false
	case KindAPI, KindNetwork:
		switch e.StatusCode {
		case 401, 402, 403:
			return false
		}
		return true
	default:
		return true
	}
}

// ClassifyAPIError converts an OpenAI-style failure (status code plus the
// error message body) into a typed API error with a user-oriented message.
func ClassifyAPIError(statusCode int, body string) *Error {
	lower := strings.ToLower(body)
	switch {
	case statusCode == 429 || strings.Contains(lower, "rate limit"):
		e := API("Rate limit exceeded. Please wait a moment before trying again.", 429)
		e.RetryAfter = 60
		return e
	case statusCode == 401 || strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication"):
		return API("Invalid API key. Please check your OpenAI API key in settings.", 401)
	case statusCode == 402 || strings.Contains(lower, "quota") || strings.Contains(lower, "billing") || strings.Contains(lower, "insufficient"):
		return API("OpenAI quota exceeded or billing issue. Please check your OpenAI account.", 402)
	case statusCode == 403:
		return API("Access forbidden. Please check your OpenAI account permissions.", 403)
	case statusCode == 404 && strings.Contains(lower, "model"):
		return API("Selected model is not available. Please choose a different model.", 404)
	case statusCode == 413 || strings.Contains(lower, "request too large"):
		return API("Request too large. Try reducing the chunk size or file size.", 413)
	case statusCode >= 500:
		return API("OpenAI service temporarily unavailable. Please try again later.", statusCode)
	default:
		msg := strings.TrimSpace(body)
		if msg == "" {
			msg = "unknown error"
		}
		return API(fmt.Sprintf("OpenAI API error: %s", msg), statusCode)
	}
}

// ClassifyTransportError wraps a failed HTTP round trip (timeouts, DNS,
// connection resets) as a network error.
func ClassifyTransportError(err error) *Error {
	return Network("Network timeout. Please check your internet connection and try again.", err)
}

// ValidateAPIKey checks the OpenAI API key format before any network call.
func ValidateAPIKey(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return Validation("API key is required", "api_key")
	}
	if !strings.HasPrefix(apiKey, "sk-") {
		return Validation("API key must start with 'sk-'", "api_key")
	}
	if len(apiKey) < 20 {
		return Validation("API key is too short", "api_key")
	}
	return nil
}

// ValidateFilePath checks that path names an existing regular file.
func ValidateFilePath(path string) error {
	if path == "" {
		return Validation("file path is required", "file_path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileIO(fmt.Sprintf("file not found: %s", path), err)
	}
	if info.IsDir() {
		return FileIO(fmt.Sprintf("path is not a file: %s", path), nil)
	}
	return nil
}

// UserMessage maps an error to a short, action-oriented message suitable for
// end users. Raw error strings are only used as a last resort.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Processing failed. Please try again or check your settings."
	}
	switch e.Kind {
	case KindAPI:
		switch e.StatusCode {
		case 401:
			return "Please enter a valid OpenAI API key in the settings panel."
		case 402:
			return "OpenAI API quota exceeded. Please check your OpenAI account billing."
		case 429:
			retry := e.RetryAfter
			if retry == 0 {
				retry = 60
			}
			return fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before trying again.", retry)
		case 413:
			return "Request too large. Try reducing the chunk size."
		}
		return e.Message
	case KindNetwork:
		return "Network timeout. Please check your internet connection and try again."
	case KindValidation:
		return e.Message
	case KindFileIO:
		return "File error: " + e.Message
	case KindConfiguration:
		return "Invalid settings. Please check your configuration."
	case KindMemory:
		return "Audio file is too large to process safely. Try a smaller file."
	case KindTranslation:
		return "Translation failed. The transcription was successful, but translation encountered an error."
	case KindIntegratedDisplay:
		return "Failed to generate integrated display. Showing transcription only."
	default:
		return e.Message
	}
}
