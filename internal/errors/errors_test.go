package errors

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", API("rate limited", 429), true},
		{"server error", API("unavailable", 503), true},
		{"auth", API("bad key", 401), false},
		{"quota", API("quota", 402), false},
		{"forbidden", API("forbidden", 403), false},
		{"network", Network("timeout", nil), true},
		{"validation", Validation("bad input", "field"), false},
		{"file io", FileIO("missing", nil), false},
		{"configuration", Configuration("bad yaml", nil), false},
		{"memory", Memory("too big"), false},
		{"plain error", fmt.Errorf("unknown"), true},
		{"wrapped auth", fmt.Errorf("call failed: %w", API("bad key", 401)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		status     int
		body       string
		wantStatus int
		wantIn     string
	}{
		{429, "rate limit exceeded", 429, "Rate limit"},
		{200, "Rate limit reached for requests", 429, "Rate limit"},
		{401, "invalid api key provided", 401, "API key"},
		{402, "you exceeded your quota", 402, "quota"},
		{400, "insufficient_quota", 402, "quota"},
		{403, "forbidden", 403, "forbidden"},
		{404, "the model does not exist", 404, "model"},
		{413, "request too large", 413, "too large"},
		{500, "internal error", 500, "temporarily unavailable"},
		{418, "teapot", 418, "teapot"},
	}
	for _, tt := range tests {
		e := ClassifyAPIError(tt.status, tt.body)
		if e.StatusCode != tt.wantStatus {
			t.Errorf("ClassifyAPIError(%d, %q).StatusCode = %d, want %d", tt.status, tt.body, e.StatusCode, tt.wantStatus)
		}
		if !strings.Contains(strings.ToLower(e.Message), strings.ToLower(tt.wantIn)) {
			t.Errorf("ClassifyAPIError(%d, %q) message %q missing %q", tt.status, tt.body, e.Message, tt.wantIn)
		}
	}
}

func TestClassifyAPIErrorRetryAfter(t *testing.T) {
	e := ClassifyAPIError(429, "rate limit")
	if e.RetryAfter != 60 {
		t.Errorf("RetryAfter = %d, want 60", e.RetryAfter)
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		key string
		ok  bool
	}{
		{"sk-0000000000000000000000", true},
		{"", false},
		{"   ", false},
		{"pk-0000000000000000000000", false},
		{"sk-short", false},
	}
	for _, tt := range tests {
		err := ValidateAPIKey(tt.key)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateAPIKey(%q) = %v, want ok=%v", tt.key, err, tt.ok)
		}
	}
}

func TestValidateFilePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mp3")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateFilePath(file); err != nil {
		t.Errorf("existing file rejected: %v", err)
	}
	if err := ValidateFilePath(""); GetKind(err) != KindValidation {
		t.Errorf("empty path kind = %v", GetKind(err))
	}
	if err := ValidateFilePath(filepath.Join(dir, "missing")); GetKind(err) != KindFileIO {
		t.Errorf("missing file kind = %v", GetKind(err))
	}
	if err := ValidateFilePath(dir); GetKind(err) != KindFileIO {
		t.Errorf("directory kind = %v", GetKind(err))
	}
}

func TestTranslationFallback(t *testing.T) {
	text := TranslationFallback(fmt.Errorf("rate limit hit"), "")
	if !strings.HasPrefix(text, "[Translation Error]") {
		t.Errorf("fallback = %q", text)
	}
	if !strings.Contains(text, "Transcription completed successfully") {
		t.Error("fallback missing reassurance line")
	}
	if strings.Contains(text, "[Partial Translation]") {
		t.Error("no partial section expected")
	}

	withPartial := TranslationFallback(fmt.Errorf("boom"), "# 00:00 --> 05:00\n訳文")
	if !strings.Contains(withPartial, "[Partial Translation]") || !strings.Contains(withPartial, "訳文") {
		t.Errorf("partial not embedded: %q", withPartial)
	}
}

func TestTranslationFailedCarriesPartial(t *testing.T) {
	err := TranslationFailed(fmt.Errorf("boom"), "partial text")
	if err.Kind != KindTranslation {
		t.Errorf("kind = %v", err.Kind)
	}
	if err.Partial != "partial text" {
		t.Errorf("partial = %q", err.Partial)
	}
	var e *Error
	if !As(err, &e) || e.Partial != "partial text" {
		t.Error("partial lost through As")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err    error
		wantIn string
	}{
		{API("x", 401), "API key"},
		{API("x", 402), "quota"},
		{ClassifyAPIError(429, "rate limit"), "wait 60 seconds"},
		{Network("x", nil), "internet connection"},
		{Memory("x"), "too large"},
		{&Error{Kind: KindTranslation, Message: "x"}, "transcription was successful"},
		{fmt.Errorf("raw"), "try again"},
	}
	for _, tt := range tests {
		got := UserMessage(tt.err)
		if !strings.Contains(strings.ToLower(got), strings.ToLower(tt.wantIn)) {
			t.Errorf("UserMessage(%v) = %q, want substring %q", tt.err, got, tt.wantIn)
		}
	}
}

func TestGetKindUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Validation("bad", "f"))
	if GetKind(wrapped) != KindValidation {
		t.Errorf("kind = %v", GetKind(wrapped))
	}
	if GetKind(fmt.Errorf("plain")) != KindProcessing {
		t.Errorf("plain error kind = %v", GetKind(fmt.Errorf("plain")))
	}
}
