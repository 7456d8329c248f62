package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Defaults.ChunkMinutes != 5 {
		t.Errorf("chunk minutes = %d, want 5", cfg.Defaults.ChunkMinutes)
	}
	if cfg.Defaults.OverlapSeconds != 2 {
		t.Errorf("overlap = %d, want 2", cfg.Defaults.OverlapSeconds)
	}
	if cfg.Defaults.AudioModel != "whisper-1" {
		t.Errorf("audio model = %q", cfg.Defaults.AudioModel)
	}
	if cfg.Limits.MaxFileSizeMB != 500 {
		t.Errorf("max file size = %d, want 500", cfg.Limits.MaxFileSizeMB)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "openai:\n  api_key: sk-from-yaml-0000000000\n")
	t.Setenv("OPENAI_API_KEY", "sk-from-env-111111111111")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-from-env-111111111111" {
		t.Errorf("api key = %q, want env value", cfg.OpenAI.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if apperrors.GetKind(err) != apperrors.KindConfiguration {
		t.Errorf("kind = %v, want configuration", apperrors.GetKind(err))
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [broken\n")
	_, err := Load(path)
	if apperrors.GetKind(err) != apperrors.KindConfiguration {
		t.Errorf("kind = %v, want configuration", apperrors.GetKind(err))
	}
}

func TestLoadRejectsOutOfRangeChunk(t *testing.T) {
	path := writeConfig(t, "defaults:\n  chunk_minutes: 11\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for chunk_minutes 11")
	}

	path = writeConfig(t, "defaults:\n  overlap_seconds: 61\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for overlap_seconds 61")
	}
}

func TestLanguageCode(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"Japanese", "ja"},
		{"English", "en"},
		{"Swahili", "sw"},
	}
	for _, tt := range tests {
		if got := cfg.LanguageCode(tt.name); got != tt.want {
			t.Errorf("LanguageCode(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
