// Package config loads the application configuration from YAML with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
)

// Config is the application configuration.
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	OpenAI struct {
		APIKey         string   `yaml:"api_key"` // overridden by OPENAI_API_KEY
		AudioModels    []string `yaml:"audio_models"`
		LanguageModels []string `yaml:"language_models"`
	} `yaml:"openai"`

	Defaults struct {
		AudioModel          string  `yaml:"audio_model"`
		LanguageModel       string  `yaml:"language_model"`
		Language            string  `yaml:"language"`
		TranslationLanguage string  `yaml:"translation_language"`
		ChunkMinutes        int     `yaml:"chunk_minutes"`
		OverlapSeconds      int     `yaml:"overlap_seconds"`
		TranslationEnabled  bool    `yaml:"translation_enabled"`
		Temperature         float64 `yaml:"temperature"`
		TranslationTemp     float64 `yaml:"translation_temperature"`
	} `yaml:"defaults"`

	SystemMessage string `yaml:"system_message"`

	TranslationLanguages map[string]string `yaml:"translation_languages"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Storage struct {
		TempDir  string `yaml:"temp_dir"`
		DataDir  string `yaml:"data_dir"`
		Database string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

// Load reads the YAML config at path, applies environment overrides and
// defaults, and validates required fields once.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Configuration(fmt.Sprintf("configuration file not found: %s", path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, apperrors.Configuration("invalid YAML configuration", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.Port)
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if len(c.OpenAI.AudioModels) == 0 {
		c.OpenAI.AudioModels = []string{"whisper-1"}
	}
	if len(c.OpenAI.LanguageModels) == 0 {
		c.OpenAI.LanguageModels = []string{"gpt-4o-mini", "gpt-4o"}
	}
	if c.Defaults.AudioModel == "" {
		c.Defaults.AudioModel = c.OpenAI.AudioModels[0]
	}
	if c.Defaults.LanguageModel == "" {
		c.Defaults.LanguageModel = c.OpenAI.LanguageModels[0]
	}
	if c.Defaults.Language == "" {
		c.Defaults.Language = "auto"
	}
	if c.Defaults.TranslationLanguage == "" {
		c.Defaults.TranslationLanguage = "Japanese"
	}
	if c.Defaults.ChunkMinutes == 0 {
		c.Defaults.ChunkMinutes = 5
	}
	if c.Defaults.OverlapSeconds == 0 {
		c.Defaults.OverlapSeconds = 2
	}
	if c.Defaults.TranslationTemp == 0 {
		c.Defaults.TranslationTemp = 0.3
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 2
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "temp"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "data/jobs.db"
	}
	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 60
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 24
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 500
	}
	if c.SystemMessage == "" {
		c.SystemMessage = "あなたはプロフェッショナルで親切な文字起こしアシスタントです。"
	}
	if len(c.TranslationLanguages) == 0 {
		c.TranslationLanguages = map[string]string{
			"Japanese": "ja",
			"English":  "en",
			"Spanish":  "es",
			"French":   "fr",
			"German":   "de",
			"Chinese":  "zh",
		}
	}
}

func (c *Config) validate() error {
	if c.Defaults.ChunkMinutes < 1 || c.Defaults.ChunkMinutes > 10 {
		return apperrors.Configuration("defaults.chunk_minutes must be between 1 and 10", nil)
	}
	if c.Defaults.OverlapSeconds < 0 || c.Defaults.OverlapSeconds > 60 {
		return apperrors.Configuration("defaults.overlap_seconds must be between 0 and 60", nil)
	}
	return nil
}

// LanguageCode maps a language name to its 2-letter lowercase code, used in
// the transcript.<lang>.txt artifact name. Unknown names fall back to the
// lowercased name truncated to two letters.
func (c *Config) LanguageCode(languageName string) string {
	if code, ok := c.TranslationLanguages[languageName]; ok {
		return strings.ToLower(code)
	}
	lower := strings.ToLower(languageName)
	if len(lower) > 2 {
		return lower[:2]
	}
	return lower
}
