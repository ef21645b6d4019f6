// Package config resolves, loads, validates, and defaults rehearse configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by rehearse.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Interview InterviewConfig `mapstructure:"interview"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	UI        UIConfig        `mapstructure:"ui"`
	Log       LogConfig       `mapstructure:"log"`
	Report    ReportConfig    `mapstructure:"report"`
}

// ServiceConfig locates the remote scoring service.
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// InterviewConfig controls session length and pacing.
type InterviewConfig struct {
	Questions    int           `mapstructure:"questions"`
	DisplayDelay time.Duration `mapstructure:"display_delay"`
}

// SpeechConfig controls optional voice answers.
type SpeechConfig struct {
	Enable      bool           `mapstructure:"enable"`
	Language    string         `mapstructure:"language"`
	MaxDuration time.Duration  `mapstructure:"max_duration"`
	Cues        bool           `mapstructure:"cues"`
	Audio       AudioConfig    `mapstructure:"audio"`
	Deepgram    DeepgramConfig `mapstructure:"deepgram"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string `mapstructure:"input"`
	Fallback string `mapstructure:"fallback"`
}

// DeepgramConfig holds the streaming transcription settings.
type DeepgramConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	SmartFormat bool          `mapstructure:"smart_format"`
	Endpointing time.Duration `mapstructure:"endpointing"`
}

// UIConfig controls terminal presentation.
type UIConfig struct {
	Lang  string `mapstructure:"lang"`
	Color bool   `mapstructure:"color"`
}

// LogConfig controls the JSONL runtime log.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReportConfig controls the end-of-interview export. An empty path disables it.
type ReportConfig struct {
	Path string `mapstructure:"path"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Message string
}
