package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rbright/rehearse/internal/interview"
	"golang.org/x/text/language"
)

// Validate enforces config invariants and returns non-fatal warnings.
//
// Speech enabled without a Deepgram key is downgraded to speech disabled.
func Validate(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateHTTPURL("service.base_url", cfg.Service.BaseURL); err != nil {
		return nil, err
	}
	if cfg.Service.Timeout <= 0 {
		return nil, fmt.Errorf("service.timeout must be > 0")
	}
	if q := cfg.Interview.Questions; q < interview.MinQuestions || q > interview.MaxQuestions {
		return nil, fmt.Errorf("interview.questions must be between %d and %d, got %d",
			interview.MinQuestions, interview.MaxQuestions, q)
	}
	if cfg.Interview.DisplayDelay < 0 {
		return nil, fmt.Errorf("interview.display_delay must be >= 0")
	}

	if _, err := language.Parse(strings.TrimSpace(cfg.UI.Lang)); err != nil {
		return nil, fmt.Errorf("ui.lang %q is not a language tag", cfg.UI.Lang)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Log.Format)) {
	case "json", "text":
	default:
		return nil, fmt.Errorf("log.format must be one of: json, text")
	}

	if !cfg.Speech.Enable {
		return warnings, nil
	}
	if strings.TrimSpace(cfg.Speech.Language) == "" {
		return nil, fmt.Errorf("speech.language must not be empty")
	}
	if cfg.Speech.MaxDuration <= 0 {
		return nil, fmt.Errorf("speech.max_duration must be > 0")
	}
	if cfg.Speech.Deepgram.Endpointing < 0 {
		return nil, fmt.Errorf("speech.deepgram.endpointing must be >= 0")
	}
	if err := validateDeepgramURL(cfg.Speech.Deepgram.BaseURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Speech.Deepgram.APIKey) == "" {
		warnings = append(warnings, Warning{
			Message: "speech.deepgram.api_key is not set (DEEPGRAM_API_KEY); voice answers are disabled",
		})
		cfg.Speech.Enable = false
	}

	return warnings, nil
}

func validateHTTPURL(key, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}
	return nil
}

func validateDeepgramURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("speech.deepgram.base_url must be an absolute URL, got %q", raw)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return nil
	default:
		return fmt.Errorf("speech.deepgram.base_url must use http, https, ws, or wss")
	}
}
