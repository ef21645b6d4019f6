package config

import (
	"time"

	"github.com/rbright/rehearse/internal/deepgram"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/spf13/viper"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 60 * time.Second,
		},
		Interview: InterviewConfig{
			Questions:    interview.MinQuestions,
			DisplayDelay: interview.DefaultDisplayDelay,
		},
		Speech: SpeechConfig{
			Enable:      true,
			Language:    "en-US",
			MaxDuration: 30 * time.Second,
			Cues:        true,
			Audio: AudioConfig{
				Input:    "default",
				Fallback: "default",
			},
			Deepgram: DeepgramConfig{
				BaseURL:     deepgram.DefaultBaseURL,
				Model:       deepgram.DefaultModel,
				SmartFormat: true,
				Endpointing: 800 * time.Millisecond,
			},
		},
		UI:  UIConfig{Lang: "en", Color: true},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// setDefaults registers every key so environment overrides resolve during unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("service.base_url", d.Service.BaseURL)
	v.SetDefault("service.timeout", d.Service.Timeout)
	v.SetDefault("interview.questions", d.Interview.Questions)
	v.SetDefault("interview.display_delay", d.Interview.DisplayDelay)
	v.SetDefault("speech.enable", d.Speech.Enable)
	v.SetDefault("speech.language", d.Speech.Language)
	v.SetDefault("speech.max_duration", d.Speech.MaxDuration)
	v.SetDefault("speech.cues", d.Speech.Cues)
	v.SetDefault("speech.audio.input", d.Speech.Audio.Input)
	v.SetDefault("speech.audio.fallback", d.Speech.Audio.Fallback)
	v.SetDefault("speech.deepgram.api_key", d.Speech.Deepgram.APIKey)
	v.SetDefault("speech.deepgram.base_url", d.Speech.Deepgram.BaseURL)
	v.SetDefault("speech.deepgram.model", d.Speech.Deepgram.Model)
	v.SetDefault("speech.deepgram.smart_format", d.Speech.Deepgram.SmartFormat)
	v.SetDefault("speech.deepgram.endpointing", d.Speech.Deepgram.Endpointing)
	v.SetDefault("ui.lang", d.UI.Lang)
	v.SetDefault("ui.color", d.UI.Color)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("report.path", d.Report.Path)
}
