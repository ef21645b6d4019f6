package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. REHEARSE_SERVICE_BASE_URL.
const EnvPrefix = "REHEARSE"

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"service-url":   "service.base_url",
	"questions":     "interview.questions",
	"display-delay": "interview.display_delay",
	"report":        "report.path",
	"lang":          "ui.lang",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves the config file and layers defaults, file, .env, environment,
// and flags (lowest to highest), then validates the result. flags may be nil.
func Load(explicitPath string, flags *pflag.FlagSet) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	warnings := make([]Warning, 0)
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("ignoring %s: %v", DotEnvFile, err)})
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("speech.deepgram.api_key", EnvPrefix+"_SPEECH_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY")

	if flags != nil {
		for name, key := range flagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return Loaded{}, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	exists := true
	if _, err := os.Stat(resolvedPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		exists = false
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	}

	if exists {
		v.SetConfigFile(resolvedPath)
		if filepath.Ext(resolvedPath) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Loaded{}, fmt.Errorf("decode config %q: %w", resolvedPath, err)
	}

	if flags != nil {
		if noSpeech, err := flags.GetBool("no-speech"); err == nil && noSpeech {
			cfg.Speech.Enable = false
		}
	}

	validationWarnings, err := Validate(&cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("invalid config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, validationWarnings...)

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   exists,
	}, nil
}
