// Package doctor runs readiness diagnostics for config, the scoring service, and speech input.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
)

const probeTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// AudioSelector resolves the capture source; audio.SelectDevice in production.
type AudioSelector func(ctx context.Context, input, fallback string) (audio.Selection, error)

// Options overrides the probes used by Run.
type Options struct {
	HTTPClient  *http.Client
	SelectAudio AudioSelector
}

// Run executes config, service, and speech checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, opts Options) Report {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: probeTimeout}
	}
	if opts.SelectAudio == nil {
		opts.SelectAudio = audio.SelectDevice
	}

	checks := []Check{checkConfig(loaded)}
	checks = append(checks, checkService(ctx, opts.HTTPClient, loaded.Config.Service.BaseURL))
	checks = append(checks, checkSpeech(loaded.Config))
	if loaded.Config.Speech.Enable {
		checks = append(checks, checkAudioSelection(ctx, opts.SelectAudio, loaded.Config.Speech.Audio))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkService counts any HTTP response from the base URL as reachable.
func checkService(ctx context.Context, client *http.Client, baseURL string) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return Check{Name: "service", Pass: false, Message: fmt.Sprintf("invalid base url: %v", err)}
	}

	startedAt := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: "service", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	return Check{
		Name:    "service",
		Pass:    true,
		Message: fmt.Sprintf("HTTP %d from %s in %dms", resp.StatusCode, baseURL, time.Since(startedAt).Milliseconds()),
	}
}

func checkSpeech(cfg config.Config) Check {
	if !cfg.Speech.Enable {
		message := "disabled"
		if strings.TrimSpace(cfg.Speech.Deepgram.APIKey) == "" {
			message = "disabled (set DEEPGRAM_API_KEY to enable voice answers)"
		}
		return Check{Name: "speech", Pass: true, Message: message}
	}
	return Check{
		Name:    "speech",
		Pass:    true,
		Message: fmt.Sprintf("deepgram model %s, language %s", cfg.Speech.Deepgram.Model, cfg.Speech.Language),
	}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, selectAudio AudioSelector, cfg config.AudioConfig) Check {
	selection, err := selectAudio(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
