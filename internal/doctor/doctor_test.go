package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/stretchr/testify/require"
)

func scoringRoot(t *testing.T, status int) string {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server.URL
}

func loadedWith(baseURL string, speech bool) config.Loaded {
	cfg := config.Default()
	cfg.Service.BaseURL = baseURL
	cfg.Speech.Enable = speech
	if speech {
		cfg.Speech.Deepgram.APIKey = "dg"
	}
	return config.Loaded{Path: "/tmp/rehearse.yaml", Config: cfg, Exists: true}
}

func selectAudio(sel audio.Selection, err error) AudioSelector {
	return func(context.Context, string, string) (audio.Selection, error) { return sel, err }
}

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestRunAllPassWithSpeechDisabled(t *testing.T) {
	report := Run(context.Background(), loadedWith(scoringRoot(t, http.StatusNotFound), false), Options{
		SelectAudio: func(context.Context, string, string) (audio.Selection, error) {
			t.Fatal("audio selection must not run when speech is disabled")
			return audio.Selection{}, nil
		},
	})

	require.True(t, report.OK(), report.String())
	require.Len(t, report.Checks, 3)
	require.Contains(t, report.String(), "[OK] config: loaded \"/tmp/rehearse.yaml\"")
	require.Contains(t, report.String(), "[OK] service: HTTP 404 from")
	require.Contains(t, report.String(), "[OK] speech: disabled")
}

func TestRunSpeechEnabledChecksAudio(t *testing.T) {
	sel := audio.Selection{Device: audio.Device{ID: "alsa_input.usb"}, Warning: "input muted; using fallback"}
	report := Run(context.Background(), loadedWith(scoringRoot(t, http.StatusOK), true), Options{
		SelectAudio: selectAudio(sel, nil),
	})

	require.True(t, report.OK(), report.String())
	require.Contains(t, report.String(), "[OK] speech: deepgram model nova-2, language en-US")
	require.Contains(t, report.String(), `[OK] audio.device: selected "alsa_input.usb" (input muted; using fallback)`)
}

func TestRunAudioFailure(t *testing.T) {
	report := Run(context.Background(), loadedWith(scoringRoot(t, http.StatusOK), true), Options{
		SelectAudio: selectAudio(audio.Selection{}, errors.New("no pulse server")),
	})

	require.False(t, report.OK())
	require.Contains(t, report.String(), "[FAIL] audio.device: no pulse server")
}

func TestRunServiceUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	report := Run(context.Background(), loadedWith(url, false), Options{})
	require.False(t, report.OK())
	require.Contains(t, report.String(), "[FAIL] service: request failed")
}

func TestCheckConfigMissingFile(t *testing.T) {
	check := checkConfig(config.Loaded{Path: "/nope.yaml"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "using defaults")
}

func TestCheckSpeechMissingKeyHint(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.Enable = false
	check := checkSpeech(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "DEEPGRAM_API_KEY")
}
