// Package app wires configuration, logging, and the interview runtime behind the rehearse CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/console"
	"github.com/rbright/rehearse/internal/deepgram"
	"github.com/rbright/rehearse/internal/doctor"
	"github.com/rbright/rehearse/internal/i18n"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/logging"
	"github.com/rbright/rehearse/internal/scoring"
	"github.com/rbright/rehearse/internal/speech"
	"github.com/rbright/rehearse/internal/version"
	"github.com/spf13/cobra"
)

var (
	errDoctorFailed = errors.New("doctor checks failed")
	errNoDevices    = errors.New("no audio devices found")
)

// usageError marks failures caused by bad arguments rather than runtime problems.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute runs one CLI invocation and returns its exit code: 0 on success,
// 1 on runtime failure, 2 on usage errors.
func (r Runner) Execute(ctx context.Context, args []string) int {
	root := r.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var usage usageError
	if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, root.UsageString())
		return 2
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return 1
}

func (r Runner) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rehearse",
		Short: "Practice technical interviews against a scoring service",
		Long: "rehearse runs a mock interview in the terminal: questions come from a remote\n" +
			"scoring service, answers are typed or spoken, and each answer is scored.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(r.Stdin)
	root.SetOut(r.Stdout)
	root.SetErr(r.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file path (default $XDG_CONFIG_HOME/rehearse/config.yaml)")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (json, text)")
	pf.String("lang", "", "UI language (en, ru)")

	interviewCmd := r.interviewCommand()
	root.AddCommand(interviewCmd, r.doctorCommand(), r.devicesCommand(), r.versionCommand())

	// Bare `rehearse` starts an interview.
	root.RunE = interviewCmd.RunE
	root.Flags().AddFlagSet(interviewCmd.Flags())

	return root
}

func (r Runner) interviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Run an interactive mock interview (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := r.setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return r.runInterview(cmd.Context(), env)
		},
	}
	f := cmd.Flags()
	f.String("service-url", "", "Scoring service base URL")
	f.IntP("questions", "n", 0, "Default number of questions (5-20)")
	f.String("report", "", "Write a JSON or YAML report here when the interview finishes")
	f.Bool("no-speech", false, "Disable voice answers")
	f.Duration("display-delay", 0, "Pause between an evaluation and the next question")
	return cmd
}

func (r Runner) doctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, the scoring service, and speech input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := r.setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			report := doctor.Run(cmd.Context(), env.loaded, doctor.Options{})
			fmt.Fprintln(r.Stdout, report.String())
			env.logger.Info("doctor finished", "ok", report.OK(), "checks", len(report.Checks))
			if !report.OK() {
				return errDoctorFailed
			}
			return nil
		},
	}
}

func (r Runner) devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := r.setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			return r.listDevices(cmd.Context())
		},
	}
}

func (r Runner) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(r.Stdout, version.String())
		},
	}
}

// environment is the per-command runtime shared by every subcommand except version.
type environment struct {
	loaded  config.Loaded
	logger  *slog.Logger
	logPath string
	close   func()
}

func (r Runner) setup(cmd *cobra.Command) (environment, error) {
	configPath, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return environment{}, err
	}

	logRuntime, err := logging.New(logging.Options{
		Level:  loaded.Config.Log.Level,
		Format: loaded.Config.Log.Format,
	})
	if err != nil {
		return environment{}, fmt.Errorf("setup logging: %w", err)
	}

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range loaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", cmd.Name(),
		"config", loaded.Path,
		"config_exists", loaded.Exists,
		"log", logRuntime.Path,
	)

	return environment{
		loaded:  loaded,
		logger:  logger,
		logPath: logRuntime.Path,
		close:   func() { _ = logRuntime.Close() },
	}, nil
}

func (r Runner) runInterview(ctx context.Context, env environment) error {
	cfg := env.loaded.Config
	logger := env.logger

	client, err := scoring.New(scoring.Config{
		BaseURL: cfg.Service.BaseURL,
		Timeout: cfg.Service.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	bundle, err := i18n.Load(i18n.DefaultLanguage, logger)
	if err != nil {
		return err
	}

	var voice console.Speech
	if cfg.Speech.Enable {
		voice = newSpeech(cfg.Speech, logger)
	}

	in := r.Stdin
	if in == nil {
		in = os.Stdin
	}
	con := console.New(logger, console.Options{
		In:               in,
		Out:              r.Stdout,
		Printer:          bundle.Printer(cfg.UI.Lang),
		Speech:           voice,
		Color:            cfg.UI.Color && isTerminal(r.Stdout),
		DefaultQuestions: cfg.Interview.Questions,
		ReportPath:       cfg.Report.Path,
	})
	ctrl := interview.NewController(logger, client, interview.Options{
		DisplayDelay: cfg.Interview.DisplayDelay,
		OnChange:     con.Notify,
	})

	logger.Info("interview start",
		"service", client.BaseURL(),
		"speech", voice != nil,
		"lang", cfg.UI.Lang,
	)
	return con.Run(ctx, ctrl)
}

func newSpeech(cfg config.SpeechConfig, logger *slog.Logger) *speech.Adapter {
	provider := deepgram.NewProvider(deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		BaseURL:     cfg.Deepgram.BaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
		Endpointing: cfg.Deepgram.Endpointing,
	})
	mic := speech.PulseMicrophone{
		Input:    cfg.Audio.Input,
		Fallback: cfg.Audio.Fallback,
		Logger:   logger,
	}
	recognizer := speech.NewPulseDeepgram(logger, mic, provider)
	if cfg.Cues {
		recognizer.WithCues(audio.CuePlayer{})
	}
	return speech.NewAdapter(logger, recognizer, speech.Options{MaxDuration: cfg.MaxDuration})
}

func (r Runner) listDevices(ctx context.Context) error {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errNoDevices
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
