// Package console is the terminal front end: it renders controller snapshots
// and turns typed lines into controller operations.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/i18n"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/report"
	"github.com/rbright/rehearse/internal/results"
	"github.com/rbright/rehearse/internal/scoring"
)

// Controller is the interview surface the console drives.
type Controller interface {
	StartSession(ctx context.Context, totalQuestions int) error
	UpdateDraft(text string) error
	SubmitAnswer(ctx context.Context) error
	Reset()
	Snapshot() interview.Snapshot
}

// Speech is the optional voice input capability.
type Speech interface {
	IsAvailable(ctx context.Context) bool
	BeginCapture(ctx context.Context, onResult func(string), onEnd func()) error
}

// Options configures one console.
type Options struct {
	In               io.Reader
	Out              io.Writer
	Printer          *i18n.Printer
	Speech           Speech
	Color            bool
	DefaultQuestions int
	ReportPath       string
	Now              func() time.Time
}

type outcome int

const (
	outcomeFinished outcome = iota + 1
	outcomeReset
	outcomeQuit
)

// Console runs interactive interviews until the input ends or the user quits.
type Console struct {
	logger *slog.Logger
	opts   Options
	p      *i18n.Printer

	outMu sync.Mutex
	lines chan string
	// changed receives a token after every controller mutation.
	changed chan struct{}
}

// New constructs a console. Pass Notify as the controller's change callback.
func New(logger *slog.Logger, opts Options) *Console {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultQuestions == 0 {
		opts.DefaultQuestions = interview.MinQuestions
	}
	return &Console{
		logger:  logger,
		opts:    opts,
		p:       opts.Printer,
		changed: make(chan struct{}, 1),
	}
}

// Notify records that controller state changed. It never blocks.
func (c *Console) Notify(interview.Snapshot) {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Run drives interviews on ctrl. It returns nil when input ends, the user
// quits, or ctx is cancelled.
func (c *Console) Run(ctx context.Context, ctrl Controller) error {
	done := make(chan struct{})
	defer close(done)
	c.lines = readLines(c.opts.In, done)
	c.println(c.p.T("Welcome"))

	for {
		n, ok := c.askQuestionCount(ctx)
		if !ok {
			break
		}

		c.println(c.p.T("StartingSession"))
		if err := ctrl.StartSession(ctx, n); err != nil {
			if errors.Is(err, interview.ErrValidation) {
				c.println(c.countHint())
			} else {
				c.println(c.p.Td("SessionStartFailed", map[string]any{"Error": err.Error()}))
			}
			continue
		}

		switch c.answerLoop(ctx, ctrl) {
		case outcomeQuit:
			c.println(c.p.T("Goodbye"))
			return nil
		case outcomeReset:
			ctrl.Reset()
			c.println(c.p.T("SessionReset"))
			continue
		}

		snap := ctrl.Snapshot()
		c.printFinal(snap)
		c.writeReport(snap)

		if !c.confirm(ctx, c.p.T("PlayAgain")) {
			break
		}
		ctrl.Reset()
	}

	c.println(c.p.T("Goodbye"))
	return nil
}

func (c *Console) askQuestionCount(ctx context.Context) (int, bool) {
	for {
		c.print(c.p.Td("PromptQuestionCount", map[string]any{
			"Min":     interview.MinQuestions,
			"Max":     interview.MaxQuestions,
			"Default": c.opts.DefaultQuestions,
		}))
		line, ok := c.readLine(ctx)
		if !ok {
			return 0, false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return c.opts.DefaultQuestions, true
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			c.println(c.countHint())
			continue
		}
		return n, true
	}
}

func (c *Console) countHint() string {
	return c.p.Td("InvalidQuestionCount", map[string]any{"Min": interview.MinQuestions, "Max": interview.MaxQuestions})
}

func (c *Console) answerLoop(ctx context.Context, ctrl Controller) outcome {
	c.showQuestion(ctrl.Snapshot())
	c.println(c.p.T("HelpHint"))

	for {
		c.print("> ")
		line, ok := c.readLine(ctx)
		if !ok {
			return outcomeQuit
		}
		trimmed := strings.TrimSpace(line)

		if !strings.HasPrefix(trimmed, "/") {
			if err := ctrl.UpdateDraft(line); err != nil {
				c.logger.Warn("update draft failed", "error", err.Error())
				continue
			}
			if c.submit(ctx, ctrl) {
				return outcomeFinished
			}
			continue
		}

		switch command := strings.ToLower(strings.Fields(trimmed)[0]); command {
		case "/submit":
			if c.submit(ctx, ctrl) {
				return outcomeFinished
			}
		case "/speak":
			c.speak(ctx, ctrl)
		case "/draft":
			if draft := ctrl.Snapshot().Draft; strings.TrimSpace(draft) != "" {
				c.println(c.p.Td("Draft", map[string]any{"Draft": draft}))
			} else {
				c.println(c.p.T("DraftEmpty"))
			}
		case "/reset":
			return outcomeReset
		case "/quit", "/exit":
			return outcomeQuit
		case "/help":
			c.println(c.p.T("Help"))
		default:
			c.println(c.p.Td("UnknownCommand", map[string]any{"Command": command}))
		}
	}
}

// submit sends the draft and reports whether the interview finished.
func (c *Console) submit(ctx context.Context, ctrl Controller) bool {
	c.println(c.p.T("Submitting"))
	err := ctrl.SubmitAnswer(ctx)
	switch {
	case err == nil:
	case errors.Is(err, interview.ErrEmptyAnswer):
		c.println(c.p.T("EmptyAnswer"))
		return false
	case errors.Is(err, interview.ErrSessionInvalid), errors.Is(err, scoring.ErrInvalidSession):
		c.println(c.p.T("SessionInvalid"))
		return false
	case errors.Is(err, interview.ErrRequestInFlight), errors.Is(err, interview.ErrRevealPending):
		c.println(c.p.T("Busy"))
		return false
	default:
		c.println(c.p.Td("SubmissionFailed", map[string]any{"Error": err.Error()}))
		return false
	}

	snap := ctrl.Snapshot()
	if snap.Evaluation != nil {
		c.println(c.p.Td("Evaluation", map[string]any{
			"Score": c.score(snap.Evaluation.Score),
			"Band":  c.band(snap.Evaluation.Score),
		}))
		c.println(c.p.Td("Feedback", map[string]any{"Feedback": snap.Evaluation.Feedback}))
	}
	if snap.Finished() {
		return true
	}

	c.waitForReveal(ctx, ctrl)
	c.showQuestion(ctrl.Snapshot())
	return false
}

func (c *Console) waitForReveal(ctx context.Context, ctrl Controller) {
	for ctrl.Snapshot().RevealPending {
		select {
		case <-c.changed:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Console) speak(ctx context.Context, ctrl Controller) {
	if c.opts.Speech == nil || !c.opts.Speech.IsAvailable(ctx) {
		c.println(c.p.T("SpeechUnavailable"))
		return
	}

	ended := make(chan struct{})
	err := c.opts.Speech.BeginCapture(ctx,
		func(text string) {
			if err := ctrl.UpdateDraft(text); err != nil {
				c.logger.Warn("apply transcript failed", "error", err.Error())
				return
			}
			c.println(c.p.Td("Heard", map[string]any{"Text": text}))
		},
		func() { close(ended) },
	)
	if err != nil {
		c.println(c.p.T("SpeechBusy"))
		return
	}

	c.println(c.p.T("Listening"))
	select {
	case <-ended:
		c.println(c.p.T("ListeningDone"))
	case <-ctx.Done():
	}
}

func (c *Console) showQuestion(snap interview.Snapshot) {
	if snap.Question == nil {
		return
	}
	c.println("")
	c.println(c.p.Td("QuestionHeader", map[string]any{
		"Ordinal":  snap.Question.Ordinal,
		"Total":    snap.Session.TotalQuestions,
		"Progress": fmt.Sprintf("%.0f", results.ProgressPercent(snap)),
	}))
	c.println(snap.Question.Text)
}

func (c *Console) printFinal(snap interview.Snapshot) {
	c.println("")
	c.println(c.p.T("InterviewComplete"))
	for _, entry := range snap.Results {
		c.println(c.p.Td("ResultQuestion", map[string]any{"Ordinal": entry.Question.Ordinal, "Question": entry.Question.Text}))
		c.println(c.p.Td("ResultAnswer", map[string]any{"Answer": entry.Answer}))
		c.println(c.p.Td("ResultScore", map[string]any{"Score": c.score(entry.Score), "Band": c.band(entry.Score)}))
		c.println(c.p.Td("ResultFeedback", map[string]any{"Feedback": entry.Feedback}))
	}

	points := results.ScoreTrend(snap)
	trend := make([]string, 0, len(points))
	for _, point := range points {
		trend = append(trend, fmt.Sprintf("(%d, %.1f)", point.Ordinal, point.Score))
	}
	c.println(c.p.Td("Trend", map[string]any{"Trend": strings.Join(trend, " ")}))

	summary := results.Summarize(snap)
	c.println(c.p.Tp("QuestionsAnswered", summary.Answered))
	if summary.Answered > 0 {
		c.println(c.p.Td("Summary", map[string]any{
			"Average": fmt.Sprintf("%.1f", summary.Average),
			"Best":    fmt.Sprintf("%.1f", summary.Best),
			"Worst":   fmt.Sprintf("%.1f", summary.Worst),
		}))
	}
}

func (c *Console) writeReport(snap interview.Snapshot) {
	if c.opts.ReportPath == "" {
		return
	}
	if err := report.WriteFile(c.opts.ReportPath, report.Build(snap, c.opts.Now())); err != nil {
		c.logger.Error("write report failed", "path", c.opts.ReportPath, "error", err.Error())
		c.println(c.p.Td("ReportFailed", map[string]any{"Error": err.Error()}))
		return
	}
	c.logger.Info("report written", "path", c.opts.ReportPath)
	c.println(c.p.Td("ReportWritten", map[string]any{"Path": c.opts.ReportPath}))
}

func (c *Console) confirm(ctx context.Context, prompt string) bool {
	c.print(prompt)
	line, ok := c.readLine(ctx)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "д", "да":
		return true
	default:
		return false
	}
}

var bandColors = map[results.Band]string{
	results.BandGood:    "\x1b[32m",
	results.BandWarning: "\x1b[33m",
	results.BandPoor:    "\x1b[31m",
}

var bandMessages = map[results.Band]string{
	results.BandGood:    "BandGood",
	results.BandWarning: "BandWarning",
	results.BandPoor:    "BandPoor",
}

func (c *Console) band(score float64) string {
	b := results.ScoreColorBand(score)
	return c.paint(b, c.p.T(bandMessages[b]))
}

func (c *Console) score(score float64) string {
	return c.paint(results.ScoreColorBand(score), fmt.Sprintf("%.1f", score))
}

func (c *Console) paint(b results.Band, text string) string {
	if !c.opts.Color {
		return text
	}
	return bandColors[b] + text + "\x1b[0m"
}

func (c *Console) readLine(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-c.lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

func (c *Console) print(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = io.WriteString(c.opts.Out, s)
}

func (c *Console) println(s string) {
	c.print(s + "\n")
}

// readLines feeds lines from r until EOF or done; the channel is then closed.
// A Scan already blocked on r returns only when r yields its next line.
func readLines(r io.Reader, done <-chan struct{}) chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case <-done:
				return
			default:
			}
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}
