// Package interview owns the client-side interview session state machine.
package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/scoring"
)

const (
	MinQuestions        = 5
	MaxQuestions        = 20
	DefaultDisplayDelay = 500 * time.Millisecond
)

// Service is the remote scoring surface the controller drives.
type Service interface {
	StartSession(ctx context.Context, totalQuestions int) (scoring.Started, error)
	SubmitAnswer(ctx context.Context, sessionID string, answer string) (scoring.Evaluated, error)
}

// Options tunes controller timing and change notification.
type Options struct {
	// DisplayDelay is how long an evaluation stays up before the next question
	// is revealed. Zero or negative reveals immediately.
	DisplayDelay time.Duration
	// Scheduler must invoke callbacks asynchronously. Defaults to time.AfterFunc.
	Scheduler Scheduler
	// OnChange receives a snapshot after every committed mutation. It is called
	// without the controller lock held and may call back into the controller.
	OnChange func(Snapshot)
}

// Controller serializes all state changes for one interview at a time.
type Controller struct {
	logger       *slog.Logger
	service      Service
	scheduler    Scheduler
	displayDelay time.Duration
	onChange     func(Snapshot)

	mu           sync.Mutex
	state        fsm.State
	sessionID    string
	total        int
	answered     int
	question     *Question
	draft        string
	evaluation   *Evaluation
	results      []ResultEntry
	inFlight     bool
	cancelReveal func() bool
	invalidated  bool
	// generation changes on every Reset so late responses can be discarded.
	generation uint64
}

// NewController constructs a controller in the not-started state.
func NewController(logger *slog.Logger, service Service, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = timerScheduler{}
	}

	return &Controller{
		logger:       logger,
		service:      service,
		scheduler:    scheduler,
		displayDelay: opts.DisplayDelay,
		onChange:     opts.OnChange,
		state:        fsm.StateNotStarted,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a deep copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// StartSession requests a new session of totalQuestions questions.
func (c *Controller) StartSession(ctx context.Context, totalQuestions int) error {
	if totalQuestions < MinQuestions || totalQuestions > MaxQuestions {
		return fmt.Errorf("%w: %d is outside [%d, %d]", ErrValidation, totalQuestions, MinQuestions, MaxQuestions)
	}

	c.mu.Lock()
	if c.state != fsm.StateNotStarted {
		c.mu.Unlock()
		return ErrSessionActive
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrRequestInFlight
	}
	c.inFlight = true
	generation := c.generation
	c.unlockAndNotify()

	startedAt := time.Now()
	started, err := c.service.StartSession(ctx, totalQuestions)
	latency := time.Since(startedAt)

	c.mu.Lock()
	c.inFlight = false
	if generation != c.generation {
		c.unlockAndNotify()
		return ErrSessionDiscarded
	}
	if err != nil {
		c.unlockAndNotify()
		c.logger.Error("session start failed",
			"questions", totalQuestions,
			"latency_ms", latency.Milliseconds(),
			"error", err.Error(),
		)
		return fmt.Errorf("%w: %w", ErrSessionStartFailed, err)
	}
	if err := c.transitionLocked(fsm.EventStart); err != nil {
		c.unlockAndNotify()
		return err
	}

	c.sessionID = started.SessionID
	c.total = totalQuestions
	c.answered = 1
	c.question = &Question{Text: started.Question, Ordinal: 1}
	c.draft = ""
	c.evaluation = nil
	c.results = nil
	c.invalidated = false
	c.unlockAndNotify()

	c.logger.Info("session started",
		"session_id", started.SessionID,
		"questions", totalQuestions,
		"latency_ms", latency.Milliseconds(),
	)
	return nil
}

// UpdateDraft overwrites the answer draft; the last writer wins.
func (c *Controller) UpdateDraft(text string) error {
	c.mu.Lock()
	if c.state != fsm.StateInProgress {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	c.draft = text
	c.unlockAndNotify()
	return nil
}

// SubmitAnswer sends the current draft for scoring.
//
// Failures leave the session in progress with the draft intact so the
// caller can retry.
func (c *Controller) SubmitAnswer(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state != fsm.StateInProgress:
		c.mu.Unlock()
		return ErrNotInProgress
	case c.inFlight:
		c.mu.Unlock()
		return ErrRequestInFlight
	case c.cancelReveal != nil:
		c.mu.Unlock()
		return ErrRevealPending
	case c.invalidated:
		c.mu.Unlock()
		return ErrSessionInvalid
	}
	answer := strings.TrimSpace(c.draft)
	if answer == "" {
		c.mu.Unlock()
		return ErrEmptyAnswer
	}

	question := *c.question
	sessionID := c.sessionID
	generation := c.generation
	c.inFlight = true
	c.unlockAndNotify()

	startedAt := time.Now()
	evaluated, err := c.service.SubmitAnswer(ctx, sessionID, answer)
	latency := time.Since(startedAt)

	c.mu.Lock()
	c.inFlight = false
	if generation != c.generation {
		c.unlockAndNotify()
		return ErrSessionDiscarded
	}
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidSession) {
			c.invalidated = true
		}
		c.unlockAndNotify()
		c.logger.Error("answer submission failed",
			"session_id", sessionID,
			"ordinal", question.Ordinal,
			"latency_ms", latency.Milliseconds(),
			"error", err.Error(),
		)
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	c.results = append(c.results, ResultEntry{
		Question: question,
		Answer:   answer,
		Score:    evaluated.Score,
		Feedback: evaluated.Feedback,
	})
	c.evaluation = &Evaluation{Score: evaluated.Score, Feedback: evaluated.Feedback}

	logAttrs := []any{
		"session_id", sessionID,
		"ordinal", question.Ordinal,
		"score", evaluated.Score,
		"latency_ms", latency.Milliseconds(),
	}

	if evaluated.Finished() {
		if err := c.transitionLocked(fsm.EventFinish); err != nil {
			c.unlockAndNotify()
			return err
		}
		c.question = nil
		c.draft = ""
		c.unlockAndNotify()
		c.logger.Info("session finished", logAttrs...)
		return nil
	}

	next := &Question{Text: evaluated.NextQuestion, Ordinal: len(c.results) + 1}
	if c.displayDelay <= 0 {
		err := c.advanceLocked(next)
		c.unlockAndNotify()
		c.logger.Info("answer evaluated", logAttrs...)
		return err
	}

	c.cancelReveal = c.scheduler.AfterFunc(c.displayDelay, func() {
		c.reveal(generation, next)
	})
	c.unlockAndNotify()
	c.logger.Info("answer evaluated", append(logAttrs, "reveal_in_ms", c.displayDelay.Milliseconds())...)
	return nil
}

// Reset discards the current session; it always succeeds.
//
// An outstanding request keeps the in-flight flag set until it settles, and
// its result is discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.cancelReveal != nil {
		c.cancelReveal()
		c.cancelReveal = nil
	}
	previous := c.sessionID
	c.generation++
	c.state, _ = fsm.Transition(c.state, fsm.EventReset)
	c.sessionID = ""
	c.total = 0
	c.answered = 0
	c.question = nil
	c.draft = ""
	c.evaluation = nil
	c.results = nil
	c.invalidated = false
	c.unlockAndNotify()

	c.logger.Info("session reset", "session_id", previous)
}

// reveal is the scheduled transition that swaps in the next question.
func (c *Controller) reveal(generation uint64, next *Question) {
	c.mu.Lock()
	if generation != c.generation || c.cancelReveal == nil {
		c.mu.Unlock()
		return
	}
	c.cancelReveal = nil
	if err := c.advanceLocked(next); err != nil {
		c.mu.Unlock()
		c.logger.Error("question reveal failed", "error", err.Error())
		return
	}
	c.unlockAndNotify()
	c.logger.Debug("question revealed", "ordinal", next.Ordinal)
}

func (c *Controller) advanceLocked(next *Question) error {
	if err := c.transitionLocked(fsm.EventAdvance); err != nil {
		return err
	}
	c.question = next
	c.answered = next.Ordinal
	c.draft = ""
	return nil
}

func (c *Controller) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// unlockAndNotify releases the lock and publishes the state it guarded.
func (c *Controller) unlockAndNotify() {
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	if c.onChange != nil {
		c.onChange(snapshot)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		Session: Session{
			ID:             c.sessionID,
			TotalQuestions: c.total,
			AnsweredCount:  c.answered,
			Status:         c.state,
		},
		Draft:              c.draft,
		SubmissionInFlight: c.inFlight,
		RevealPending:      c.cancelReveal != nil,
		Invalidated:        c.invalidated,
	}
	if c.question != nil {
		q := *c.question
		snapshot.Question = &q
	}
	if c.evaluation != nil {
		e := *c.evaluation
		snapshot.Evaluation = &e
	}
	if len(c.results) > 0 {
		snapshot.Results = append([]ResultEntry(nil), c.results...)
	}
	return snapshot
}
