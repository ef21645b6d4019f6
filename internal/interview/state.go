package interview

import "github.com/rbright/rehearse/internal/fsm"

// Session is the lifecycle view of one interview attempt.
type Session struct {
	ID             string
	TotalQuestions int
	AnsweredCount  int
	Status         fsm.State
}

// Question is the prompt currently shown to the user.
type Question struct {
	Text    string
	Ordinal int
}

// Evaluation is the scored feedback for one submitted answer.
type Evaluation struct {
	Score    float64
	Feedback string
}

// ResultEntry pairs one answered question with its evaluation.
type ResultEntry struct {
	Question Question
	Answer   string
	Score    float64
	Feedback string
}

// Snapshot is a detached copy of controller state, safe to read without locks.
type Snapshot struct {
	Session            Session
	Question           *Question
	Draft              string
	Evaluation         *Evaluation
	Results            []ResultEntry
	SubmissionInFlight bool
	RevealPending      bool
	Invalidated        bool
}

// Finished reports whether the session reached its terminal state.
func (s Snapshot) Finished() bool {
	return s.Session.Status == fsm.StateFinished
}

// InProgress reports whether a question is being answered.
func (s Snapshot) InProgress() bool {
	return s.Session.Status == fsm.StateInProgress
}
