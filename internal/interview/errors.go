package interview

import "errors"

var (
	// ErrValidation is returned for a question count outside [MinQuestions, MaxQuestions].
	ErrValidation = errors.New("invalid question count")
	// ErrEmptyAnswer is returned when the draft is empty after trimming.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrRequestInFlight is returned while another service call is outstanding.
	ErrRequestInFlight = errors.New("a request is already in flight")
	// ErrNotInProgress is returned when no question is being answered.
	ErrNotInProgress = errors.New("interview is not in progress")
	// ErrSessionActive is returned when starting while a session already exists.
	ErrSessionActive = errors.New("a session is already active; reset first")
	// ErrRevealPending is returned while the next question is about to be shown.
	ErrRevealPending = errors.New("next question is about to be shown")
	// ErrSessionInvalid is returned after the service rejected the session id.
	ErrSessionInvalid = errors.New("session is no longer valid; reset to start a new one")
	// ErrSessionDiscarded is returned when a response settles after Reset.
	ErrSessionDiscarded = errors.New("session was reset before the response arrived")
	// ErrSessionStartFailed wraps a service failure from StartSession.
	ErrSessionStartFailed = errors.New("session start failed")
	// ErrSubmissionFailed wraps a service failure from SubmitAnswer; the draft is kept.
	ErrSubmissionFailed = errors.New("answer submission failed")
)
