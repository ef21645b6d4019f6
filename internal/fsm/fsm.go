// Package fsm defines the interview session lifecycle transitions.
package fsm

import "fmt"

type State string

type Event string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateFinished   State = "finished"
)

const (
	EventStart   Event = "start"
	EventAdvance Event = "advance"
	EventFinish  Event = "finish"
	EventReset   Event = "reset"
)

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateNotStarted, StateInProgress, StateFinished:
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}

	if event == EventReset {
		return StateNotStarted, nil
	}

	switch current {
	case StateNotStarted:
		switch event {
		case EventStart:
			return StateInProgress, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateInProgress:
		switch event {
		case EventAdvance:
			return StateInProgress, nil
		case EventFinish:
			return StateFinished, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		// Finished only leaves through reset.
		return current, invalidTransition(current, event)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
