package interview

import "time"

// Scheduler runs fn once after d; stop cancels it and reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// timerScheduler is the wall-clock Scheduler.
type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(time.Duration, func()) func() bool

func (f SchedulerFunc) AfterFunc(d time.Duration, fn func()) func() bool {
	return f(d, fn)
}
