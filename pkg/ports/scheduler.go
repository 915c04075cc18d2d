package ports

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from firing. It returns false if the call already fired or was stopped.
	Stop() bool
}

// Scheduler defers work. The orchestrator polls through it so tests can drive virtual time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}
