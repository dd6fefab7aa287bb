package network

import "time"

// Interest says which readiness conditions a registration watches for.
type Interest byte

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// Readiness is one kernel notification: the descriptor and which of its
// watched conditions fired. Closed is set when the peer hung up.
type Readiness struct {
	FD       int
	Readable bool
	Writable bool
	Closed   bool
}

// Poller is the readiness notifier the I/O adaptor is driven by. Every
// registration is one-shot: after a descriptor is reported by Wait it
// goes dormant until Modify re-arms it, so a slow handler can never be
// re-notified for a condition it hasn't consumed. Implementations wrap
// the platform's facility (epoll, kqueue); tests can substitute any
// fake that honors the same contract.
type Poller interface {
	// Register starts watching fd for interest, one-shot.
	Register(fd int, interest Interest) error

	// Modify re-arms fd with a (possibly different) interest.
	Modify(fd int, interest Interest) error

	// Unregister stops watching fd.
	Unregister(fd int) error

	// Wait blocks up to timeout for readiness events. A zero timeout
	// polls; a negative one blocks indefinitely.
	Wait(timeout time.Duration) ([]Readiness, error)

	// Close releases the poller; registrations are discarded.
	Close() error
}
