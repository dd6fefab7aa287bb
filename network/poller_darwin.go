//go:build darwin

package network

import (
	"sync"
	"syscall"
	"time"
)

// kqueuePoller implements Poller on kqueue. EV_ONESHOT deletes the
// filter after its first delivery, matching the one-shot contract;
// Modify simply re-adds the filters.
type kqueuePoller struct {
	kq int

	mu     sync.Mutex
	armed  map[int]Interest
	closed bool

	events []syscall.Kevent_t
}

func NewPoller() (Poller, error) {
	kq, err := syscall.Kqueue()
	if err != nil {
		return nil, err
	}

	return &kqueuePoller{
		kq:     kq,
		armed:  make(map[int]Interest),
		events: make([]syscall.Kevent_t, 128),
	}, nil
}

func kqueueChanges(fd int, interest Interest) []syscall.Kevent_t {
	var changes []syscall.Kevent_t
	if interest&InterestRead != 0 {
		changes = append(changes, syscall.Kevent_t{
			Ident:  uint64(fd),
			Filter: syscall.EVFILT_READ,
			Flags:  syscall.EV_ADD | syscall.EV_ONESHOT,
		})
	}
	if interest&InterestWrite != 0 {
		changes = append(changes, syscall.Kevent_t{
			Ident:  uint64(fd),
			Filter: syscall.EVFILT_WRITE,
			Flags:  syscall.EV_ADD | syscall.EV_ONESHOT,
		})
	}
	return changes
}

func (p *kqueuePoller) arm(fd int, interest Interest) error {
	changes := kqueueChanges(fd, interest)
	if len(changes) == 0 {
		return nil
	}
	_, err := syscall.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Register(fd int, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPollerClosed
	}
	if err := p.arm(fd, interest); err != nil {
		return err
	}
	p.armed[fd] = interest
	return nil
}

func (p *kqueuePoller) Modify(fd int, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.armed[fd]; !ok {
		return ErrFDNotRegistered
	}
	if err := p.arm(fd, interest); err != nil {
		return err
	}
	p.armed[fd] = interest
	return nil
}

func (p *kqueuePoller) Unregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPollerClosed
	}
	if _, ok := p.armed[fd]; !ok {
		return ErrFDNotRegistered
	}
	delete(p.armed, fd)

	// One-shot filters may already be gone; deletion errors are moot.
	changes := []syscall.Kevent_t{
		{Ident: uint64(fd), Filter: syscall.EVFILT_READ, Flags: syscall.EV_DELETE},
		{Ident: uint64(fd), Filter: syscall.EVFILT_WRITE, Flags: syscall.EV_DELETE},
	}
	_, _ = syscall.Kevent(p.kq, changes, nil, nil)
	return nil
}

func (p *kqueuePoller) Wait(timeout time.Duration) ([]Readiness, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPollerClosed
	}
	p.mu.Unlock()

	var ts *syscall.Timespec
	if timeout >= 0 {
		t := syscall.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	n, err := syscall.Kevent(p.kq, nil, p.events, ts)
	if err != nil {
		if err == syscall.EINTR {
			return nil, nil
		}
		return nil, err
	}

	ready := make([]Readiness, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		ready = append(ready, Readiness{
			FD:       int(ev.Ident),
			Readable: ev.Filter == syscall.EVFILT_READ,
			Writable: ev.Filter == syscall.EVFILT_WRITE,
			Closed:   ev.Flags&syscall.EV_EOF != 0,
		})
	}
	return ready, nil
}

func (p *kqueuePoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPollerClosed
	}
	p.closed = true
	p.armed = nil
	return syscall.Close(p.kq)
}
