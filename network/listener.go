package network

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ListenerConfig configures the TCP accept side. TLSConfig is a
// pluggable transport detail: when set, the same byte stream is served
// over tls.Listen and nothing downstream changes.
type ListenerConfig struct {
	Address        string
	TLSConfig      *tls.Config
	MaxConnections int
}

func DefaultListenerConfig(address string) *ListenerConfig {
	return &ListenerConfig{Address: address}
}

// ConnectionHandler serves one accepted connection and returns when it
// is finished with the socket.
type ConnectionHandler func(*Connection) error

// Listener accepts TCP (or TLS) connections, registers each in the
// pool, and runs the configured handlers in a per-connection goroutine.
type Listener struct {
	cfg  *ListenerConfig
	pool *Pool

	mu       sync.Mutex
	handlers []ConnectionHandler
	ln       net.Listener

	closed   atomic.Bool
	wg       sync.WaitGroup
	connSeq  atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

func NewListener(config *ListenerConfig, pool *Pool) (*Listener, error) {
	if config == nil || config.Address == "" {
		return nil, ErrInvalidAddress
	}
	if pool == nil {
		return nil, ErrInvalidPoolConfig
	}

	return &Listener{cfg: config, pool: pool}, nil
}

// OnConnection appends a handler run for every accepted connection.
func (l *Listener) OnConnection(handler ConnectionHandler) {
	l.mu.Lock()
	l.handlers = append(l.handlers, handler)
	l.mu.Unlock()
}

// Start binds the socket and begins accepting. It returns immediately;
// accept failures after a successful bind only end the loop when the
// listener is closed.
func (l *Listener) Start() error {
	if l.closed.Load() {
		return ErrListenerClosed
	}

	var (
		ln  net.Listener
		err error
	)
	if l.cfg.TLSConfig != nil {
		ln, err = tls.Listen("tcp", l.cfg.Address, l.cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", l.cfg.Address)
	}
	if err != nil {
		return fmt.Errorf("bind %s: %w", l.cfg.Address, err)
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.wg.Add(1)
	go l.acceptLoop(ln)
	return nil
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.wg.Done()

	for {
		netConn, err := ln.Accept()
		if err != nil {
			if l.closed.Load() {
				return
			}
			// Transient accept errors (EMFILE and friends): back off
			// briefly rather than spinning.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if l.cfg.MaxConnections > 0 && l.pool.Len() >= l.cfg.MaxConnections {
			l.rejected.Add(1)
			_ = netConn.Close()
			continue
		}

		conn := NewConnection(netConn, l.nextConnID(), nil)
		if err := l.pool.Add(conn); err != nil {
			l.rejected.Add(1)
			_ = conn.Close()
			continue
		}
		l.accepted.Add(1)

		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn *Connection) {
	defer l.wg.Done()

	l.mu.Lock()
	handlers := make([]ConnectionHandler, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(conn); err != nil {
			break
		}
	}

	l.pool.Remove(conn.ID())
	_ = conn.Close()
}

func (l *Listener) nextConnID() string {
	return fmt.Sprintf("conn-%d", l.connSeq.Add(1))
}

// Addr returns the bound address, nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// ListenerStats are monotonic accept-side counters.
type ListenerStats struct {
	Accepted uint64
	Rejected uint64
	Active   int
}

func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Accepted: l.accepted.Load(),
		Rejected: l.rejected.Load(),
		Active:   l.pool.Len(),
	}
}

// Close stops accepting and waits for per-connection goroutines.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrListenerClosed
	}

	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	l.wg.Wait()
	return err
}
