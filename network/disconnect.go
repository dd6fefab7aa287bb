package network

import (
	"context"
	"sync"
	"time"
)

// DisconnectReason classifies why a connection is being torn down. These
// are internal bookkeeping values, never written to the wire: an MQTT
// 3.1.1 server closes the network connection without sending DISCONNECT.
type DisconnectReason byte

const (
	DisconnectNormal DisconnectReason = iota
	DisconnectKeepAliveTimeout
	DisconnectSessionTakenOver
	DisconnectProtocolError
	DisconnectPacketTooLarge
	DisconnectNotAuthorized
	DisconnectServerShuttingDown
	DisconnectNetworkError
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectNormal:
		return "normal"
	case DisconnectKeepAliveTimeout:
		return "keepalive_timeout"
	case DisconnectSessionTakenOver:
		return "session_taken_over"
	case DisconnectProtocolError:
		return "protocol_error"
	case DisconnectPacketTooLarge:
		return "packet_too_large"
	case DisconnectNotAuthorized:
		return "not_authorized"
	case DisconnectServerShuttingDown:
		return "server_shutting_down"
	case DisconnectNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// WillTriggering reports whether a disconnect for this reason must cause
// the session's will message to be published: everything except a clean
// client-initiated DISCONNECT, a server-side teardown that hands the
// session over to a newer connection, and a server shutdown.
func (r DisconnectReason) WillTriggering() bool {
	switch r {
	case DisconnectNormal, DisconnectSessionTakenOver, DisconnectServerShuttingDown:
		return false
	default:
		return true
	}
}

type DisconnectHandler func(*Connection, DisconnectReason) error

type DisconnectManager struct {
	mu              sync.RWMutex
	handlers        []DisconnectHandler
	gracefulTimeout time.Duration
}

func NewDisconnectManager(gracefulTimeout time.Duration) *DisconnectManager {
	if gracefulTimeout == 0 {
		gracefulTimeout = 5 * time.Second
	}

	return &DisconnectManager{
		handlers:        make([]DisconnectHandler, 0),
		gracefulTimeout: gracefulTimeout,
	}
}

func (dm *DisconnectManager) OnDisconnect(handler DisconnectHandler) {
	dm.mu.Lock()
	dm.handlers = append(dm.handlers, handler)
	dm.mu.Unlock()
}

func (dm *DisconnectManager) HandleDisconnect(conn *Connection, reason DisconnectReason) error {
	dm.mu.RLock()
	handlers := make([]DisconnectHandler, len(dm.handlers))
	copy(handlers, dm.handlers)
	dm.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(conn, reason); err != nil {
			return err
		}
	}

	return nil
}

func (dm *DisconnectManager) GracefulDisconnect(ctx context.Context, conn *Connection, reason DisconnectReason) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, dm.gracefulTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := dm.HandleDisconnect(conn, reason); err != nil {
			done <- err
			return
		}
		done <- conn.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		_ = conn.Close()
		return ErrGracefulShutdownTimeout
	}
}

type GracefulShutdown struct {
	pool    *Pool
	dm      *DisconnectManager
	timeout time.Duration

	mu       sync.Mutex
	shutdown bool
}

func NewGracefulShutdown(pool *Pool, dm *DisconnectManager, timeout time.Duration) *GracefulShutdown {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &GracefulShutdown{
		pool:    pool,
		dm:      dm,
		timeout: timeout,
	}
}

func (gs *GracefulShutdown) Shutdown(ctx context.Context) error {
	gs.mu.Lock()
	if gs.shutdown {
		gs.mu.Unlock()
		return nil
	}
	gs.shutdown = true
	gs.mu.Unlock()

	timeoutCtx, cancel := context.WithTimeout(ctx, gs.timeout)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	gs.pool.ForEach(func(conn *Connection) bool {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()

			if err := gs.dm.GracefulDisconnect(timeoutCtx, c, DisconnectServerShuttingDown); err != nil {
				select {
				case errCh <- err:
				default:
				}
			}
		}(conn)

		return true
	})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case err := <-errCh:
		return err
	case <-timeoutCtx.Done():
		return ErrGracefulShutdownTimeout
	}
}

func (gs *GracefulShutdown) IsShutdown() bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.shutdown
}
