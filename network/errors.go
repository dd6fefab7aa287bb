package network

import "errors"

var (
	ErrConnectionClosed        = errors.New("connection closed")
	ErrConnectionExists        = errors.New("connection id already registered")
	ErrConnectionPoolExhausted = errors.New("connection pool exhausted")
	ErrInvalidAddress          = errors.New("invalid address")
	ErrListenerClosed          = errors.New("listener closed")
	ErrInvalidPoolConfig       = errors.New("invalid pool configuration")
	ErrPoolClosed              = errors.New("pool closed")
	ErrGracefulShutdownTimeout = errors.New("graceful shutdown timeout")
	ErrPollerClosed            = errors.New("poller closed")
	ErrPollerUnsupported       = errors.New("readiness polling unsupported on this platform")
	ErrFDNotRegistered         = errors.New("file descriptor not registered")
)
