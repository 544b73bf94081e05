package mcpclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized indicates an operation was attempted before the
	// session handshake resolved. Connect blocks until readiness, so this
	// is a defensive signal rather than an expected condition.
	ErrNotInitialized = errors.New("mcpclient: session not initialized")

	// ErrSessionClosed indicates an operation was attempted after Close,
	// or after the client shut down. Operations fail with it immediately;
	// they never block on a closed client.
	ErrSessionClosed = errors.New("mcpclient: session closed")
)

// InitializationError reports that session acquisition or the initialize
// handshake failed. It is returned by Connect; by the time it is observed
// the reactor goroutine has already exited.
type InitializationError struct {
	Name string // client name, for log correlation
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("mcpclient: initialize %q: %v", e.Name, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// InvocationError reports that a specific tool invocation failed on the
// remote side. It wraps the remote diagnostic and is scoped to the one
// caller that issued the invocation; the client remains usable.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("mcpclient: call tool %q: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
