package mcpclient

import (
	"context"

	"github.com/ggoodman/mcp-client-go/mcp"
)

// Session is the live, initialized connection to an MCP endpoint. A Session
// is owned exclusively by the client's reactor goroutine: the client
// guarantees total serialization of access, so implementations do not need
// to be safe for concurrent use and must not be shared between clients.
//
// Package stdiosession provides the standard implementation over a server
// subprocess; tests typically supply fakes (see package clienttest).
type Session interface {
	// ListTools returns the tools the endpoint advertises, in the order
	// the endpoint reports them.
	ListTools(ctx context.Context) ([]mcp.Tool, error)

	// CallTool invokes a named tool. A non-nil error means the call itself
	// failed; a result with IsError set means the tool ran and reported a
	// failure.
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)

	// Close releases the connection and any process it owns.
	Close() error
}

// SessionFactory acquires and initializes a Session. It is invoked once per
// client, on the reactor goroutine, with the context passed to Connect. An
// error aborts the client before any work is accepted.
type SessionFactory func(ctx context.Context) (Session, error)
