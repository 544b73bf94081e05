// Package mcpclient provides a blocking, goroutine-safe client over a
// single long-lived MCP session.
//
// Callers on arbitrary goroutines issue ordinary blocking calls; all
// session work actually executes on one dedicated reactor goroutine that
// exclusively owns the session. The hand-off happens through a FIFO mailbox
// and single-assignment result slots, so the session itself never needs a
// lock and never sees overlapping operations.
//
// Lifecycle
//
//	Connect  : runs the initialize handshake and blocks until it resolves.
//	           Either the client is fully ready, or Connect returns an
//	           *InitializationError with the reactor goroutine already gone.
//	ListTools, CallTool : blocking operations, safe for concurrent use.
//	Close    : idempotent, concurrent-safe teardown. Queued work fails with
//	           ErrSessionClosed; the job in flight runs to completion.
//
// A remote failure is scoped to the one caller that issued the operation
// (*InvocationError); it never terminates the reactor or affects other
// queued work.
//
// Example:
//
//	client, err := mcpclient.Connect(ctx, stdiosession.Factory(stdiosession.ServerParams{
//	    Command: "npx",
//	    Args:    []string{"-y", "@modelcontextprotocol/server-everything"},
//	}))
//	if err != nil { log.Fatal(err) }
//	defer client.Close()
//
//	tools, err := client.ListTools(ctx)
//	...
//	contents, err := client.CallTool(ctx, "echo", map[string]any{"message": "hi"})
//
// For managing several named servers from one configuration file, see
// package registry.
package mcpclient
