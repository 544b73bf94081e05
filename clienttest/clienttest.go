// Package clienttest provides fake sessions and session factories for
// exercising mcpclient without a real server process.
package clienttest

import (
	"context"
	"strconv"
	"sync/atomic"

	mcpclient "github.com/ggoodman/mcp-client-go"
	"github.com/ggoodman/mcp-client-go/mcp"
)

// TextResult builds a single-block text result.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: text}}}
}

// ErrorResult builds an isError result carrying a diagnostic.
func ErrorResult(diag string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: diag}},
		IsError: true,
	}
}

// Session is a scriptable fake implementing mcpclient.Session. Every entry
// point passes through a non-reentrancy guard so tests can prove the client
// never lets two session operations overlap.
type Session struct {
	ListToolsFunc func(ctx context.Context) ([]mcp.Tool, error)
	CallToolFunc  func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	CloseFunc     func() error

	inFlight   atomic.Int32
	reentered  atomic.Bool
	callCount  atomic.Int32
	closeCount atomic.Int32
}

var _ mcpclient.Session = (*Session)(nil)

func (s *Session) enter() {
	if s.inFlight.Add(1) != 1 {
		s.reentered.Store(true)
	}
}

func (s *Session) exit() { s.inFlight.Add(-1) }

// Reentered reports whether two operations ever ran concurrently.
func (s *Session) Reentered() bool { return s.reentered.Load() }

// Calls returns the number of CallTool invocations observed.
func (s *Session) Calls() int { return int(s.callCount.Load()) }

// CloseCalls returns the number of Close invocations observed.
func (s *Session) CloseCalls() int { return int(s.closeCount.Load()) }

func (s *Session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	s.enter()
	defer s.exit()
	if s.ListToolsFunc != nil {
		return s.ListToolsFunc(ctx)
	}
	return nil, nil
}

func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.enter()
	defer s.exit()
	s.callCount.Add(1)
	if s.CallToolFunc != nil {
		return s.CallToolFunc(ctx, name, args)
	}
	return TextResult("ok"), nil
}

func (s *Session) Close() error {
	s.closeCount.Add(1)
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}

// CounterSession is a fake backed by a plain integer counter exposed as an
// "increment" tool; each call returns the post-increment value as text.
// The counter is deliberately unsynchronized: under the race detector, or
// by checking the final count, tests prove that the client serializes all
// session access.
type CounterSession struct {
	count     int
	inFlight  atomic.Int32
	reentered atomic.Bool
}

var _ mcpclient.Session = (*CounterSession)(nil)

// Count returns the current counter value. Only meaningful once no calls
// are in flight.
func (s *CounterSession) Count() int { return s.count }

// Reentered reports whether two operations ever ran concurrently.
func (s *CounterSession) Reentered() bool { return s.reentered.Load() }

func (s *CounterSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{{
		Name:        "increment",
		Description: "Increment the counter and return its new value",
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	}}, nil
}

func (s *CounterSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if s.inFlight.Add(1) != 1 {
		s.reentered.Store(true)
	}
	defer s.inFlight.Add(-1)

	if name != "increment" {
		return ErrorResult("unknown tool: " + name), nil
	}
	s.count++
	return TextResult(strconv.Itoa(s.count)), nil
}

func (s *CounterSession) Close() error { return nil }

// Factory returns a session factory that hands out s.
func Factory(s mcpclient.Session) mcpclient.SessionFactory {
	return func(ctx context.Context) (mcpclient.Session, error) {
		return s, nil
	}
}

// FailingFactory returns a session factory whose handshake always fails
// with err.
func FailingFactory(err error) mcpclient.SessionFactory {
	return func(ctx context.Context) (mcpclient.Session, error) {
		return nil, err
	}
}

// BlockedFactory returns a session factory that blocks until ctx is done
// and then fails with its error, for exercising handshake cancellation.
func BlockedFactory() mcpclient.SessionFactory {
	return func(ctx context.Context) (mcpclient.Session, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}
