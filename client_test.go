package mcpclient_test

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mcpclient "github.com/ggoodman/mcp-client-go"
	"github.com/ggoodman/mcp-client-go/clienttest"
	"github.com/ggoodman/mcp-client-go/mcp"
)

func mustConnect(t *testing.T, factory mcpclient.SessionFactory, opts ...mcpclient.Option) *mcpclient.Client {
	t.Helper()
	c, err := mcpclient.Connect(context.Background(), factory, opts...)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnect_FactoryFailure(t *testing.T) {
	before := runtime.NumGoroutine()

	boom := errors.New("transport refused")
	_, err := mcpclient.Connect(context.Background(), clienttest.FailingFactory(boom), mcpclient.WithName("broken"))
	if err == nil {
		t.Fatal("expected connect to fail")
	}
	var ie *mcpclient.InitializationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InitializationError, got %T: %v", err, err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error should wrap the factory failure, got %v", err)
	}

	// The reactor goroutine must be gone by the time Connect returns. Give
	// the runtime a moment to settle before comparing.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("goroutines grew from %d to %d after failed connect", before, runtime.NumGoroutine())
}

func TestConnect_HandshakeCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := mcpclient.Connect(ctx, clienttest.BlockedFactory())
	if err == nil {
		t.Fatal("expected connect to fail")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestListTools(t *testing.T) {
	sess := &clienttest.Session{
		ListToolsFunc: func(ctx context.Context) ([]mcp.Tool, error) {
			return []mcp.Tool{
				{Name: "alpha", Description: "first"},
				{Name: "beta", Description: "second"},
			}, nil
		},
	}
	c := mustConnect(t, clienttest.Factory(sess))

	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "alpha" || tools[1].Name != "beta" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestCounter_Sequential(t *testing.T) {
	sess := &clienttest.CounterSession{}
	c := mustConnect(t, clienttest.Factory(sess))

	for want := 1; want <= 3; want++ {
		contents, err := c.CallTool(context.Background(), "increment", nil)
		if err != nil {
			t.Fatalf("call %d failed: %v", want, err)
		}
		if len(contents) != 1 || contents[0].Text != strconv.Itoa(want) {
			t.Fatalf("call %d: unexpected contents %+v", want, contents)
		}
	}
}

func TestCounter_ConcurrentSerialization(t *testing.T) {
	const (
		goroutines = 5
		perG       = 1000
	)
	sess := &clienttest.CounterSession{}
	c := mustConnect(t, clienttest.Factory(sess), mcpclient.WithQueueDepth(64))

	var wg sync.WaitGroup
	errCh := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				if _, err := c.CallTool(context.Background(), "increment", nil); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent call failed: %v", err)
	}

	if got := sess.Count(); got != goroutines*perG {
		t.Errorf("counter = %d, want %d (lost updates)", got, goroutines*perG)
	}
	if sess.Reentered() {
		t.Error("session observed re-entrant access")
	}
}

func TestCallTool_RemoteErrorIsolation(t *testing.T) {
	sess := &clienttest.Session{
		CallToolFunc: func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			if name == "bad" {
				return nil, errors.New("remote exploded")
			}
			return clienttest.TextResult("fine"), nil
		},
	}
	c := mustConnect(t, clienttest.Factory(sess))

	_, err := c.CallTool(context.Background(), "bad", nil)
	var ie *mcpclient.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvocationError, got %T: %v", err, err)
	}
	if ie.Tool != "bad" {
		t.Errorf("error names tool %q, want bad", ie.Tool)
	}

	// The failure is scoped to its caller; the client stays usable.
	contents, err := c.CallTool(context.Background(), "good", nil)
	if err != nil {
		t.Fatalf("subsequent call failed: %v", err)
	}
	if len(contents) != 1 || contents[0].Text != "fine" {
		t.Fatalf("unexpected contents: %+v", contents)
	}
}

func TestCallTool_IsErrorResult(t *testing.T) {
	sess := &clienttest.Session{
		CallToolFunc: func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			return clienttest.ErrorResult("division by zero"), nil
		},
	}
	c := mustConnect(t, clienttest.Factory(sess))

	_, err := c.CallTool(context.Background(), "divide", nil)
	var ie *mcpclient.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvocationError, got %T: %v", err, err)
	}
	if ie.Err == nil || ie.Err.Error() != "division by zero" {
		t.Errorf("diagnostic = %v, want remote text", ie.Err)
	}
}

func TestCallTool_CallerAbandonsWait(t *testing.T) {
	release := make(chan struct{})
	sess := &clienttest.Session{
		CallToolFunc: func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			<-release
			return clienttest.TextResult("late"), nil
		},
	}
	c := mustConnect(t, clienttest.Factory(sess))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.CallTool(ctx, "slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	close(release)
}

func TestCallTool_InFlightSurvivesCallerCancellation(t *testing.T) {
	var interrupted atomic.Bool
	done := make(chan struct{})
	sess := &clienttest.Session{
		CallToolFunc: func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			defer close(done)
			select {
			case <-ctx.Done():
				interrupted.Store(true)
				return nil, ctx.Err()
			case <-time.After(300 * time.Millisecond):
				return clienttest.TextResult("finished"), nil
			}
		},
	}
	c := mustConnect(t, clienttest.Factory(sess))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.CallTool(ctx, "slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	<-done
	if interrupted.Load() {
		t.Error("in-flight operation observed the caller's cancellation; it must run to completion")
	}
}

func TestClose_Idempotent(t *testing.T) {
	sess := &clienttest.Session{}
	c := mustConnect(t, clienttest.Factory(sess))

	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if n := sess.CloseCalls(); n != 1 {
		t.Errorf("session closed %d times, want 1", n)
	}
	if got := c.State(); got != mcpclient.StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestClose_Concurrent(t *testing.T) {
	sess := &clienttest.Session{}
	c := mustConnect(t, clienttest.Factory(sess))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Close()
		}()
	}
	wg.Wait()

	if n := sess.CloseCalls(); n != 1 {
		t.Errorf("session closed %d times, want 1", n)
	}
}

func TestCallTool_AfterCloseFailsFast(t *testing.T) {
	sess := &clienttest.Session{}
	c := mustConnect(t, clienttest.Factory(sess))
	_ = c.Close()

	start := time.Now()
	_, err := c.CallTool(context.Background(), "anything", nil)
	if !errors.Is(err, mcpclient.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("post-close call blocked for %v", elapsed)
	}
}

func TestClose_FailsQueuedJobs(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	sess := &clienttest.Session{
		CallToolFunc: func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
			close(entered)
			<-release
			return clienttest.TextResult("done"), nil
		},
	}
	c := mustConnect(t, clienttest.Factory(sess))

	inFlight := make(chan error, 1)
	go func() {
		_, err := c.CallTool(context.Background(), "slow", nil)
		inFlight <- err
	}()
	<-entered

	queued := make(chan error, 1)
	go func() {
		_, err := c.CallTool(context.Background(), "queued", nil)
		queued <- err
	}()
	// Give the second call time to reach the mailbox before shutting down.
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-inFlight; err != nil {
		t.Errorf("in-flight job should run to completion, got %v", err)
	}
	if err := <-queued; !errors.Is(err, mcpclient.ErrSessionClosed) {
		t.Errorf("queued job should fail with ErrSessionClosed, got %v", err)
	}
	<-closed
}

func TestClose_TeardownErrorNotReturned(t *testing.T) {
	sess := &clienttest.Session{
		CloseFunc: func() error { return fmt.Errorf("flaky cleanup") },
	}
	c := mustConnect(t, clienttest.Factory(sess))

	if err := c.Close(); err != nil {
		t.Fatalf("teardown failures must not surface from Close, got %v", err)
	}
}
