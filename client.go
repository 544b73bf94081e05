package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/mcp-client-go/internal/logctx"
	"github.com/ggoodman/mcp-client-go/mcp"
)

// SessionState tracks where the client's session is in its lifecycle.
// Transitions are monotonic, except that a failed initialize handshake moves
// directly from StateInitializing to StateClosed.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateInitializing
	StateReady
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// job is one unit of work handed across the goroutine boundary. It is
// created per invocation and consumed exactly once by the reactor.
type job struct {
	id   string
	op   string
	ctx  context.Context
	fn   func(ctx context.Context) (any, error)
	slot *resultSlot
}

// Client is a synchronous MCP client over an asynchronous Session. All
// session work runs on one dedicated reactor goroutine that exclusively
// owns the Session; callers on any goroutine issue blocking calls that are
// handed across the boundary one at a time, in arrival order. Two
// invocations never execute overlapping session operations, which is what
// makes the Session safe without a lock of its own.
//
// A Client owns exactly one Session. Multiple independent Clients coexist
// freely; there is no shared process-wide state.
type Client struct {
	name         string
	id           string
	log          *slog.Logger
	queueDepth   int
	pollInterval time.Duration

	factory SessionFactory
	mailbox chan *job

	// stop is observed by the reactor loop; stopCh wakes it immediately.
	stop   atomic.Bool
	stopCh chan struct{}
	// done is closed once the reactor has exited and teardown has run.
	done chan struct{}

	// mu guards state and fences submissions against shutdown: submissions
	// hold the read side while enqueueing and Close takes the write side
	// before signalling stop, so no job can enter the mailbox after the
	// reactor begins draining.
	mu        sync.RWMutex
	state     SessionState
	torndown  bool
	resources []io.Closer

	// sess is touched only from the reactor goroutine.
	sess Session
}

// Connect spawns the reactor goroutine, runs the initialize handshake via
// the factory, and blocks until the handshake resolves. On success the
// returned Client is ready for use from any goroutine. On failure Connect
// returns an *InitializationError and the reactor goroutine has already
// exited; nothing leaks.
//
// ctx bounds the handshake only. The factory must honor cancellation for
// Connect to be abortable.
func Connect(ctx context.Context, factory SessionFactory, opts ...Option) (*Client, error) {
	if factory == nil {
		return nil, &InitializationError{Err: errors.New("nil session factory")}
	}

	c := &Client{
		id:           uuid.NewString(),
		log:          slog.Default(),
		queueDepth:   defaultQueueDepth,
		pollInterval: defaultPollInterval,
		factory:      factory,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		state:        StateUninitialized,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		c.name = "mcp-" + c.id[:8]
	}
	c.log = slog.New(logctx.Handler{Handler: c.log.Handler()})
	c.mailbox = make(chan *job, c.queueDepth)

	c.setState(StateInitializing)

	readyCh := make(chan error, 1)
	go c.run(ctx, readyCh)

	if err := <-readyCh; err != nil {
		<-c.done
		return nil, &InitializationError{Name: c.name, Err: err}
	}
	return c, nil
}

// Name returns the client's name as used in logs and error messages.
func (c *Client) Name() string { return c.name }

// State reports the current lifecycle state.
func (c *Client) State() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(s SessionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// ListTools returns the tools the endpoint advertises, in the order the
// endpoint reports them. Safe to call from any goroutine.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	v, err := c.call(ctx, "tools/list", func(ctx context.Context) (any, error) {
		return c.sess.ListTools(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]mcp.Tool), nil
}

// CallTool invokes a named tool and returns its normalized content. Remote
// failures surface as *InvocationError carrying the original diagnostic;
// they affect only this call. Safe to call from any goroutine; concurrent
// calls are serviced one at a time in approximate arrival order.
//
// Cancelling ctx abandons the wait but does not interrupt the remote
// operation; callers wanting a deadline should derive one on ctx.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) ([]Content, error) {
	v, err := c.call(ctx, "tools/call", func(ctx context.Context) (any, error) {
		ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: name})
		res, err := c.sess.CallTool(ctx, name, args)
		if err != nil {
			return nil, &InvocationError{Tool: name, Err: err}
		}
		if res.IsError {
			return nil, &InvocationError{Tool: name, Err: errors.New(diagnosticText(res))}
		}
		contents, err := normalizeContent(res.Content)
		if err != nil {
			return nil, &InvocationError{Tool: name, Err: err}
		}
		return contents, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Content), nil
}

// Close shuts the client down: the reactor finishes the job it is running,
// fails anything still queued with ErrSessionClosed, tears the session down
// and exits. Close blocks until teardown completes. It is idempotent and
// safe to call concurrently; teardown side effects run exactly once.
// Teardown failures are logged, never returned, so they cannot mask an
// error on the path that triggered the shutdown.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.state = StateClosing
	c.mu.Unlock()

	c.stop.Store(true)
	close(c.stopCh)
	<-c.done
	return nil
}

// run is the reactor: the only goroutine that ever touches c.sess.
func (c *Client) run(ctx context.Context, readyCh chan<- error) {
	defer close(c.done)

	ctx = logctx.WithClientData(ctx, &logctx.ClientData{Name: c.name, ID: c.id})

	sess, err := c.factory(ctx)
	if err != nil {
		c.log.ErrorContext(ctx, "session.initialize.failed", slog.String("error", err.Error()))
		c.teardown(ctx)
		readyCh <- err
		return
	}

	c.mu.Lock()
	c.sess = sess
	c.resources = append(c.resources, sess)
	c.state = StateReady
	c.mu.Unlock()

	c.log.DebugContext(ctx, "session.ready")
	readyCh <- nil

	c.loop()
	c.drain()
	c.teardown(ctx)
}

// loop services jobs strictly one at a time until shutdown is signalled.
// The poll branch re-checks the stop flag at a bounded interval as a
// liveness backstop; stopCh wakes the loop immediately.
func (c *Client) loop() {
	for {
		select {
		case j := <-c.mailbox:
			// Jobs only execute while the session is ready; anything
			// dequeued after shutdown began fails like the rest of the
			// queue.
			if c.stop.Load() {
				j.slot.resolve(nil, ErrSessionClosed)
				return
			}
			c.runJob(j)
		case <-c.stopCh:
			return
		case <-time.After(c.pollInterval):
			if c.stop.Load() {
				return
			}
		}
	}
}

// runJob executes one job against the session and captures its outcome,
// success or failure, into the job's slot. A failing job never terminates
// the loop; panics are contained the same way.
//
// The job runs detached from the caller's cancellation: abandoning the
// wait must never interrupt the in-flight session operation, so only the
// caller context's values travel into the execution context.
func (c *Client) runJob(j *job) {
	jobCtx := context.Background()
	if j.ctx != nil {
		jobCtx = context.WithoutCancel(j.ctx)
	}
	jobCtx = logctx.WithClientData(jobCtx, &logctx.ClientData{Name: c.name, ID: c.id})
	jobCtx = logctx.WithJobData(jobCtx, &logctx.JobData{JobID: j.id, Operation: j.op})

	defer func() {
		if r := recover(); r != nil {
			c.log.ErrorContext(jobCtx, "job.panic", slog.Any("panic", r))
			j.slot.resolve(nil, fmt.Errorf("mcpclient: job panic: %v", r))
		}
	}()

	val, err := j.fn(jobCtx)
	if err != nil {
		c.log.DebugContext(jobCtx, "job.failed", slog.String("error", err.Error()))
	}
	j.slot.resolve(val, err)
}

// drain fails every job still queued at shutdown so no caller is left
// blocked. New submissions are already fenced off by the Closing state.
func (c *Client) drain() {
	for {
		select {
		case j := <-c.mailbox:
			j.slot.resolve(nil, ErrSessionClosed)
		default:
			return
		}
	}
}

// teardown releases acquired resources in reverse acquisition order. Every
// shutdown path funnels through it; the mutex and the torndown flag make
// its side effects run exactly once no matter how many triggers race. Each
// release step is isolated so one failure does not prevent the rest.
func (c *Client) teardown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torndown {
		c.state = StateClosed
		return
	}
	c.torndown = true

	for i := len(c.resources) - 1; i >= 0; i-- {
		if err := c.resources[i].Close(); err != nil {
			c.log.ErrorContext(ctx, "teardown.error", slog.String("error", err.Error()))
		}
	}
	c.resources = nil
	c.sess = nil
	c.state = StateClosed
	c.log.DebugContext(ctx, "session.closed")
}

// call submits a job and blocks on its slot.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	slot, err := c.submit(ctx, op, fn)
	if err != nil {
		return nil, err
	}
	return slot.wait(ctx)
}

// submit enqueues one job for the reactor. It fails fast, without blocking,
// once the client is closing or closed.
func (c *Client) submit(ctx context.Context, op string, fn func(context.Context) (any, error)) (*resultSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.state {
	case StateReady:
	case StateUninitialized, StateInitializing:
		return nil, ErrNotInitialized
	default:
		return nil, ErrSessionClosed
	}

	j := &job{
		id:   uuid.NewString(),
		op:   op,
		ctx:  ctx,
		fn:   fn,
		slot: newResultSlot(),
	}
	select {
	case c.mailbox <- j:
		return j.slot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// diagnosticText extracts the remote diagnostic from an isError result.
func diagnosticText(res *mcp.CallToolResult) string {
	var parts []string
	for _, b := range res.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return "tool reported an error"
	}
	return strings.Join(parts, "\n")
}
