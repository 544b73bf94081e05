// Package registry manages a set of named MCP clients driven by one
// configuration file, routes tool calls to the right server, and caches
// aggregated capability listings.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	mcpclient "github.com/ggoodman/mcp-client-go"
	"github.com/ggoodman/mcp-client-go/mcp"
	"github.com/ggoodman/mcp-client-go/stdiosession"
	"github.com/ggoodman/mcp-client-go/storage"
	"github.com/ggoodman/mcp-client-go/storage/memory"
)

// UnknownServerError indicates a call named a server the registry does not
// manage.
type UnknownServerError struct {
	Name string
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("registry: unknown server: %s", e.Name)
}

// FactoryFunc builds the session factory for one configured server. The
// default spawns the server as a subprocess via stdiosession.
type FactoryFunc func(name string, sc ServerConfig) mcpclient.SessionFactory

// ServerTool pairs a tool with the server that advertises it.
type ServerTool struct {
	Server string
	Tool   mcp.Tool
}

// Registry owns one mcpclient.Client per configured server. All methods are
// safe for concurrent use.
type Registry struct {
	log            *slog.Logger
	cache          storage.Storage
	ownCache       bool
	cacheTTL       time.Duration
	connectTimeout time.Duration
	newFactory     FactoryFunc

	mu           sync.RWMutex
	clients      map[string]*mcpclient.Client
	configs      map[string]ServerConfig
	order        []string // acquisition order, for reverse release
	watchCancels []context.CancelFunc
	closed       bool
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithCache supplies the capability cache backend. The caller keeps
// ownership; the registry will not close it. Defaults to an in-process
// memory cache.
func WithCache(s storage.Storage) Option {
	return func(r *Registry) {
		if s != nil {
			r.cache = s
			r.ownCache = false
		}
	}
}

// WithCacheTTL bounds how long capability listings are served from cache.
func WithCacheTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.cacheTTL = d
		}
	}
}

// WithConnectTimeout bounds each server's initialize handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.connectTimeout = d
		}
	}
}

// WithFactoryFunc overrides how server configs become session factories.
// Tests use this to substitute fakes for real subprocesses.
func WithFactoryFunc(fn FactoryFunc) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newFactory = fn
		}
	}
}

// New connects a client for every configured server, in name order. If any
// server fails to initialize, the servers already started are released in
// reverse order and New returns the failure.
func New(ctx context.Context, cfg Config, opts ...Option) (*Registry, error) {
	env := EnvDefaults()
	r := &Registry{
		log:            slog.Default(),
		cacheTTL:       env.CacheTTL,
		connectTimeout: env.ConnectTimeout,
		clients:        map[string]*mcpclient.Client{},
		configs:        map[string]ServerConfig{},
	}
	r.newFactory = func(name string, sc ServerConfig) mcpclient.SessionFactory {
		return stdiosession.Factory(stdiosession.ServerParams{
			Command: sc.Command,
			Args:    sc.Args,
			Env:     sc.Env,
			Dir:     sc.Dir,
		})
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		mem, err := memory.New(0)
		if err != nil {
			return nil, fmt.Errorf("registry: create cache: %w", err)
		}
		r.cache = mem
		r.ownCache = true
	}

	for _, name := range sortedNames(cfg.Servers) {
		if err := r.connectServer(ctx, name, cfg.Servers[name]); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("registry: connect %q: %w", name, err)
		}
	}
	return r, nil
}

// Servers returns the managed server names, sorted.
func (r *Registry) Servers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Client returns the client managing the named server.
func (r *Registry) Client(name string) (*mcpclient.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// Tools aggregates tool listings across all servers, in server name order.
// When filter names are given, only tools with those names are returned
// (the original deployment used this to expose a subset of a server's
// tools). Listings are served from the cache when fresh.
func (r *Registry) Tools(ctx context.Context, filter ...string) ([]ServerTool, error) {
	allowed := map[string]bool{}
	for _, name := range filter {
		allowed[name] = true
	}

	var out []ServerTool
	for _, name := range r.Servers() {
		c, ok := r.Client(name)
		if !ok {
			continue
		}
		tools, err := r.serverTools(ctx, name, c)
		if err != nil {
			return nil, fmt.Errorf("registry: list tools on %q: %w", name, err)
		}
		for _, t := range tools {
			if len(allowed) > 0 && !allowed[t.Name] {
				continue
			}
			out = append(out, ServerTool{Server: name, Tool: t})
		}
	}
	return out, nil
}

// CallTool routes one invocation to the named server.
func (r *Registry) CallTool(ctx context.Context, server, tool string, args map[string]any) ([]mcpclient.Content, error) {
	c, ok := r.Client(server)
	if !ok {
		return nil, &UnknownServerError{Name: server}
	}
	return c.CallTool(ctx, tool, args)
}

// Reload applies a new configuration: added servers are connected, removed
// servers are closed, and servers whose configuration changed are
// restarted. Unchanged servers keep their live sessions.
func (r *Registry) Reload(ctx context.Context, cfg Config) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return fmt.Errorf("registry: closed")
	}
	current := make(map[string]ServerConfig, len(r.configs))
	for name, sc := range r.configs {
		current[name] = sc
	}
	r.mu.RUnlock()

	for name, sc := range current {
		next, keep := cfg.Servers[name]
		if keep && reflect.DeepEqual(sc, next) {
			continue
		}
		r.closeServer(ctx, name)
	}

	var firstErr error
	for _, name := range sortedNames(cfg.Servers) {
		if _, running := r.Client(name); running {
			continue
		}
		if err := r.connectServer(ctx, name, cfg.Servers[name]); err != nil {
			r.log.ErrorContext(ctx, "registry.reload.connect_failed",
				slog.String("server", name), slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("registry: connect %q: %w", name, err)
			}
		}
	}
	return firstErr
}

// Close releases every client in reverse acquisition order, then the cache
// if the registry owns it. Each release step is isolated; Close is
// idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	order := r.order
	clients := r.clients
	cancels := r.watchCancels
	r.order = nil
	r.clients = map[string]*mcpclient.Client{}
	r.configs = map[string]ServerConfig{}
	r.watchCancels = nil
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for i := len(order) - 1; i >= 0; i-- {
		if c, ok := clients[order[i]]; ok {
			_ = c.Close()
		}
	}
	if r.ownCache {
		if err := r.cache.Close(); err != nil {
			r.log.Error("registry.cache.close_failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *Registry) connectServer(ctx context.Context, name string, sc ServerConfig) error {
	cctx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()

	c, err := mcpclient.Connect(cctx, r.newFactory(name, sc),
		mcpclient.WithName(name),
		mcpclient.WithLogger(r.log),
	)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = c.Close()
		return fmt.Errorf("registry: closed")
	}
	if _, exists := r.clients[name]; exists {
		// A concurrent reload already connected this server; the existing
		// client wins so no subprocess is orphaned.
		r.mu.Unlock()
		_ = c.Close()
		return nil
	}
	r.clients[name] = c
	r.configs[name] = sc
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.log.DebugContext(ctx, "registry.server.connected", slog.String("server", name))
	return nil
}

func (r *Registry) closeServer(ctx context.Context, name string) {
	r.mu.Lock()
	c, ok := r.clients[name]
	delete(r.clients, name)
	delete(r.configs, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	_ = c.Close()
	if err := r.cache.Delete(ctx, toolsCacheKey(name)); err != nil {
		r.log.WarnContext(ctx, "registry.cache.invalidate_failed",
			slog.String("server", name), slog.String("error", err.Error()))
	}
	r.log.DebugContext(ctx, "registry.server.closed", slog.String("server", name))
}

func (r *Registry) serverTools(ctx context.Context, name string, c *mcpclient.Client) ([]mcp.Tool, error) {
	key := toolsCacheKey(name)
	if item, err := r.cache.Get(ctx, key); err == nil && item != nil {
		var tools []mcp.Tool
		if json.Unmarshal(item.Data, &tools) == nil {
			return tools, nil
		}
		// Corrupt cache entries fall through to a live listing.
	}

	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(tools); err == nil {
		if err := r.cache.Set(ctx, key, raw, r.cacheTTL); err != nil {
			r.log.WarnContext(ctx, "registry.cache.set_failed",
				slog.String("server", name), slog.String("error", err.Error()))
		}
	}
	return tools, nil
}

func toolsCacheKey(server string) string { return "tools:" + server }

func sortedNames(m map[string]ServerConfig) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
