package stdiosession

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	mcpclient "github.com/ggoodman/mcp-client-go"
	"github.com/ggoodman/mcp-client-go/mcp"
)

// ServerParams describes how to launch an MCP server subprocess.
type ServerParams struct {
	// Command is the executable to launch.
	Command string `json:"command"`
	// Args are passed to the executable verbatim.
	Args []string `json:"args,omitempty"`
	// Env entries are appended to the parent environment.
	Env map[string]string `json:"env,omitempty"`
	// Dir is the working directory; empty means inherit.
	Dir string `json:"dir,omitempty"`
}

// Option customizes the factory.
type Option func(*config)

type config struct {
	info mcp.ImplementationInfo
}

// WithClientInfo overrides the implementation info sent during the
// initialize handshake.
func WithClientInfo(info mcp.ImplementationInfo) Option {
	return func(c *config) {
		if info.Name != "" {
			c.info = info
		}
	}
}

// Factory returns a session factory that spawns the configured server
// subprocess, speaks the stdio transport to it, and performs the initialize
// handshake. The subprocess lives for the lifetime of the session and is
// shut down by Session.Close.
func Factory(params ServerParams, opts ...Option) mcpclient.SessionFactory {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(ctx context.Context) (mcpclient.Session, error) {
		if params.Command == "" {
			return nil, fmt.Errorf("stdiosession: empty command")
		}
		cmd := exec.Command(params.Command, params.Args...)
		cmd.Dir = params.Dir
		if len(params.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range params.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		return connect(ctx, &sdk.CommandTransport{Command: cmd}, cfg)
	}
}

// FromTransport returns a session factory over an arbitrary go-sdk
// transport. Useful for in-memory endpoints in tests and for servers that
// are not subprocesses.
func FromTransport(transport sdk.Transport, opts ...Option) mcpclient.SessionFactory {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(ctx context.Context) (mcpclient.Session, error) {
		return connect(ctx, transport, cfg)
	}
}

func defaultConfig() config {
	return config{
		info: mcp.ImplementationInfo{Name: "mcp-client-go", Version: "0.1.0"},
	}
}

func connect(ctx context.Context, transport sdk.Transport, cfg config) (mcpclient.Session, error) {
	client := sdk.NewClient(&sdk.Implementation{
		Name:    cfg.info.Name,
		Version: cfg.info.Version,
		Title:   cfg.info.Title,
	}, &sdk.ClientOptions{})

	cs, err := client.Connect(ctx, transport, &sdk.ClientSessionOptions{})
	if err != nil {
		return nil, fmt.Errorf("stdiosession: connect: %w", err)
	}
	return &session{cs: cs}, nil
}

// session adapts an SDK client session to mcpclient.Session. The client's
// reactor goroutine is its only user, so no synchronization is needed here.
type session struct {
	cs *sdk.ClientSession
}

var _ mcpclient.Session = (*session)(nil)

func (s *session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	var (
		tools  []mcp.Tool
		cursor string
	)
	for {
		res, err := s.cs.ListTools(ctx, &sdk.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, t := range res.Tools {
			conv, err := convertTool(t)
			if err != nil {
				return nil, err
			}
			tools = append(tools, conv)
		}
		if res.NextCursor == "" {
			return tools, nil
		}
		cursor = res.NextCursor
	}
}

func (s *session) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	res, err := s.cs.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	out := &mcp.CallToolResult{IsError: res.IsError}
	for _, block := range res.Content {
		conv, err := convertContent(block)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, conv)
	}
	return out, nil
}

func (s *session) Close() error {
	return s.cs.Close()
}

// convertTool maps an SDK tool descriptor onto the module's wire-faithful
// types. The input schema goes through a JSON round trip: the SDK models it
// as a full JSON-schema document and the simplified ToolInputSchema shares
// its wire shape.
func convertTool(t *sdk.Tool) (mcp.Tool, error) {
	out := mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	}
	if t.InputSchema == nil {
		return out, nil
	}
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("stdiosession: marshal input schema for %s: %w", t.Name, err)
	}
	if err := json.Unmarshal(raw, &out.InputSchema); err != nil {
		return mcp.Tool{}, fmt.Errorf("stdiosession: decode input schema for %s: %w", t.Name, err)
	}
	if out.InputSchema.Type == "" {
		out.InputSchema.Type = "object"
	}
	return out, nil
}

func convertContent(block sdk.Content) (mcp.ContentBlock, error) {
	switch b := block.(type) {
	case *sdk.TextContent:
		return mcp.ContentBlock{Type: "text", Text: b.Text}, nil
	case *sdk.ImageContent:
		return mcp.ContentBlock{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(b.Data),
			MimeType: b.MIMEType,
		}, nil
	case *sdk.AudioContent:
		return mcp.ContentBlock{
			Type:     "audio",
			Data:     base64.StdEncoding.EncodeToString(b.Data),
			MimeType: b.MIMEType,
		}, nil
	case *sdk.EmbeddedResource:
		if b.Resource == nil {
			return mcp.ContentBlock{}, fmt.Errorf("stdiosession: embedded resource without contents")
		}
		rc := &mcp.ResourceContents{
			URI:      b.Resource.URI,
			MimeType: b.Resource.MIMEType,
			Text:     b.Resource.Text,
		}
		if len(b.Resource.Blob) > 0 {
			rc.Blob = base64.StdEncoding.EncodeToString(b.Resource.Blob)
		}
		return mcp.ContentBlock{Type: "resource", Resource: rc}, nil
	default:
		return mcp.ContentBlock{}, fmt.Errorf("stdiosession: unsupported content type %T", block)
	}
}
