package stdiosession_test

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	mcpclient "github.com/ggoodman/mcp-client-go"
	"github.com/ggoodman/mcp-client-go/stdiosession"
)

type echoArgs struct {
	Message string `json:"message"`
}

// startFakeServer wires an in-memory SDK server with an echo tool and a
// tool that always reports an error, and returns the client transport.
func startFakeServer(t *testing.T) sdk.Transport {
	t.Helper()

	server := sdk.NewServer(&sdk.Implementation{Name: "fake", Version: "0.0.1"}, nil)
	sdk.AddTool(server, &sdk.Tool{
		Name:        "echo",
		Description: "Echo a message back to the caller",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args echoArgs) (*sdk.CallToolResult, any, error) {
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: "you said: " + args.Message}},
		}, nil, nil
	})
	sdk.AddTool(server, &sdk.Tool{
		Name:        "always_fails",
		Description: "Reports an error",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args struct{}) (*sdk.CallToolResult, any, error) {
		return &sdk.CallToolResult{
			Content: []sdk.Content{&sdk.TextContent{Text: "nope"}},
			IsError: true,
		}, nil, nil
	})

	clientTransport, serverTransport := sdk.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = server.Run(ctx, serverTransport) }()

	return clientTransport
}

func TestFromTransport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	transport := startFakeServer(t)

	client, err := mcpclient.Connect(ctx, stdiosession.FromTransport(transport), mcpclient.WithName("fake"))
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
		if tool.InputSchema.Type != "object" {
			t.Errorf("tool %s: input schema type = %q, want object", tool.Name, tool.InputSchema.Type)
		}
	}
	if !names["echo"] || !names["always_fails"] {
		t.Fatalf("unexpected tools: %+v", tools)
	}

	contents, err := client.CallTool(ctx, "echo", map[string]any{"message": "hello"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if len(contents) != 1 || contents[0].Text != "you said: hello" {
		t.Fatalf("unexpected contents: %+v", contents)
	}
}

func TestFromTransport_IsErrorSurfacesAsInvocationError(t *testing.T) {
	ctx := context.Background()
	transport := startFakeServer(t)

	client, err := mcpclient.Connect(ctx, stdiosession.FromTransport(transport))
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	_, err = client.CallTool(ctx, "always_fails", nil)
	var ie *mcpclient.InvocationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvocationError, got %T: %v", err, err)
	}
}

func TestFactory_EmptyCommand(t *testing.T) {
	_, err := mcpclient.Connect(context.Background(), stdiosession.Factory(stdiosession.ServerParams{}))
	var ie *mcpclient.InitializationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InitializationError, got %T: %v", err, err)
	}
}
