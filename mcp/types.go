package mcp

// ImplementationInfo identifies an MCP implementation by name and version.
// Clients send it during the initialize handshake; servers echo their own.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// Tool describes a callable tool advertised by a server: a name, a human
// readable description, and a JSON-schema-like description of its input.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

// ToolInputSchema is a JSON-schema-like description of tool input. Tool
// inputs are always object-shaped at the top level.
type ToolInputSchema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties,omitzero"`
}

// SchemaProperty is a simplified schema node used inside tool input schemas.
type SchemaProperty struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitzero"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Enum        []any                     `json:"enum,omitempty"`
}

// ContentBlock is one typed content part of a tool result. The Type field
// discriminates which of the remaining fields are meaningful:
//
//	"text"     : Text
//	"image"    : Data (base64), MimeType
//	"audio"    : Data (base64), MimeType
//	"resource" : Resource
type ContentBlock struct {
	Type string `json:"type"`
	// For text content.
	Text string `json:"text,omitzero"`
	// For image and audio content.
	Data     string `json:"data,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
	// For embedded resources.
	Resource *ResourceContents `json:"resource,omitempty"`
}

// ResourceContents is the payload of an embedded resource. Exactly one of
// Text or Blob is populated.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitzero"`
	// For textual resources.
	Text string `json:"text,omitzero"`
	// For binary resources (base64).
	Blob string `json:"blob,omitzero"`
}

// CallToolResult is a tool invocation result as received from the server.
// When IsError is set the content carries the remote diagnostic rather than
// a usable result.
type CallToolResult struct {
	Content []ContentBlock `json:"content,omitempty"`
	IsError bool           `json:"isError,omitzero"`
}

// LatestProtocolVersion is the latest protocol revision this module targets.
const LatestProtocolVersion = "2025-06-18"
