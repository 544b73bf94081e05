package mcpclient

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/mcp-client-go/mcp"
)

// ContentKind tags one normalized payload of a tool result.
type ContentKind string

const (
	// ContentText is plain or JSON text.
	ContentText ContentKind = "text"
	// ContentBinary is decoded binary data (images, audio).
	ContentBinary ContentKind = "binary"
	// ContentResource is an embedded resource, resolved to its textual or
	// binary representation.
	ContentResource ContentKind = "resource"
)

// Content is one normalized payload of a tool result. Kind discriminates
// which of Text and Data carries the payload: text content and textual
// resources populate Text; binary content and binary resources populate
// Data, already base64-decoded.
type Content struct {
	Kind     ContentKind
	Text     string
	Data     []byte
	MimeType string
	// URI identifies the origin for resource content.
	URI string
}

// Textual reports whether the payload is carried in Text.
func (c Content) Textual() bool {
	return c.Kind == ContentText || (c.Kind == ContentResource && c.Data == nil)
}

// normalizeContent flattens the remote result blocks into Content values.
// Text that parses as JSON is re-encoded compactly so callers see a
// canonical form regardless of server-side pretty-printing.
func normalizeContent(blocks []mcp.ContentBlock) ([]Content, error) {
	out := make([]Content, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, Content{Kind: ContentText, Text: canonicalText(b.Text)})
		case "image", "audio":
			data, err := base64.StdEncoding.DecodeString(b.Data)
			if err != nil {
				return nil, fmt.Errorf("decode %s content: %w", b.Type, err)
			}
			out = append(out, Content{Kind: ContentBinary, Data: data, MimeType: normalizeMediaType(b.MimeType)})
		case "resource":
			if b.Resource == nil {
				return nil, fmt.Errorf("resource content block without resource payload")
			}
			c, err := resolveResource(b.Resource)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		default:
			// Unknown block types degrade to their textual representation so
			// newer servers remain usable.
			out = append(out, Content{Kind: ContentText, Text: b.Text})
		}
	}
	return out, nil
}

// resolveResource resolves an embedded resource to its textual or binary
// representation. Exactly one of Text and Blob is expected on the wire; Text
// wins when both appear.
func resolveResource(rc *mcp.ResourceContents) (Content, error) {
	c := Content{
		Kind:     ContentResource,
		URI:      rc.URI,
		MimeType: normalizeMediaType(rc.MimeType),
	}
	switch {
	case rc.Text != "":
		c.Text = rc.Text
	case rc.Blob != "":
		data, err := base64.StdEncoding.DecodeString(rc.Blob)
		if err != nil {
			return Content{}, fmt.Errorf("decode resource %s: %w", rc.URI, err)
		}
		c.Data = data
	}
	return c, nil
}

// canonicalText compacts JSON text and passes everything else through.
func canonicalText(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return s
	}
	if !json.Valid([]byte(trimmed)) {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(trimmed)); err != nil {
		return s
	}
	return buf.String()
}

// normalizeMediaType parses and re-serializes a declared media type so
// callers see a canonical form ("Text/HTML; charset=UTF-8" becomes
// "text/html;charset=utf-8"). Unparseable values pass through untouched.
func normalizeMediaType(mt string) string {
	if mt == "" {
		return ""
	}
	parsed := contenttype.NewMediaType(mt)
	if parsed.Type == "" {
		return mt
	}
	return parsed.String()
}
