// Package mcp holds the client-facing subset of Model Context Protocol
// types: tool descriptors, their input schemas, and the typed content
// blocks that make up a tool result. The wire protocol itself is handled
// by the session implementation (see package stdiosession); these types
// exist so the rest of the module does not depend on any particular
// transport SDK.
package mcp
