// Package stdiosession provides the standard mcpclient session factory: it
// spawns an MCP server as a subprocess and speaks the stdio transport to it
// via the official Go SDK.
//
// Connection model
//
//	Process   : 1 subprocess per session, owned by the session
//	Transport : newline-delimited JSON-RPC over the child's stdin/stdout
//	Lifetime  : Session.Close shuts the child down
//
// FromTransport accepts any SDK transport instead, which is how tests wire
// an in-memory server to the client.
package stdiosession
