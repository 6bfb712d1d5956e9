// Package domain exposes orchestrator operations as MCP tools.
//
// Each tool validates its input, calls the orchestrator over gRPC with a
// bounded timeout and returns a structured result with RFC3339 timestamps.
package domain
