// Package service runs the opsbot MCP server over stdio and wires its tools
// to an orchestrator gRPC connection.
package service
