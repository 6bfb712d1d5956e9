package domain

import (
	"time"

	"github.com/orbicity/opsbot/internal/platform/timeouts"
)

// grpcCallTimeout caps the time for a single gRPC call from an MCP tool handler.
const grpcCallTimeout = 5 * time.Second

// chatCallTimeout covers a chat turn, which waits on text generation.
const chatCallTimeout = timeouts.ChatRequest
