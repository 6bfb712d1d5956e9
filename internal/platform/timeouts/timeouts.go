// Package timeouts defines shared timeout constants used across opsbot.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// GRPCRequest caps the time allowed for a single operator RPC.
const GRPCRequest = 10 * time.Second

// ChatRequest caps operator chat RPCs, which wait on text generation.
const ChatRequest = 60 * time.Second

// Generation is the default cap on one text generation call.
const Generation = 30 * time.Second

// Handler is the default cap on one action handler invocation.
const Handler = 20 * time.Second

// Shutdown limits how long background work may drain during shutdown.
const Shutdown = 5 * time.Second
