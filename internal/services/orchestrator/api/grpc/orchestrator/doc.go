// Package orchestrator exposes the orchestrator over gRPC.
//
// Messages are plain Go structs carried by the JSON codec, so the service is
// declared by hand instead of generated from protobuf definitions. Handlers
// translate requests into conversation, lifecycle, and module config calls
// and map domain errors to gRPC status codes with localized details.
package orchestrator
