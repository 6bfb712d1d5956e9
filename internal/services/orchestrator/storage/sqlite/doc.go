// Package sqlite provides the SQLite-backed orchestrator store.
//
// It persists module policy, sessions, conversations with their append-only
// messages, and actions whose status only moves through conditional updates.
package sqlite
