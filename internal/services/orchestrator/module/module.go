// Package module defines the closed set of operating domains and the action
// catalog each one allows.
//
// Catalog data is immutable package state; every accessor returns copies so
// callers can read it concurrently without locks.
package module

import (
	"errors"
	"fmt"
	"strings"
)

// Module identifies one operating domain.
type Module string

const (
	// General covers cross-domain analytics and coordination.
	General Module = "general"
	// Marketing covers reputation, social media, and advertising.
	Marketing Module = "marketing"
	// Reservations covers availability, pricing, and guest messaging.
	Reservations Module = "reservations"
	// Finance covers reporting, revenue, expenses, and invoicing.
	Finance Module = "finance"
	// Logistics covers inventory, housekeeping, maintenance, and staff tasks.
	Logistics Module = "logistics"
)

// RiskTier classifies how consequential an action is.
type RiskTier string

const (
	// RiskLow marks read-only or draft-only actions.
	RiskLow RiskTier = "low"
	// RiskMedium marks actions that change operational state.
	RiskMedium RiskTier = "medium"
	// RiskHigh marks actions that publish externally or spend money.
	RiskHigh RiskTier = "high"
)

var (
	// ErrUnknownModule indicates a module name outside the closed set.
	ErrUnknownModule = errors.New("unknown module")
	// ErrUnknownRiskTier indicates a risk tier outside low/medium/high.
	ErrUnknownRiskTier = errors.New("unknown risk tier")
)

var modules = []Module{General, Marketing, Reservations, Finance, Logistics}

// All returns every module in display order.
func All() []Module {
	return append([]Module(nil), modules...)
}

// Parse normalizes and validates a module name.
func Parse(value string) (Module, error) {
	candidate := Module(strings.ToLower(strings.TrimSpace(value)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownModule, value)
	}
	return candidate, nil
}

// Valid reports whether m is one of the known modules.
func (m Module) Valid() bool {
	switch m {
	case General, Marketing, Reservations, Finance, Logistics:
		return true
	default:
		return false
	}
}

func (m Module) String() string {
	return string(m)
}

// ParseRiskTier normalizes and validates a risk tier.
func ParseRiskTier(value string) (RiskTier, error) {
	candidate := RiskTier(strings.ToLower(strings.TrimSpace(value)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRiskTier, value)
	}
	return candidate, nil
}

// Valid reports whether t is low, medium, or high.
func (t RiskTier) Valid() bool {
	switch t {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// Rank orders tiers from least (0) to most (2) consequential; unknown tiers rank highest.
func (t RiskTier) Rank() int {
	switch t {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	default:
		return 2
	}
}
