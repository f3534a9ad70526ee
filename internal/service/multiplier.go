// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gems-mediator/internal/model"
	"gems-mediator/internal/platform"
)

// MultiplierResolver derives a player's reward multiplier from their
// effective permission set. Permissions of the form
// "<namespace>.prestige.multiplier.<N>" encode the multiplier as an integer
// scaled by 100, e.g. "150" for 1.50x.
type MultiplierResolver struct {
	prefix string
}

// NewMultiplierResolver creates a resolver for the given permission
// namespace, e.g. "lifestealz".
func NewMultiplierResolver(namespace string) *MultiplierResolver {
	return &MultiplierResolver{prefix: namespace + ".prestige.multiplier."}
}

// Resolve scans the permission set for multiplier entries and returns the
// decoded multiplier. Malformed suffixes are skipped. When several
// well-formed entries are held the maximum value wins, making the result
// deterministic regardless of enumeration order. No entry returns the
// neutral 1.0.
func (r *MultiplierResolver) Resolve(perms []string) float64 {
	best := 0.0
	found := false
	for _, perm := range perms {
		suffix, ok := strings.CutPrefix(perm, r.prefix)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(suffix, 10, 32)
		if err != nil {
			continue
		}
		if m := float64(n) / 100.0; !found || m > best {
			best = m
			found = true
		}
	}
	if !found {
		return model.NeutralMultiplier
	}
	return best
}

// ResolvePlayer resolves the multiplier from a player's live permissions.
// A failed permission query degrades to the neutral multiplier.
func (r *MultiplierResolver) ResolvePlayer(ctx context.Context, p platform.Player) float64 {
	if p == nil {
		return model.NeutralMultiplier
	}
	perms, err := p.Permissions(ctx)
	if err != nil {
		return model.NeutralMultiplier
	}
	return r.Resolve(perms)
}

// FormatMultiplier renders a multiplier for player-visible messages,
// e.g. "1.50x".
func FormatMultiplier(m float64) string {
	return fmt.Sprintf("%.2fx", m)
}
