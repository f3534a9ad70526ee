package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"gems-mediator/internal/model"
	"gems-mediator/internal/pkg/lock"
)

// GrantGateway is the single choke point through which all currency
// increases flow. Failures are surfaced to the caller and logged; there is
// no retry here.
type GrantGateway struct {
	profiles     ProfileStore
	locks        *lock.PlayerLock
	startingGems float64
}

// NewGrantGateway creates a new GrantGateway.
func NewGrantGateway(profiles ProfileStore, locks *lock.PlayerLock, startingGems float64) *GrantGateway {
	return &GrantGateway{
		profiles:     profiles,
		locks:        locks,
		startingGems: startingGems,
	}
}

// Grant credits amount gems to the named player, creating the profile
// lazily on first grant. The returned profile reflects the new balance.
func (g *GrantGateway) Grant(ctx context.Context, playerName string, amount float64) (*model.PlayerProfile, error) {
	var p *model.PlayerProfile
	err := g.locks.WithLock(playerName, func() error {
		if _, _, err := g.profiles.GetOrCreate(ctx, playerName, g.startingGems); err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		var err error
		p, err = g.profiles.AddBalance(ctx, playerName, amount)
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("player", playerName).Float64("amount", amount).Msg("Gem grant failed")
		return nil, err
	}

	log.Info().
		Str("player", playerName).
		Float64("amount", amount).
		Float64("balance", p.Balance).
		Msg("Gems granted")
	return p, nil
}

// EnsureProfile lazily creates the player's profile if absent.
// Returns whether the profile was newly created.
func (g *GrantGateway) EnsureProfile(ctx context.Context, playerName string) (bool, error) {
	var created bool
	err := g.locks.WithLock(playerName, func() error {
		var err error
		_, created, err = g.profiles.GetOrCreate(ctx, playerName, g.startingGems)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return created, nil
}
