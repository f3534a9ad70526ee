package service

import (
	"context"

	"gems-mediator/internal/model"
)

// ProfileStore is the persistence surface the services need.
// *repository.ProfileRepository implements it; tests substitute an
// in-memory store.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, name string, startingBalance float64) (*model.PlayerProfile, bool, error)
	AddBalance(ctx context.Context, name string, amount float64) (*model.PlayerProfile, error)
	CommitPrestige(ctx context.Context, name string, level int, multiplier float64) (*model.PlayerProfile, error)
	TopProfiles(ctx context.Context, limit int) ([]*model.PlayerProfile, error)
}

// Granter is the currency grant choke point consumed by the mediator,
// prestige tracker, and playtime processor. *GrantGateway implements it.
type Granter interface {
	Grant(ctx context.Context, playerName string, amount float64) (*model.PlayerProfile, error)
}
