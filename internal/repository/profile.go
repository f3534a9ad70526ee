// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gems-mediator/internal/model"
)

// Common errors for repository operations.
var (
	ErrProfileNotFound = errors.New("player profile not found")
)

// ProfileRepository handles player economy profile persistence.
// Profiles are keyed by the stable (lowercased) player name.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = "name, balance, prestige_level, gem_multiplier, created_at, updated_at"

func scanProfile(row pgx.Row) (*model.PlayerProfile, error) {
	var p model.PlayerProfile
	err := row.Scan(
		&p.Name,
		&p.Balance,
		&p.PrestigeLevel,
		&p.GemMultiplier,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create creates a new profile with the given starting balance.
// Prestige starts at level 0 with the neutral multiplier.
func (r *ProfileRepository) Create(ctx context.Context, name string, startingBalance float64) (*model.PlayerProfile, error) {
	const query = `
		INSERT INTO player_profiles (name, balance, prestige_level, gem_multiplier, created_at, updated_at)
		VALUES (LOWER($1), $2, 0, 1.0, NOW(), NOW())
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, name, startingBalance))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// GetByName retrieves a profile by player name.
// Returns ErrProfileNotFound if the profile does not exist.
func (r *ProfileRepository) GetByName(ctx context.Context, name string) (*model.PlayerProfile, error) {
	const query = `
		SELECT ` + profileColumns + `
		FROM player_profiles
		WHERE name = LOWER($1)
	`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetOrCreate retrieves a profile, lazily creating one on first load.
// Returns the profile and whether it was newly created.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, name string, startingBalance float64) (*model.PlayerProfile, bool, error) {
	p, err := r.GetByName(ctx, name)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, false, err
	}

	p, err = r.Create(ctx, name, startingBalance)
	if err != nil {
		// Handle race condition: another caller might have created the profile
		p, err = r.GetByName(ctx, name)
		if err != nil {
			return nil, false, err
		}
		return p, false, nil
	}

	return p, true, nil
}

// AddBalance adjusts a profile's balance by the given amount.
// Returns the updated profile.
func (r *ProfileRepository) AddBalance(ctx context.Context, name string, amount float64) (*model.PlayerProfile, error) {
	const query = `
		UPDATE player_profiles
		SET balance = balance + $2, updated_at = NOW()
		WHERE name = LOWER($1)
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, name, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to add balance: %w", err)
	}
	return p, nil
}

// CommitPrestige commits an observed prestige level and its multiplier.
// The WHERE guard keeps the committed level monotonic even if two advances
// race: a stale commit matches no row and reports ErrProfileNotFound.
func (r *ProfileRepository) CommitPrestige(ctx context.Context, name string, level int, multiplier float64) (*model.PlayerProfile, error) {
	const query = `
		UPDATE player_profiles
		SET prestige_level = $2, gem_multiplier = $3, updated_at = NOW()
		WHERE name = LOWER($1) AND prestige_level < $2
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, name, level, multiplier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to commit prestige: %w", err)
	}
	return p, nil
}

// TopProfiles retrieves the top N profiles by balance.
func (r *ProfileRepository) TopProfiles(ctx context.Context, limit int) ([]*model.PlayerProfile, error) {
	const query = `
		SELECT ` + profileColumns + `
		FROM player_profiles
		ORDER BY balance DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.PlayerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}
