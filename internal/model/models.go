// Package model defines the data models for the gems mediation service.
package model

import "time"

// NeutralMultiplier means "no adjustment": the unmediated grant path runs.
const NeutralMultiplier = 1.0

// CommandSource identifies which delivery channel a grant command arrived on.
type CommandSource string

const (
	SourcePlayer CommandSource = "player"
	SourceSystem CommandSource = "system"
)

// PlayerProfile represents a player's economy record.
// PrestigeLevel never decreases once committed; GemMultiplier is the cached
// multiplier for that committed level and is always >= 1.0.
type PlayerProfile struct {
	Name          string    `db:"name"`
	Balance       float64   `db:"balance"`
	PrestigeLevel int       `db:"prestige_level"`
	GemMultiplier float64   `db:"gem_multiplier"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}
