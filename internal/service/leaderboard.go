package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"gems-mediator/internal/platform"
)

// LeaderboardConfig tunes the gems-top broadcaster.
type LeaderboardConfig struct {
	Entries        int
	UpdateInterval time.Duration
	Broadcast      bool
	Title          string
}

// Leaderboard periodically fetches the top profiles by balance and, when
// enabled, announces them to every connected player.
type Leaderboard struct {
	profiles ProfileStore
	sessions *platform.SessionRegistry
	cfg      LeaderboardConfig
}

// NewLeaderboard creates a new Leaderboard.
func NewLeaderboard(profiles ProfileStore, sessions *platform.SessionRegistry, cfg LeaderboardConfig) *Leaderboard {
	return &Leaderboard{
		profiles: profiles,
		sessions: sessions,
		cfg:      cfg,
	}
}

// Run broadcasts on the configured interval until ctx is cancelled.
func (l *Leaderboard) Run(ctx context.Context) {
	if l.cfg.UpdateInterval <= 0 {
		return
	}

	ticker := time.NewTicker(l.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.BroadcastTop(ctx); err != nil {
				log.Error().Err(err).Msg("Leaderboard update failed")
			}
		}
	}
}

// BroadcastTop fetches the top profiles and sends them to all connected
// players. The fetch runs even when broadcasting is disabled so the query
// stays warm for operator tooling.
func (l *Leaderboard) BroadcastTop(ctx context.Context) error {
	top, err := l.profiles.TopProfiles(ctx, l.cfg.Entries)
	if err != nil {
		return fmt.Errorf("failed to fetch top profiles: %w", err)
	}

	log.Debug().Int("entries", len(top)).Msg("Leaderboard updated")

	if !l.cfg.Broadcast || len(top) == 0 {
		return nil
	}

	lines := make([]string, 0, len(top)+1)
	lines = append(lines, l.cfg.Title)
	for i, p := range top {
		lines = append(lines, fmt.Sprintf("#%d %s: %.0f gems", i+1, p.Name, p.Balance))
	}

	for _, player := range l.sessions.Online() {
		for _, line := range lines {
			player.SendMessage(line)
		}
	}
	return nil
}
