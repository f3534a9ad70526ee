package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"gems-mediator/internal/model"
	"gems-mediator/internal/pkg/lock"
	"gems-mediator/internal/platform"
	"gems-mediator/internal/repository"
)

// PrestigeConfig tunes the prestige progression tracker.
type PrestigeConfig struct {
	// GemRewardBase scales with the newly observed level: reward is
	// GemRewardBase * level, not per level gained.
	GemRewardBase float64
	// MultiplierPerLevel increments the committed multiplier per level.
	MultiplierPerLevel float64
	// PlaceholderKey is the oracle key for the current prestige level.
	PlaceholderKey string
	// CommandKeyword marks player commands that may advance prestige.
	CommandKeyword string
}

// PrestigeTracker is the per-player prestige progression state machine.
// Levels only move forward: a re-observed or lower level is a no-op, which
// makes replayed triggers and stale reads harmless.
//
// The committed multiplier is derived from the formula
// 1 + level*MultiplierPerLevel; the permission-derived value is computed
// once per advance and logged when the two disagree, as a consistency
// check against the external authorization state.
type PrestigeTracker struct {
	profiles     ProfileStore
	gateway      Granter
	oracle       platform.PlaceholderOracle
	resolver     *MultiplierResolver
	sched        platform.Scheduler
	locks        *lock.PlayerLock
	startingGems float64
	cfg          PrestigeConfig
}

// NewPrestigeTracker creates a new PrestigeTracker.
func NewPrestigeTracker(
	profiles ProfileStore,
	gateway Granter,
	oracle platform.PlaceholderOracle,
	resolver *MultiplierResolver,
	sched platform.Scheduler,
	locks *lock.PlayerLock,
	startingGems float64,
	cfg PrestigeConfig,
) *PrestigeTracker {
	return &PrestigeTracker{
		profiles:     profiles,
		gateway:      gateway,
		oracle:       oracle,
		resolver:     resolver,
		sched:        sched,
		locks:        locks,
		startingGems: startingGems,
		cfg:          cfg,
	}
}

// Register subscribes the tracker to player commands.
func (t *PrestigeTracker) Register(bus *platform.EventBus) {
	bus.OnPlayerCommand(t.OnPlayerCommand)
}

// OnPlayerCommand observes player commands for the prestige keyword. The
// oracle re-query is deferred one tick: the external prestige command has
// not finished mutating its own state when this trigger fires.
func (t *PrestigeTracker) OnPlayerCommand(e *platform.PlayerCommandEvent) {
	if !strings.Contains(strings.ToLower(e.Text), t.cfg.CommandKeyword) {
		return
	}

	player := e.Player
	t.sched.RunNextTick(func() {
		t.Advance(context.Background(), player)
	})
}

// Advance re-reads the external prestige level and, on a monotonic
// increase, grants the advance reward and commits the new level and
// multiplier. Every failure path is a silent no-op: the prestige source
// may simply not be installed.
func (t *PrestigeTracker) Advance(ctx context.Context, player platform.Player) {
	observed, ok := t.observedLevel(ctx, player.Name())
	if !ok {
		return
	}

	t.locks.Lock(player.Name())
	defer t.locks.Unlock(player.Name())

	profile, _, err := t.profiles.GetOrCreate(ctx, player.Name(), t.startingGems)
	if err != nil {
		log.Error().Err(err).Str("player", player.Name()).Msg("Failed to load profile for prestige advance")
		return
	}

	if observed <= profile.PrestigeLevel {
		return
	}

	// Reward scales with the new level, not the delta.
	reward := t.cfg.GemRewardBase * float64(observed)
	newMultiplier := model.NeutralMultiplier + float64(observed)*t.cfg.MultiplierPerLevel

	if permMult := t.resolver.ResolvePlayer(ctx, player); permMult != newMultiplier {
		log.Warn().
			Str("player", player.Name()).
			Float64("committed", newMultiplier).
			Float64("permission", permMult).
			Msg("Permission-derived multiplier disagrees with prestige formula")
	}

	// Grant before committing the level. A failed grant leaves the level
	// uncommitted so the next trigger retries the whole advance.
	if _, err := t.gateway.Grant(ctx, player.Name(), reward); err != nil {
		log.Error().Err(err).Str("player", player.Name()).Int("level", observed).Msg("Prestige reward grant failed, level not committed")
		return
	}

	if _, err := t.profiles.CommitPrestige(ctx, player.Name(), observed, newMultiplier); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			// A concurrent advance already committed this or a higher level.
			return
		}
		log.Error().Err(err).Str("player", player.Name()).Int("level", observed).Msg("Prestige commit failed after grant")
		return
	}

	log.Info().
		Str("player", player.Name()).
		Int("level", observed).
		Float64("reward", reward).
		Float64("multiplier", newMultiplier).
		Msg("Prestige advanced")

	player.SendMessage(fmt.Sprintf("Prestige %d! +%.0f gems + x%.2f multiplier!", observed, reward, newMultiplier))
}

// observedLevel queries the external prestige level.
func (t *PrestigeTracker) observedLevel(ctx context.Context, playerName string) (int, bool) {
	raw, err := t.oracle.Resolve(ctx, playerName, t.cfg.PlaceholderKey)
	if err != nil {
		if !errors.Is(err, platform.ErrUnavailable) {
			log.Debug().Err(err).Str("player", playerName).Msg("Prestige placeholder query failed")
		}
		return 0, false
	}

	level, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || level < 0 {
		return 0, false
	}
	return level, true
}
