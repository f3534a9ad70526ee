package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"gems-mediator/internal/platform"
)

// PlaytimeConfig tunes the playtime accrual processor.
type PlaytimeConfig struct {
	PerHour        float64
	DailyCap       float64
	PlaceholderKey string
}

// PlaytimeAccrual converts a player's elapsed daily playtime into a capped
// gem grant, once per session start. The oracle reports cumulative daily
// time, so a rejoin re-derives from the same monotone input and the daily
// cap bounds the total; there is no separate granted-today ledger.
type PlaytimeAccrual struct {
	gateway  Granter
	oracle   platform.PlaceholderOracle
	resolver *MultiplierResolver
	ensure   func(ctx context.Context, playerName string) (bool, error)
	cfg      PlaytimeConfig
}

// NewPlaytimeAccrual creates a new PlaytimeAccrual. ensureProfile lazily
// creates the player's economy profile on join.
func NewPlaytimeAccrual(
	gateway Granter,
	oracle platform.PlaceholderOracle,
	resolver *MultiplierResolver,
	ensureProfile func(ctx context.Context, playerName string) (bool, error),
	cfg PlaytimeConfig,
) *PlaytimeAccrual {
	return &PlaytimeAccrual{
		gateway:  gateway,
		oracle:   oracle,
		resolver: resolver,
		ensure:   ensureProfile,
		cfg:      cfg,
	}
}

// Register subscribes the processor to player joins.
func (a *PlaytimeAccrual) Register(bus *platform.EventBus) {
	bus.OnPlayerJoin(func(e *platform.PlayerJoinEvent) {
		a.OnJoin(context.Background(), e.Player)
	})
}

// OnJoin runs the accrual once for a session start. A missing or
// unparsable playtime value is a no-op: the time-tracking collaborator may
// not be installed.
func (a *PlaytimeAccrual) OnJoin(ctx context.Context, player platform.Player) {
	if created, err := a.ensure(ctx, player.Name()); err != nil {
		log.Error().Err(err).Str("player", player.Name()).Msg("Failed to load profile on join")
		return
	} else if created {
		log.Info().Str("player", player.Name()).Msg("Created economy profile")
	}

	raw, err := a.oracle.Resolve(ctx, player.Name(), a.cfg.PlaceholderKey)
	if err != nil {
		if !errors.Is(err, platform.ErrUnavailable) {
			log.Debug().Err(err).Str("player", player.Name()).Msg("Playtime placeholder query failed")
		}
		return
	}

	minutes := ParsePlaytime(raw)
	if minutes <= 0 {
		return
	}

	// Live multiplier at accrual time, not the cached profile value.
	multiplier := a.resolver.ResolvePlayer(ctx, player)

	grant := (float64(minutes) / 60.0) * a.cfg.PerHour * multiplier
	if grant > a.cfg.DailyCap {
		grant = a.cfg.DailyCap
	}
	if grant <= 0 {
		return
	}

	if _, err := a.gateway.Grant(ctx, player.Name(), grant); err != nil {
		log.Error().Err(err).Str("player", player.Name()).Msg("Playtime grant failed")
		return
	}

	log.Info().
		Str("player", player.Name()).
		Int64("minutes", minutes).
		Float64("multiplier", multiplier).
		Float64("grant", grant).
		Msg("Playtime gems accrued")

	player.SendMessage(fmt.Sprintf("+%.0f gems for playtime (x%.2f)", grant, multiplier))
}

// ParsePlaytime parses an elapsed-playtime string in "H:MM" form or as a
// bare number of minutes. Any other format yields 0, meaning nothing to
// grant.
func ParsePlaytime(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	if before, after, found := strings.Cut(raw, ":"); found {
		hours, err := strconv.ParseInt(before, 10, 64)
		if err != nil {
			return 0
		}
		minutes, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			return 0
		}
		if hours < 0 || minutes < 0 {
			return 0
		}
		return hours*60 + minutes
	}

	minutes, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || minutes < 0 {
		return 0
	}
	return minutes
}
