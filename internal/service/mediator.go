package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"gems-mediator/internal/model"
	"gems-mediator/internal/platform"
)

// grantPrefix is the grant-command grammar prefix, matched after
// lowercasing and stripping an optional leading "/".
const grantPrefix = "gems give"

// CommandMediator intercepts externally-issued "gems give" commands before
// they execute. When the target holds a non-neutral multiplier the original
// command is cancelled and replaced with a single multiplier-adjusted grant;
// otherwise the command passes through untouched. Every parse or lookup
// failure is fail-open: the original command runs on its own terms.
type CommandMediator struct {
	sessions *platform.SessionRegistry
	resolver *MultiplierResolver
	gateway  Granter
}

// NewCommandMediator creates a new CommandMediator.
func NewCommandMediator(sessions *platform.SessionRegistry, resolver *MultiplierResolver, gateway Granter) *CommandMediator {
	return &CommandMediator{
		sessions: sessions,
		resolver: resolver,
		gateway:  gateway,
	}
}

// Register subscribes the mediator to both command delivery channels.
func (m *CommandMediator) Register(bus *platform.EventBus) {
	bus.OnPlayerCommand(func(e *platform.PlayerCommandEvent) {
		m.Mediate(context.Background(), e.Text, model.SourcePlayer, e.Cancel)
	})
	bus.OnSystemCommand(func(e *platform.SystemCommandEvent) {
		m.Mediate(context.Background(), e.Text, model.SourceSystem, e.Cancel)
	})
}

// Mediate applies the interception decision to one raw command. cancel must
// suppress the original command at the delivery layer; it is invoked before
// any replacement grant so the two paths can never both credit.
func (m *CommandMediator) Mediate(ctx context.Context, rawText string, source model.CommandSource, cancel func()) {
	command := strings.ToLower(strings.TrimSpace(rawText))
	command = strings.TrimPrefix(command, "/")
	if !strings.HasPrefix(command, grantPrefix) {
		return
	}

	// Parse: "gems give <player> <amount>"; trailing tokens are ignored.
	args := strings.Fields(command)
	if len(args) < 4 {
		log.Warn().Str("command", rawText).Int("args", len(args)).Msg("Grant command too short, passing through")
		return
	}

	playerName := args[2]
	target, ok := m.sessions.Lookup(playerName)
	if !ok {
		// Not online; the original command's own error handling runs.
		log.Debug().Str("player", playerName).Msg("Grant target not online, passing through")
		return
	}

	baseAmount, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		log.Warn().Str("command", rawText).Err(err).Msg("Unparsable grant amount, passing through")
		return
	}

	multiplier := m.resolver.ResolvePlayer(ctx, target)
	if multiplier == model.NeutralMultiplier {
		log.Debug().Str("player", target.Name()).Msg("Neutral multiplier, passing through")
		return
	}

	// Cancel before granting: the original command must never race the
	// adjusted grant.
	cancel()

	finalAmount := baseAmount * multiplier
	if _, err := m.gateway.Grant(ctx, target.Name(), finalAmount); err != nil {
		log.Error().Err(err).Str("player", target.Name()).Msg("Mediated grant failed after cancellation")
		return
	}

	log.Info().
		Str("player", target.Name()).
		Str("source", string(source)).
		Float64("base", baseAmount).
		Float64("multiplier", multiplier).
		Float64("final", finalAmount).
		Msg("Grant command mediated")

	target.SendMessage(fmt.Sprintf("+%.1f gems (%.0f × %s)", finalAmount, baseAmount, FormatMultiplier(multiplier)))
}
