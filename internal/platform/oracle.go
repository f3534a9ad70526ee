package platform

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the placeholder source cannot answer,
// typically because the backing plugin is not installed. Callers treat it
// the same as a malformed value: no-op.
var ErrUnavailable = errors.New("placeholder unavailable")

// PlaceholderOracle maps symbolic tokens to current string values for a
// player, e.g. today's elapsed playtime or the current prestige level.
type PlaceholderOracle interface {
	Resolve(ctx context.Context, playerName, key string) (string, error)
}
