// Package platform defines the boundary to the external game platform:
// connected players, the event stream, the placeholder oracle, and the
// run-next-tick scheduler. The mediation core depends only on these
// interfaces; internal/transport provides the wire implementation.
package platform

import (
	"context"
	"strings"
	"sync"
)

// Player is a currently-connected player as seen by the platform.
type Player interface {
	// Name returns the player's display name.
	Name() string

	// SendMessage delivers a plain-text notification to the player.
	SendMessage(text string)

	// Permissions returns the player's current effective permission set.
	Permissions(ctx context.Context) ([]string, error)
}

// SessionRegistry tracks connected players. Lookup is a case-insensitive
// exact name match, mirroring how the platform resolves command targets.
type SessionRegistry struct {
	mu      sync.RWMutex
	players map[string]Player
}

// NewSessionRegistry creates an empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{players: make(map[string]Player)}
}

// Connect registers a player session.
func (s *SessionRegistry) Connect(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[strings.ToLower(p.Name())] = p
}

// Disconnect removes a player session by name.
func (s *SessionRegistry) Disconnect(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, strings.ToLower(name))
}

// Lookup finds a connected player by exact name, ignoring case.
func (s *SessionRegistry) Lookup(name string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[strings.ToLower(name)]
	return p, ok
}

// Online returns a snapshot of all connected players.
func (s *SessionRegistry) Online() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	return players
}

// Count returns the number of connected players.
func (s *SessionRegistry) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}
