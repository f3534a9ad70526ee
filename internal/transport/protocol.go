// Package transport implements the WebSocket channel to the game platform.
// The platform streams observed events to the mediator and executes each
// command only after receiving a verdict frame; placeholder and permission
// queries flow the other way as correlated request/response pairs.
package transport

import "encoding/json"

// Frame types, platform -> mediator.
const (
	TypePlayerCommand = "player_command"
	TypeSystemCommand = "system_command"
	TypePlayerJoin    = "player_join"
	TypePlayerQuit    = "player_quit"
	TypeQueryResult   = "query_result"
)

// Frame types, mediator -> platform.
const (
	TypeVerdict = "verdict"
	TypeMessage = "message"
	TypeQuery   = "query"
)

// Query kinds.
const (
	QueryPlaceholder = "placeholder"
	QueryPermissions = "permissions"
)

// BaseMsg carries only the type tag for two-pass decoding.
type BaseMsg struct {
	Type string `json:"type"`
}

// EventMsg is an observed platform event. ID is set on command events and
// correlates the verdict the platform waits for before executing the
// command.
type EventMsg struct {
	Type   string `json:"type"`
	ID     int64  `json:"id,omitempty"`
	Player string `json:"player,omitempty"`
	Text   string `json:"text,omitempty"`
}

// VerdictMsg answers a command event. Cancelled true suppresses the
// original command at the platform.
type VerdictMsg struct {
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	Cancelled bool   `json:"cancelled"`
}

// MessageMsg delivers a plain-text notification to a player.
type MessageMsg struct {
	Type   string `json:"type"`
	Player string `json:"player"`
	Text   string `json:"text"`
}

// QueryMsg asks the platform for a placeholder value or a player's
// effective permission set.
type QueryMsg struct {
	Type   string `json:"type"`
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Player string `json:"player"`
	Key    string `json:"key,omitempty"`
}

// QueryResultMsg answers a QueryMsg. Ok false means the backing source is
// unavailable (e.g. the placeholder plugin is not installed).
type QueryResultMsg struct {
	Type   string   `json:"type"`
	ID     int64    `json:"id"`
	Ok     bool     `json:"ok"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// DecodeBase extracts the frame type tag.
func DecodeBase(data []byte) (BaseMsg, error) {
	var base BaseMsg
	err := json.Unmarshal(data, &base)
	return base, err
}
