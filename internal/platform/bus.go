package platform

import "sync"

// PlayerCommandEvent is a command typed by a connected player, observed
// before the platform executes it. Calling Cancel before the handlers
// return suppresses the original command.
type PlayerCommandEvent struct {
	Player    Player
	Text      string
	cancelled bool
}

// Cancel suppresses the original command at the delivery layer.
func (e *PlayerCommandEvent) Cancel() { e.cancelled = true }

// Cancelled reports whether a handler cancelled the command.
func (e *PlayerCommandEvent) Cancelled() bool { return e.cancelled }

// SystemCommandEvent is a command issued by the console or another
// automation, with no originating player.
type SystemCommandEvent struct {
	Text      string
	cancelled bool
}

// Cancel suppresses the original command at the delivery layer.
func (e *SystemCommandEvent) Cancel() { e.cancelled = true }

// Cancelled reports whether a handler cancelled the command.
func (e *SystemCommandEvent) Cancelled() bool { return e.cancelled }

// PlayerJoinEvent fires once per player session start.
type PlayerJoinEvent struct {
	Player Player
}

// EventBus is a typed dispatch table for platform events. Handlers are
// registered explicitly and invoked in registration order; dispatch of a
// single event runs each handler to completion before the next.
type EventBus struct {
	mu            sync.RWMutex
	playerCommand []func(*PlayerCommandEvent)
	systemCommand []func(*SystemCommandEvent)
	playerJoin    []func(*PlayerJoinEvent)
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// OnPlayerCommand registers a handler for player-issued commands.
func (b *EventBus) OnPlayerCommand(h func(*PlayerCommandEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playerCommand = append(b.playerCommand, h)
}

// OnSystemCommand registers a handler for system-issued commands.
func (b *EventBus) OnSystemCommand(h func(*SystemCommandEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.systemCommand = append(b.systemCommand, h)
}

// OnPlayerJoin registers a handler for player session starts.
func (b *EventBus) OnPlayerJoin(h func(*PlayerJoinEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playerJoin = append(b.playerJoin, h)
}

// PublishPlayerCommand dispatches a player command event synchronously and
// reports whether any handler cancelled it.
func (b *EventBus) PublishPlayerCommand(e *PlayerCommandEvent) bool {
	b.mu.RLock()
	handlers := b.playerCommand
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
	return e.Cancelled()
}

// PublishSystemCommand dispatches a system command event synchronously and
// reports whether any handler cancelled it.
func (b *EventBus) PublishSystemCommand(e *SystemCommandEvent) bool {
	b.mu.RLock()
	handlers := b.systemCommand
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
	return e.Cancelled()
}

// PublishPlayerJoin dispatches a join event synchronously.
func (b *EventBus) PublishPlayerJoin(e *PlayerJoinEvent) {
	b.mu.RLock()
	handlers := b.playerJoin
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
