package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"gems-mediator/internal/platform"
)

const (
	writeTimeout = 5 * time.Second
	queryTimeout = 5 * time.Second
	outQueueSize = 256
)

// Server accepts the platform connection and bridges its event stream onto
// the tick loop. It also implements platform.PlaceholderOracle by querying
// back over the active connection; with no platform attached every query
// answers ErrUnavailable, which the core treats as "collaborator absent".
type Server struct {
	bus      *platform.EventBus
	sessions *platform.SessionRegistry
	loop     *platform.TickLoop

	upgrader websocket.Upgrader

	mu      sync.Mutex
	current *session
}

// NewServer creates a transport server.
func NewServer(bus *platform.EventBus, sessions *platform.SessionRegistry, loop *platform.TickLoop) *Server {
	return &Server{
		bus:      bus,
		sessions: sessions,
		loop:     loop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler for the platform endpoint.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}

		sess := newSession(conn, s)

		s.mu.Lock()
		if s.current != nil {
			s.current.close()
		}
		s.current = sess
		s.mu.Unlock()

		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Platform connected")
		sess.run()
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Platform disconnected")

		s.mu.Lock()
		if s.current == sess {
			s.current = nil
		}
		s.mu.Unlock()
	}
}

// Resolve implements platform.PlaceholderOracle.
func (s *Server) Resolve(ctx context.Context, playerName, key string) (string, error) {
	sess := s.active()
	if sess == nil {
		return "", platform.ErrUnavailable
	}
	res, err := sess.query(ctx, QueryPlaceholder, playerName, key)
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

// permissions queries a player's effective permission set.
func (s *Server) permissions(ctx context.Context, playerName string) ([]string, error) {
	sess := s.active()
	if sess == nil {
		return nil, platform.ErrUnavailable
	}
	res, err := sess.query(ctx, QueryPermissions, playerName, "")
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

func (s *Server) active() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// session is one platform connection.
type session struct {
	server *Server
	conn   *websocket.Conn
	out    chan []byte
	done   chan struct{}

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan QueryResultMsg
	joined  map[string]struct{}
	closed  bool
}

func newSession(conn *websocket.Conn, server *Server) *session {
	return &session{
		server:  server,
		conn:    conn,
		out:     make(chan []byte, outQueueSize),
		done:    make(chan struct{}),
		pending: make(map[int64]chan QueryResultMsg),
		joined:  make(map[string]struct{}),
	}
}

func (s *session) run() {
	go s.writeLoop()
	s.readLoop()
	s.close()
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case b := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		base, err := DecodeBase(data)
		if err != nil {
			log.Debug().Err(err).Msg("Undecodable platform frame dropped")
			continue
		}

		switch base.Type {
		case TypePlayerCommand, TypeSystemCommand, TypePlayerJoin, TypePlayerQuit:
			var event EventMsg
			if err := json.Unmarshal(data, &event); err != nil {
				log.Debug().Err(err).Str("type", base.Type).Msg("Malformed event frame dropped")
				continue
			}
			s.handleEvent(event)
		case TypeQueryResult:
			var res QueryResultMsg
			if err := json.Unmarshal(data, &res); err != nil {
				continue
			}
			s.deliverResult(res)
		default:
			log.Debug().Str("type", base.Type).Msg("Unknown platform frame dropped")
		}
	}
}

// handleEvent enqueues the event onto the tick loop so handlers run
// single-threaded. Command verdicts are sent after every handler for the
// event has completed.
func (s *session) handleEvent(event EventMsg) {
	switch event.Type {
	case TypePlayerCommand:
		player := s.playerFor(event.Player)
		s.server.loop.Submit(func() {
			e := &platform.PlayerCommandEvent{Player: player, Text: event.Text}
			cancelled := s.server.bus.PublishPlayerCommand(e)
			s.send(VerdictMsg{Type: TypeVerdict, ID: event.ID, Cancelled: cancelled})
		})
	case TypeSystemCommand:
		s.server.loop.Submit(func() {
			e := &platform.SystemCommandEvent{Text: event.Text}
			cancelled := s.server.bus.PublishSystemCommand(e)
			s.send(VerdictMsg{Type: TypeVerdict, ID: event.ID, Cancelled: cancelled})
		})
	case TypePlayerJoin:
		player := &wsPlayer{name: event.Player, sess: s}
		s.server.sessions.Connect(player)
		s.mu.Lock()
		s.joined[event.Player] = struct{}{}
		s.mu.Unlock()
		s.server.loop.Submit(func() {
			s.server.bus.PublishPlayerJoin(&platform.PlayerJoinEvent{Player: player})
		})
	case TypePlayerQuit:
		s.server.sessions.Disconnect(event.Player)
		s.mu.Lock()
		delete(s.joined, event.Player)
		s.mu.Unlock()
	}
}

// playerFor returns the registered session player, or a transient wrapper
// when a command is observed for a player the platform never announced.
func (s *session) playerFor(name string) platform.Player {
	if p, ok := s.server.sessions.Lookup(name); ok {
		return p
	}
	return &wsPlayer{name: name, sess: s}
}

func (s *session) query(ctx context.Context, kind, playerName, key string) (QueryResultMsg, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return QueryResultMsg{}, platform.ErrUnavailable
	}
	s.nextID++
	id := s.nextID
	ch := make(chan QueryResultMsg, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	s.send(QueryMsg{Type: TypeQuery, ID: id, Kind: kind, Player: playerName, Key: key})

	timer := time.NewTimer(queryTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if !res.Ok {
			return QueryResultMsg{}, platform.ErrUnavailable
		}
		return res, nil
	case <-s.done:
		return QueryResultMsg{}, platform.ErrUnavailable
	case <-timer.C:
		return QueryResultMsg{}, platform.ErrUnavailable
	case <-ctx.Done():
		return QueryResultMsg{}, ctx.Err()
	}
}

func (s *session) deliverResult(res QueryResultMsg) {
	s.mu.Lock()
	ch, ok := s.pending[res.ID]
	s.mu.Unlock()
	if ok {
		select {
		case ch <- res:
		default:
		}
	}
}

func (s *session) send(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode outbound frame")
		return
	}
	select {
	case s.out <- b:
	case <-s.done:
	default:
		// Outbound queue full: the platform has stalled, drop the link.
		log.Warn().Msg("Outbound queue full, closing platform connection")
		s.close()
	}
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	joined := make([]string, 0, len(s.joined))
	for name := range s.joined {
		joined = append(joined, name)
	}
	s.joined = nil
	s.mu.Unlock()

	close(s.done)
	_ = s.conn.Close()
	for _, name := range joined {
		s.server.sessions.Disconnect(name)
	}
}

// wsPlayer is a connected player backed by the platform channel.
type wsPlayer struct {
	name string
	sess *session
}

func (p *wsPlayer) Name() string { return p.name }

func (p *wsPlayer) SendMessage(text string) {
	p.sess.send(MessageMsg{Type: TypeMessage, Player: p.name, Text: text})
}

func (p *wsPlayer) Permissions(ctx context.Context) ([]string, error) {
	return p.sess.server.permissions(ctx, p.name)
}
