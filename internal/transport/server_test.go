package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gems-mediator/internal/model"
	"gems-mediator/internal/platform"
	"gems-mediator/internal/service"
)

// recordingGranter implements service.Granter.
type recordingGranter struct {
	mu      sync.Mutex
	players []string
	amounts []float64
}

func (g *recordingGranter) Grant(ctx context.Context, playerName string, amount float64) (*model.PlayerProfile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.players = append(g.players, playerName)
	g.amounts = append(g.amounts, amount)
	return &model.PlayerProfile{Name: playerName, Balance: amount}, nil
}

// fakePlatform is the test's stand-in for the game platform plugin.
type fakePlatform struct {
	t     *testing.T
	conn  *websocket.Conn
	perms map[string][]string
}

func dialPlatform(t *testing.T, url string, perms map[string][]string) *fakePlatform {
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &fakePlatform{t: t, conn: conn, perms: perms}
}

func (p *fakePlatform) send(msg any) {
	require.NoError(p.t, p.conn.WriteJSON(msg))
}

// awaitVerdict reads frames, answering queries from the configured
// permission table, until the verdict for id arrives. It returns the
// verdict and any message frames observed on the way.
func (p *fakePlatform) awaitVerdict(id int64) (VerdictMsg, []MessageMsg) {
	deadline := time.Now().Add(5 * time.Second)
	var messages []MessageMsg

	for time.Now().Before(deadline) {
		require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := p.conn.ReadMessage()
		require.NoError(p.t, err)

		base, err := DecodeBase(data)
		require.NoError(p.t, err)

		switch base.Type {
		case TypeQuery:
			var q QueryMsg
			require.NoError(p.t, json.Unmarshal(data, &q))
			res := QueryResultMsg{Type: TypeQueryResult, ID: q.ID}
			if q.Kind == QueryPermissions {
				values, ok := p.perms[strings.ToLower(q.Player)]
				res.Ok = ok
				res.Values = values
			}
			p.send(res)
		case TypeMessage:
			var m MessageMsg
			require.NoError(p.t, json.Unmarshal(data, &m))
			messages = append(messages, m)
		case TypeVerdict:
			var v VerdictMsg
			require.NoError(p.t, json.Unmarshal(data, &v))
			if v.ID == id {
				return v, messages
			}
		}
	}

	p.t.Fatalf("no verdict for id %d", id)
	return VerdictMsg{}, nil
}

func setupMediationServer(t *testing.T) (*httptest.Server, *recordingGranter) {
	bus := platform.NewEventBus()
	sessions := platform.NewSessionRegistry()
	loop := platform.NewTickLoop()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go loop.Run(ctx)

	granter := &recordingGranter{}
	mediator := service.NewCommandMediator(sessions, service.NewMultiplierResolver("lifestealz"), granter)
	mediator.Register(bus)

	srv := NewServer(bus, sessions, loop)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	return httpSrv, granter
}

func TestServer_MediatesGrantCommand(t *testing.T) {
	httpSrv, granter := setupMediationServer(t)

	p := dialPlatform(t, httpSrv.URL, map[string][]string{
		"steve": {"lifestealz.prestige.multiplier.150"},
	})

	p.send(EventMsg{Type: TypePlayerJoin, Player: "Steve"})
	p.send(EventMsg{Type: TypeSystemCommand, ID: 7, Text: "gems give Steve 100"})

	verdict, messages := p.awaitVerdict(7)
	assert.True(t, verdict.Cancelled, "non-neutral multiplier must cancel the original command")

	require.Len(t, messages, 1)
	assert.Equal(t, "Steve", messages[0].Player)
	assert.Equal(t, "+150.0 gems (100 × 1.50x)", messages[0].Text)

	granter.mu.Lock()
	defer granter.mu.Unlock()
	require.Len(t, granter.amounts, 1)
	assert.Equal(t, 150.0, granter.amounts[0])
}

func TestServer_NeutralMultiplierPassesThrough(t *testing.T) {
	httpSrv, granter := setupMediationServer(t)

	p := dialPlatform(t, httpSrv.URL, map[string][]string{
		"steve": {},
	})

	p.send(EventMsg{Type: TypePlayerJoin, Player: "Steve"})
	p.send(EventMsg{Type: TypeSystemCommand, ID: 3, Text: "gems give Steve 100"})

	verdict, messages := p.awaitVerdict(3)
	assert.False(t, verdict.Cancelled)
	assert.Empty(t, messages)

	granter.mu.Lock()
	defer granter.mu.Unlock()
	assert.Empty(t, granter.amounts)
}

func TestServer_TargetNeverJoinedPassesThrough(t *testing.T) {
	httpSrv, granter := setupMediationServer(t)

	p := dialPlatform(t, httpSrv.URL, nil)
	p.send(EventMsg{Type: TypeSystemCommand, ID: 1, Text: "gems give Ghost 100"})

	verdict, _ := p.awaitVerdict(1)
	assert.False(t, verdict.Cancelled)

	granter.mu.Lock()
	defer granter.mu.Unlock()
	assert.Empty(t, granter.amounts)
}

func TestServer_QuitRemovesSession(t *testing.T) {
	httpSrv, granter := setupMediationServer(t)

	p := dialPlatform(t, httpSrv.URL, map[string][]string{
		"steve": {"lifestealz.prestige.multiplier.150"},
	})

	p.send(EventMsg{Type: TypePlayerJoin, Player: "Steve"})
	p.send(EventMsg{Type: TypePlayerQuit, Player: "Steve"})
	p.send(EventMsg{Type: TypeSystemCommand, ID: 2, Text: "gems give Steve 100"})

	verdict, _ := p.awaitVerdict(2)
	assert.False(t, verdict.Cancelled, "offline target must pass through")

	granter.mu.Lock()
	defer granter.mu.Unlock()
	assert.Empty(t, granter.amounts)
}

func TestServer_ResolveWithoutPlatformIsUnavailable(t *testing.T) {
	bus := platform.NewEventBus()
	sessions := platform.NewSessionRegistry()
	loop := platform.NewTickLoop()
	srv := NewServer(bus, sessions, loop)

	_, err := srv.Resolve(context.Background(), "Steve", "yourplaytime_daily")
	assert.ErrorIs(t, err, platform.ErrUnavailable)
}
