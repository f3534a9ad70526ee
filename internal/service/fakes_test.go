package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gems-mediator/internal/model"
	"gems-mediator/internal/platform"
	"gems-mediator/internal/repository"
)

// fakePlayer implements platform.Player for tests.
type fakePlayer struct {
	name     string
	perms    []string
	permErr  error
	messages []string
}

func (p *fakePlayer) Name() string            { return p.name }
func (p *fakePlayer) SendMessage(text string) { p.messages = append(p.messages, text) }
func (p *fakePlayer) Permissions(ctx context.Context) ([]string, error) {
	return p.perms, p.permErr
}

// fakeStore is an in-memory ProfileStore.
type fakeStore struct {
	profiles  map[string]*model.PlayerProfile
	failLoad  error
	failWrite error
}

func newFakeStore() *fakeStore {
	return &fakeStore{profiles: make(map[string]*model.PlayerProfile)}
}

func (s *fakeStore) GetOrCreate(ctx context.Context, name string, startingBalance float64) (*model.PlayerProfile, bool, error) {
	if s.failLoad != nil {
		return nil, false, s.failLoad
	}
	key := strings.ToLower(name)
	if p, ok := s.profiles[key]; ok {
		return p, false, nil
	}
	p := &model.PlayerProfile{Name: key, Balance: startingBalance, GemMultiplier: model.NeutralMultiplier}
	s.profiles[key] = p
	return p, true, nil
}

func (s *fakeStore) AddBalance(ctx context.Context, name string, amount float64) (*model.PlayerProfile, error) {
	if s.failWrite != nil {
		return nil, s.failWrite
	}
	p, ok := s.profiles[strings.ToLower(name)]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	p.Balance += amount
	return p, nil
}

func (s *fakeStore) CommitPrestige(ctx context.Context, name string, level int, multiplier float64) (*model.PlayerProfile, error) {
	if s.failWrite != nil {
		return nil, s.failWrite
	}
	p, ok := s.profiles[strings.ToLower(name)]
	if !ok || p.PrestigeLevel >= level {
		return nil, repository.ErrProfileNotFound
	}
	p.PrestigeLevel = level
	p.GemMultiplier = multiplier
	return p, nil
}

func (s *fakeStore) TopProfiles(ctx context.Context, limit int) ([]*model.PlayerProfile, error) {
	if s.failLoad != nil {
		return nil, s.failLoad
	}
	all := make([]*model.PlayerProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Balance > all[j].Balance })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// grantCall records one Grant invocation.
type grantCall struct {
	player string
	amount float64
}

// fakeGranter records grants and optionally fails.
type fakeGranter struct {
	calls []grantCall
	err   error
}

func (g *fakeGranter) Grant(ctx context.Context, playerName string, amount float64) (*model.PlayerProfile, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.calls = append(g.calls, grantCall{player: strings.ToLower(playerName), amount: amount})
	return &model.PlayerProfile{Name: strings.ToLower(playerName), Balance: amount}, nil
}

// fakeOracle answers placeholder queries from a fixed map.
type fakeOracle struct {
	values map[string]string
}

func (o *fakeOracle) Resolve(ctx context.Context, playerName, key string) (string, error) {
	if o.values == nil {
		return "", platform.ErrUnavailable
	}
	v, ok := o.values[strings.ToLower(playerName)+"/"+key]
	if !ok {
		return "", platform.ErrUnavailable
	}
	return v, nil
}

// immediateScheduler runs deferred work synchronously but records that a
// deferral happened.
type immediateScheduler struct {
	deferred int
}

func (s *immediateScheduler) RunNextTick(fn func()) {
	s.deferred++
	fn()
}

var errBoom = errors.New("boom")
