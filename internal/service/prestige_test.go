package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gems-mediator/internal/pkg/lock"
	"gems-mediator/internal/platform"
)

func newTrackerFixture(store *fakeStore, oracle *fakeOracle) (*PrestigeTracker, *fakeGranter, *immediateScheduler) {
	granter := &fakeGranter{}
	sched := &immediateScheduler{}
	tracker := NewPrestigeTracker(
		store,
		granter,
		oracle,
		NewMultiplierResolver("lifestealz"),
		sched,
		lock.NewPlayerLock(),
		0,
		PrestigeConfig{
			GemRewardBase:      50,
			MultiplierPerLevel: 0.05,
			PlaceholderKey:     "lifestealz_prestige_count",
			CommandKeyword:     "prestige",
		},
	)
	return tracker, granter, sched
}

func TestPrestigeTracker_AdvanceCommitsRewardAndMultiplier(t *testing.T) {
	store := newFakeStore()
	_, _, err := store.GetOrCreate(context.Background(), "steve", 0)
	require.NoError(t, err)
	store.profiles["steve"].PrestigeLevel = 2
	store.profiles["steve"].GemMultiplier = 1.10

	oracle := &fakeOracle{values: map[string]string{"steve/lifestealz_prestige_count": "3"}}
	tracker, granter, _ := newTrackerFixture(store, oracle)

	steve := &fakePlayer{name: "Steve"}
	tracker.Advance(context.Background(), steve)

	require.Len(t, granter.calls, 1)
	assert.Equal(t, 150.0, granter.calls[0].amount, "reward scales with the new level")

	profile := store.profiles["steve"]
	assert.Equal(t, 3, profile.PrestigeLevel)
	assert.InDelta(t, 1.15, profile.GemMultiplier, 1e-9)

	require.Len(t, steve.messages, 1)
	assert.Equal(t, "Prestige 3! +150 gems + x1.15 multiplier!", steve.messages[0])
}

func TestPrestigeTracker_SameOrLowerLevelIsNoOp(t *testing.T) {
	for _, observed := range []string{"3", "2", "0"} {
		store := newFakeStore()
		_, _, err := store.GetOrCreate(context.Background(), "steve", 0)
		require.NoError(t, err)
		store.profiles["steve"].PrestigeLevel = 3
		store.profiles["steve"].GemMultiplier = 1.15
		store.profiles["steve"].Balance = 500

		oracle := &fakeOracle{values: map[string]string{"steve/lifestealz_prestige_count": observed}}
		tracker, granter, _ := newTrackerFixture(store, oracle)

		tracker.Advance(context.Background(), &fakePlayer{name: "Steve"})

		profile := store.profiles["steve"]
		assert.Empty(t, granter.calls, "observed %s must not grant", observed)
		assert.Equal(t, 3, profile.PrestigeLevel)
		assert.Equal(t, 1.15, profile.GemMultiplier)
		assert.Equal(t, 500.0, profile.Balance)
	}
}

func TestPrestigeTracker_RepeatedTriggerGrantsOnce(t *testing.T) {
	store := newFakeStore()
	oracle := &fakeOracle{values: map[string]string{"steve/lifestealz_prestige_count": "1"}}
	tracker, granter, _ := newTrackerFixture(store, oracle)

	steve := &fakePlayer{name: "Steve"}
	for i := 0; i < 5; i++ {
		tracker.Advance(context.Background(), steve)
	}

	assert.Len(t, granter.calls, 1, "replayed triggers must not double-credit")
	assert.Equal(t, 1, store.profiles["steve"].PrestigeLevel)
}

func TestPrestigeTracker_OracleFailuresAreSilent(t *testing.T) {
	tests := []struct {
		name   string
		oracle *fakeOracle
	}{
		{"oracle unavailable", &fakeOracle{}},
		{"unparsable level", &fakeOracle{values: map[string]string{"steve/lifestealz_prestige_count": "soon"}}},
		{"negative level", &fakeOracle{values: map[string]string{"steve/lifestealz_prestige_count": "-1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			tracker, granter, _ := newTrackerFixture(store, tt.oracle)

			tracker.Advance(context.Background(), &fakePlayer{name: "Steve"})

			assert.Empty(t, granter.calls)
			// The transition aborted before any profile was touched.
			assert.Empty(t, store.profiles)
		})
	}
}

func TestPrestigeTracker_GrantFailureAbortsCommit(t *testing.T) {
	store := newFakeStore()
	oracle := &fakeOracle{values: map[string]string{"steve/lifestealz_prestige_count": "2"}}
	tracker, granter, _ := newTrackerFixture(store, oracle)
	granter.err = errBoom

	tracker.Advance(context.Background(), &fakePlayer{name: "Steve"})

	profile := store.profiles["steve"]
	require.NotNil(t, profile)
	assert.Equal(t, 0, profile.PrestigeLevel, "failed grant must leave the level uncommitted")
	assert.Equal(t, 1.0, profile.GemMultiplier)

	// Retried trigger succeeds once the gateway recovers.
	granter.err = nil
	tracker.Advance(context.Background(), &fakePlayer{name: "Steve"})
	assert.Equal(t, 2, store.profiles["steve"].PrestigeLevel)
}

func TestPrestigeTracker_TriggerDefersOneTick(t *testing.T) {
	store := newFakeStore()
	oracle := &fakeOracle{values: map[string]string{"steve/lifestealz_prestige_count": "1"}}
	tracker, granter, sched := newTrackerFixture(store, oracle)

	bus := platform.NewEventBus()
	tracker.Register(bus)

	steve := &fakePlayer{name: "Steve"}
	bus.PublishPlayerCommand(&platform.PlayerCommandEvent{Player: steve, Text: "/prestige confirm"})

	assert.Equal(t, 1, sched.deferred, "re-query must be deferred to the next tick")
	assert.Len(t, granter.calls, 1)
}

func TestPrestigeTracker_UnrelatedCommandIgnored(t *testing.T) {
	store := newFakeStore()
	oracle := &fakeOracle{values: map[string]string{"steve/lifestealz_prestige_count": "1"}}
	tracker, granter, sched := newTrackerFixture(store, oracle)

	bus := platform.NewEventBus()
	tracker.Register(bus)

	bus.PublishPlayerCommand(&platform.PlayerCommandEvent{Player: &fakePlayer{name: "Steve"}, Text: "/home set"})

	assert.Zero(t, sched.deferred)
	assert.Empty(t, granter.calls)
}

// TestPrestigeTracker_MonotonicityProperty drives random observed-level
// sequences and checks the committed level never decreases and each
// committed level is rewarded at most once.
func TestPrestigeTracker_MonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newFakeStore()
		oracle := &fakeOracle{values: map[string]string{}}
		tracker, granter, _ := newTrackerFixture(store, oracle)
		steve := &fakePlayer{name: "Steve"}

		last := 0
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			observed := rapid.IntRange(0, 10).Draw(t, "observed")
			oracle.values["steve/lifestealz_prestige_count"] = strconv.Itoa(observed)

			tracker.Advance(context.Background(), steve)

			profile := store.profiles["steve"]
			if profile.PrestigeLevel < last {
				t.Fatalf("prestige level decreased: %d -> %d", last, profile.PrestigeLevel)
			}
			last = profile.PrestigeLevel
		}

		if len(granter.calls) > last {
			t.Fatalf("%d grants for %d committed levels", len(granter.calls), last)
		}
	})
}
