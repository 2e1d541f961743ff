package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission/internal/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry("default", func(tier models.Tier) (Limiter, error) {
		return NewWindowedLimiter(tier.MaxPerMinute, tier.MaxPerHour, 0)
	})
	require.NoError(t, reg.SetTier(models.Tier{Name: "default", MaxPerMinute: 5, MaxPerHour: 50}))
	t.Cleanup(reg.Close)
	return reg
}

func TestRegistry_ResolveDefault(t *testing.T) {
	reg := newTestRegistry(t)

	tier, l, err := reg.Resolve("anyone")
	require.NoError(t, err)
	assert.Equal(t, "default", tier)
	assert.NotNil(t, l)
}

func TestRegistry_OverrideRouting(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.SetTier(models.Tier{Name: "premium", MaxPerMinute: 100, MaxPerHour: 5000}))
	require.NoError(t, reg.SetOverride("alice", "premium"))

	tier, l, err := reg.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, "premium", tier)

	allowed, info, err := l.Allow("alice", time.Now())
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 100, info.MinuteLimit)

	// Everyone else stays on the default tier.
	tier, _, err = reg.Resolve("bob")
	require.NoError(t, err)
	assert.Equal(t, "default", tier)
}

func TestRegistry_OverrideToUnknownTier(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Error(t, reg.SetOverride("alice", "missing"))
}

func TestRegistry_RemoveTierFallsBackToDefault(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.SetTier(models.Tier{Name: "premium", MaxPerMinute: 100, MaxPerHour: 5000}))
	require.NoError(t, reg.SetOverride("alice", "premium"))
	require.NoError(t, reg.RemoveTier("premium"))

	tier, _, err := reg.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, "default", tier, "stale overrides fall back to the default tier")
}

func TestRegistry_CannotRemoveDefaultTier(t *testing.T) {
	reg := newTestRegistry(t)
	assert.Error(t, reg.RemoveTier("default"))
}

func TestRegistry_ReplaceTierResetsState(t *testing.T) {
	reg := newTestRegistry(t)

	_, l, err := reg.Resolve("alice")
	require.NoError(t, err)
	_, _, err = l.Allow("alice", time.Now())
	require.NoError(t, err)

	require.NoError(t, reg.SetTier(models.Tier{Name: "default", MaxPerMinute: 1, MaxPerHour: 10}))

	_, l, err = reg.Resolve("alice")
	require.NoError(t, err)
	_, ok := l.Window("alice")
	assert.False(t, ok, "replacing a tier discards accumulated windows")
}

func TestRegistry_RemoveOverride(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.SetTier(models.Tier{Name: "premium", MaxPerMinute: 100, MaxPerHour: 5000}))
	require.NoError(t, reg.SetOverride("alice", "premium"))

	reg.RemoveOverride("alice")

	tier, _, err := reg.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, "default", tier)
}

func TestRegistry_Tiers(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.SetTier(models.Tier{Name: "premium", MaxPerMinute: 100, MaxPerHour: 5000}))

	assert.ElementsMatch(t, []string{"default", "premium"}, reg.Tiers())
}
