package dh_arm

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"dh_arm/kinematics"
)

func countingBuild(calls *int64) BuildFunc {
	return func() (*kinematics.Model, error) {
		atomic.AddInt64(calls, 1)
		return kinematics.Puma560()
	}
}

func TestRegistryCreation(t *testing.T) {
	registry := NewModelRegistry()
	require.NotNil(t, registry)
	assert.NotNil(t, registry.entries)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistrySharesModel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	registry := NewModelRegistry()
	var calls int64

	first, err := registry.GetModel("preset:puma560", countingBuild(&calls), logger)
	require.NoError(t, err)
	second, err := registry.GetModel("preset:puma560", countingBuild(&calls), logger)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	refs, loaded, lastErr := registry.Status("preset:puma560")
	assert.Equal(t, int64(2), refs)
	assert.True(t, loaded)
	assert.NoError(t, lastErr)

	registry.ReleaseModel("preset:puma560")
	refs, loaded, _ = registry.Status("preset:puma560")
	assert.Equal(t, int64(1), refs)
	assert.True(t, loaded)

	registry.ReleaseModel("preset:puma560")
	assert.Equal(t, 0, registry.Len())
	refs, loaded, _ = registry.Status("preset:puma560")
	assert.Equal(t, int64(0), refs)
	assert.False(t, loaded)

	// released entirely, so the next user builds again
	_, err = registry.GetModel("preset:puma560", countingBuild(&calls), logger)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestRegistryBuildFailure(t *testing.T) {
	logger := logging.NewTestLogger(t)
	registry := NewModelRegistry()
	boom := errors.New("boom")

	_, err := registry.GetModel("file:/missing.json", func() (*kinematics.Model, error) {
		return nil, boom
	}, logger)
	assert.ErrorIs(t, err, boom)

	refs, loaded, lastErr := registry.Status("file:/missing.json")
	assert.Equal(t, int64(0), refs)
	assert.False(t, loaded)
	assert.ErrorIs(t, lastErr, boom)

	// a failed build is retried
	var calls int64
	m, err := registry.GetModel("file:/missing.json", countingBuild(&calls), logger)
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, int64(1), calls)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	logger := logging.NewTestLogger(t)
	registry := NewModelRegistry()
	var calls int64

	const numGoroutines = 16
	keys := []string{"a", "b"}
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := registry.GetModel(key, countingBuild(&calls), logger)
			assert.NoError(t, err)
		}(keys[i%len(keys)])
	}
	wg.Wait()

	assert.Equal(t, int64(len(keys)), atomic.LoadInt64(&calls))
	for _, key := range keys {
		refs, loaded, _ := registry.Status(key)
		assert.Equal(t, int64(numGoroutines/len(keys)), refs)
		assert.True(t, loaded)
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			registry.ReleaseModel(key)
		}(keys[i%len(keys)])
	}
	wg.Wait()
	assert.Equal(t, 0, registry.Len())
}

func TestReleaseUnknownKey(t *testing.T) {
	registry := NewModelRegistry()
	registry.ReleaseModel("nothing")
	assert.Equal(t, 0, registry.Len())
}

func TestSharedModelKeys(t *testing.T) {
	logger := logging.NewTestLogger(t)
	a := &PlannerConfig{Preset: kinematics.PresetPuma560}
	b := &PlannerConfig{Preset: kinematics.PresetPuma560}
	c := &PlannerConfig{Preset: kinematics.PresetPuma560, Tool: &kinematics.FrameDefinition{Translation: [3]float64{0, 0, 0.1}}}

	ma, err := GetSharedModel(a, logger)
	require.NoError(t, err)
	defer ReleaseSharedModel(a)
	mb, err := GetSharedModel(b, logger)
	require.NoError(t, err)
	defer ReleaseSharedModel(b)
	mc, err := GetSharedModel(c, logger)
	require.NoError(t, err)
	defer ReleaseSharedModel(c)

	assert.Same(t, ma, mb)
	assert.NotSame(t, ma, mc)
	assert.InDelta(t, 0.1, mc.Tool().Point().Z, 1e-12)
}
