package main

import (
	"testing"

	"github.com/skyrts/backend/internal/config"
	"github.com/skyrts/backend/internal/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.World.TickRateHz = 20
	cfg.Backend.Seed = 77
	cfg.Backend.ReplayMode = true

	opts := backendOptions(cfg, system.StyleDiscrete)
	assert.Equal(t, 1000.0, opts.Bounds.W)
	assert.InDelta(t, 0.05, opts.DeltaT, 1e-12)
	assert.Equal(t, uint64(77), opts.Seed)
	assert.True(t, opts.ReplayMode)
	assert.Equal(t, system.StyleDiscrete, opts.Style)
	assert.Equal(t, system.DefaultTriggerRules(), opts.Rules)
}

func TestNewLogger(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "debug", Format: "json"},
		{Level: "warn", Format: "console"},
		{Level: "nonsense", Format: "console"},
	} {
		log, err := newLogger(cfg)
		require.NoError(t, err)
		assert.NotNil(t, log)
	}
}
