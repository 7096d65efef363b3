package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "0.0.0.0:9003", cfg.Listen)
	assert.Equal(t, 8, cfg.MaxDepth)
}

func TestValidateRejectsBadListenAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen = "not-an-address"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsZeroMaxDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 0
	assert.Error(t, Validate(cfg))
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/dbgpfront.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)
}
