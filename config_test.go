package skizo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "", cfg.GetString("source"))
	assert.True(t, cfg.GetBool("nullcheck"))
	assert.True(t, cfg.GetBool("inline"))
	assert.False(t, cfg.GetBool("gcstats"))
	assert.Equal(t, 16*1024*1024, cfg.GetInt("maxgcmemory"))
}

func TestConfigSetOverridesDefault(t *testing.T) {
	cfg := NewConfig()
	cfg.SetBool("gcstats", true)
	assert.True(t, cfg.GetBool("gcstats"))

	cfg.SetInt("maxgcmemory", 4096)
	assert.Equal(t, 4096, cfg.GetInt("maxgcmemory"))

	cfg.SetString("permissions", "fs:read")
	assert.Equal(t, "fs:read", cfg.GetString("permissions"))
}

func TestConfigGetUnknownKeyPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetBool("nonexistent") })
}

func TestConfigGetWrongTypePanics(t *testing.T) {
	cfg := NewConfig()
	cfg.SetString("source", "main.sk")
	assert.Panics(t, func() { cfg.GetBool("source") })
}
