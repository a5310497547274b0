package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	gd := cfg.GetGameData()
	assert.Equal(t, DefaultGamePort, gd.Port)
	assert.Equal(t, 999, gd.MaxSlots)
	assert.Equal(t, 600, gd.RoundLengthSec)

	// The default file is written out for the operator to edit
	_, err = os.Stat(filepath.Join(dir, DefaultConfigFile))
	assert.NoError(t, err)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	partial := `{"game_data": {"svr_port": 7000}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(partial), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	gd := cfg.GetGameData()
	assert.Equal(t, 7000, gd.Port)
	// Unspecified fields keep their defaults
	assert.Equal(t, 999, gd.MaxSlots)
	assert.Equal(t, "config/users.db", gd.AccountsFile)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	gd := cfg.GetGameData()
	gd.RoundLengthSec = 300
	cfg.SetGameData(gd)
	require.NoError(t, cfg.Save())

	data, err := os.ReadFile(cfg.Path())
	require.NoError(t, err)

	var onDisk map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &onDisk))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 300, reloaded.GetGameData().RoundLengthSec)
}
