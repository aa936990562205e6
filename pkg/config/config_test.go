package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative sample", mutate: func(c *Config) { c.Parse.SampleLines = -1 }, wantErr: "sample_lines"},
		{name: "negative mmap threshold", mutate: func(c *Config) { c.Parse.MmapThreshold = -1 }, wantErr: "mmap_threshold"},
		{name: "long delimiter", mutate: func(c *Config) { c.Parse.Delimiter = "::" }, wantErr: "single character"},
		{name: "bad pad", mutate: func(c *Config) { c.Save.PadToken = "-" }, wantErr: "pad_token"},
		{name: "zero depth", mutate: func(c *Config) { c.Script.MaxDepth = 0 }, wantErr: "max_depth"},
		{name: "empty rename", mutate: func(c *Config) { c.Legacy.ColumnRenames[""] = "x" }, wantErr: "column_renames"},
		{name: "sample rate", mutate: func(c *Config) { c.Observability.TracingSampleRate = 2 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := Default()
	cfg.Script.Globals["gain"] = 2.5
	cfg.Legacy.ColumnRenames["V"] = "voltage"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, loaded.Script.Globals["gain"])
	assert.Equal(t, "voltage", loaded.Legacy.ColumnRenames["V"])
	assert.Equal(t, "\t", loaded.Save.SaveDelimiter())
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("script:\n  max_depth: -3\n"), 0o600))
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("DATABOX_TEST_PAD", "_")
	assert.Equal(t, "pad: _", substituteEnvVars("pad: ${DATABOX_TEST_PAD}"))
	assert.Equal(t, "pad: ", substituteEnvVars("pad: ${DATABOX_TEST_UNSET_VAR}"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}
