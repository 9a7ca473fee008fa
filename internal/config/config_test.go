package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "questions", cfg.Index.BaseName)
	assert.Equal(t, "nats", cfg.Broker.Kind)
	assert.Equal(t, 8, cfg.Indexer.Workers)
	assert.Equal(t, 5, cfg.Indexer.MaxAttempts)
	assert.Equal(t, 500, cfg.Rebuild.PageSize)
	assert.Equal(t, 0, cfg.Rebuild.Keep)
	assert.Equal(t, 15*time.Second, cfg.Elastic.RequestTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingDir(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Overlay(t *testing.T) {
	dir := t.TempDir()
	base := []byte("http:\n  addr: \":9090\"\nindex:\n  base_name: posts\n")
	local := []byte("http:\n  addr: \":9191\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), base, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.yml"), local, 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	// local overrides config.yml, untouched fields keep defaults
	assert.Equal(t, ":9191", cfg.HTTP.Addr)
	assert.Equal(t, "posts", cfg.Index.BaseName)
	assert.Equal(t, "nats", cfg.Broker.Kind)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FORUMSEARCH_MONGO_URI", "mongodb://db:27017")
	t.Setenv("FORUMSEARCH_ELASTIC_URL", "http://es:9200")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "http://es:9200", cfg.Elastic.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base name", func(c *Config) { c.Index.BaseName = "" }},
		{"unknown broker", func(c *Config) { c.Broker.Kind = "kafka" }},
		{"zero workers", func(c *Config) { c.Indexer.Workers = 0 }},
		{"zero page size", func(c *Config) { c.Rebuild.PageSize = 0 }},
		{"negative keep", func(c *Config) { c.Rebuild.Keep = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
