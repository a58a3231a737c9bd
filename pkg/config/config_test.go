package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("reads yaml config", func(t *testing.T) {
		path := writeConfig(t, `
server:
  listenAddress: ":9090"
broker:
  host: redis.internal
  port: 6380
  db: 2
mail:
  apiKey: key-test
  domain: mail.tripplanner.example
runMode: production
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Server.ListenAddress)
		assert.Equal(t, "redis.internal", cfg.Broker.Host)
		assert.Equal(t, 6380, cfg.Broker.Port)
		assert.Equal(t, 2, cfg.Broker.DB)
		assert.Equal(t, "key-test", cfg.Mail.APIKey)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("env var overrides path", func(t *testing.T) {
		path := writeConfig(t, `runMode: staging`)
		t.Setenv("TRIPMAILER_CONFIG_PATH", path)
		cfg, err := Load("./does-not-exist.yaml")
		require.NoError(t, err)
		assert.Equal(t, "staging", cfg.RunMode)
	})
}

func TestDefaults(t *testing.T) {
	t.Run("fills broker and server defaults", func(t *testing.T) {
		var cfg Config
		cfg.Defaults()
		assert.Equal(t, ":8080", cfg.Server.ListenAddress)
		assert.Equal(t, "localhost", cfg.Broker.Host)
		assert.Equal(t, 6379, cfg.Broker.Port)
		assert.Equal(t, "tripmailer", cfg.Broker.Prefix)
		assert.Equal(t, 1, cfg.Worker.Concurrency)
		assert.Equal(t, "development", cfg.RunMode)
	})

	t.Run("from falls back to noreply at the sending domain", func(t *testing.T) {
		cfg := Config{Mail: Mail{Domain: "mail.tripplanner.example"}}
		cfg.Defaults()
		assert.Equal(t, "noreply@mail.tripplanner.example", cfg.Mail.From)
	})

	t.Run("api key env fallback", func(t *testing.T) {
		t.Setenv("TRIPMAILER_MAILGUN_API_KEY", "key-from-env")
		var cfg Config
		cfg.Defaults()
		assert.Equal(t, "key-from-env", cfg.Mail.APIKey)
	})
}

func TestValidate(t *testing.T) {
	t.Run("missing provider credentials are fatal", func(t *testing.T) {
		var cfg Config
		cfg.Defaults()
		require.Error(t, cfg.Validate())
	})

	t.Run("mailgun credentials pass", func(t *testing.T) {
		cfg := Config{Mail: Mail{APIKey: "key-test", Domain: "mail.tripplanner.example"}}
		cfg.Defaults()
		require.NoError(t, cfg.Validate())
	})

	t.Run("smtp host passes with explicit from", func(t *testing.T) {
		cfg := Config{Mail: Mail{Host: "smtp.internal", From: "noreply@tripplanner.example"}}
		cfg.Defaults()
		require.NoError(t, cfg.Validate())
	})

	t.Run("explicit provider must match credentials", func(t *testing.T) {
		cfg := Config{Mail: Mail{Provider: "mailgun", Host: "smtp.internal", From: "a@b.c"}}
		cfg.Defaults()
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		cfg := Config{Mail: Mail{Provider: "carrier-pigeon", From: "a@b.c"}}
		cfg.Defaults()
		require.Error(t, cfg.Validate())
	})
}
