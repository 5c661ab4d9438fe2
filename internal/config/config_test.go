package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/newswire")
	t.Setenv("PROVIDER_BASE_URL", "https://provider.example.com/v1")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 240*time.Hour, cfg.IngestCooldown)
	assert.Equal(t, time.Second, cfg.CategoryDelay)
	assert.Equal(t, 5, cfg.RedirectMaxHops)
	assert.Equal(t, 3, cfg.ProviderRetryCount)
	assert.Equal(t, "en-US", cfg.ProviderLangRegion)
	assert.Equal(t, "stdout", cfg.LogOutput())
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INGEST_COOLDOWN", "0s")
	t.Setenv("CATEGORY_DELAY", "250ms")
	t.Setenv("REDIRECT_MAX_HOPS", "3")
	t.Setenv("LOG_FILE", "/var/log/newswire.log")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.IngestCooldown)
	assert.Equal(t, 250*time.Millisecond, cfg.CategoryDelay)
	assert.Equal(t, 3, cfg.RedirectMaxHops)
	assert.Equal(t, "/var/log/newswire.log", cfg.LogOutput())
}

func TestLoad_InvalidValueFallsBackToDefault(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CATEGORY_DELAY", "soon")
	t.Setenv("DB_MAX_CONNS", "many")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.CategoryDelay)
	assert.Equal(t, 10, cfg.DBMaxConns)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PROVIDER_BASE_URL", "https://provider.example.com")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL:     "postgres://localhost/newswire",
			ProviderBaseURL: "https://provider.example.com",
			RedirectMaxHops: 5,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing provider", func(c *Config) { c.ProviderBaseURL = "" }, ErrMissingProviderURL},
		{"negative cooldown", func(c *Config) { c.IngestCooldown = -time.Hour }, ErrInvalidCooldown},
		{"negative delay", func(c *Config) { c.CategoryDelay = -time.Second }, ErrInvalidDelay},
		{"zero hops", func(c *Config) { c.RedirectMaxHops = 0 }, ErrInvalidMaxHops},
		{"negative retries", func(c *Config) { c.ProviderRetryCount = -1 }, ErrInvalidRetryCount},
		{"partial r2", func(c *Config) { c.R2Endpoint = "https://r2.example.com" }, ErrIncompleteR2},
		{"full r2", func(c *Config) {
			c.R2Endpoint = "https://r2.example.com"
			c.R2AccessKey = "key"
			c.R2SecretKey = "secret"
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInMemory(t *testing.T) {
	assert.True(t, (&Config{DatabaseURL: "memory"}).InMemory())
	assert.False(t, (&Config{DatabaseURL: "postgres://localhost/newswire"}).InMemory())
}
