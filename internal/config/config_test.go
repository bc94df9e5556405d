package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "localhost:3000", cfg.Server.Address())
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:4173"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 600, cfg.Server.RateLimit)
	assert.Equal(t, "./templates", cfg.Templates.Dir)
	assert.Equal(t, 300*time.Millisecond, cfg.Templates.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Render.Timeout)
	assert.Equal(t, 1024, cfg.Render.MaxCallStackSize)
	assert.Equal(t, "/js/report.js", cfg.Render.ScriptSrc)
	assert.False(t, cfg.Scanner.FailOpen)
	assert.Equal(t, 5, cfg.Scanner.ReportLimit)
	assert.Equal(t, 60*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromYAML(t *testing.T) {
	v := newViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
server:
  port: 8443
  allowed_origins: ["https://reports.example.com"]
render:
  base_url: https://api.example.com
  timeout: 2s
scanner:
  fail_open: true
templates:
  dir: /srv/templates
`)))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, []string{"https://reports.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://api.example.com", cfg.Render.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Render.Timeout)
	assert.True(t, cfg.Scanner.FailOpen)
	assert.Equal(t, "/srv/templates", cfg.Templates.Dir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REPORTSMITH_SERVER_PORT", "9090")
	t.Setenv("REPORTSMITH_DATA_API_KEY", "secret")
	t.Setenv("REPORTSMITH_SERVER_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	v := newViper()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Data.APIKey)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		want  string
	}{
		{"port range", "server.port", 70000, "port 70000"},
		{"host injection", "server.host", "localhost;rm", "dangerous character"},
		{"templates traversal", "templates.dir", "../../etc", "templates config"},
		{"base url scheme", "render.base_url", "ftp://x", "base_url"},
		{"generation endpoint", "generation.endpoint", "not a url", "endpoint"},
		{"data url", "data.api_url", "file:///etc/passwd", "api_url"},
		{"log format", "log.format", "xml", "unknown format"},
		{"negative rate limit", "server.rate_limit", -1, "negative rate_limit"},
		{"negative timeout", "render.timeout", "-1s", "negative timeout"},
		{"bad port type", "server.port", "invalid_port", "decoding configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := LoadFrom(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadUsesGlobalViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults(viper.GetViper())
	viper.Set("server.port", 4000)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
}
