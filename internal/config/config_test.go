package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldevaal/wiredns/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wiredns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.StructuredFormat)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 53, cfg.Resolver.Port)
	assert.True(t, cfg.Resolver.Recurse)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
resolver:
  nameservers: ["192.0.2.1", "192.0.2.2"]
  domain: example.com
  retry: 2
  retrans: 1s
  usevc: true
logging:
  level: debug
  structured: true
api:
  host: 0.0.0.0
  port: 9090
  api_key: hunter2
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, cfg.Resolver.Nameservers)
	assert.Equal(t, "example.com", cfg.Resolver.Domain)
	assert.Equal(t, 2, cfg.Resolver.Retry)
	assert.Equal(t, time.Second, cfg.Resolver.Retrans)
	assert.True(t, cfg.Resolver.UseVC)
	assert.Equal(t, []string{"example.com"}, cfg.Resolver.SearchList, "search list devolved from domain")

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is upper-cased")
	assert.True(t, cfg.Logging.Structured)
	assert.Equal(t, "0.0.0.0", cfg.API.Host)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "hunter2", cfg.API.APIKey)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("WIREDNS_NAMESERVERS", "198.51.100.7")
	t.Setenv("WIREDNS_OPTIONS", "retry:1 igntc")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"198.51.100.7"}, cfg.Resolver.Nameservers)
	assert.Equal(t, 1, cfg.Resolver.Retry)
	assert.True(t, cfg.Resolver.IgnTC)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "resolver: [not a mapping")
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidateRejectsBadAPIPort(t *testing.T) {
	cfg := config.Default()
	cfg.API.Port = 0
	require.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.API.Port = 70000
	require.Error(t, cfg.Validate())
}

func TestResolveConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/wiredns.yaml", config.ResolveConfigPath("/etc/wiredns.yaml"))

	t.Setenv("WIREDNS_CONFIG", "/from/env.yaml")
	assert.Equal(t, "/from/env.yaml", config.ResolveConfigPath(""))
	assert.Equal(t, "/explicit.yaml", config.ResolveConfigPath("/explicit.yaml"), "flag wins over env")

	t.Setenv("WIREDNS_CONFIG", "")
	assert.Empty(t, config.ResolveConfigPath(""))
}
