package resolver_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldevaal/wiredns/internal/resolver"
)

func TestDefaultConfig(t *testing.T) {
	cfg := resolver.DefaultConfig()
	assert.Equal(t, resolver.DefaultPort, cfg.Port)
	assert.Equal(t, resolver.DefaultRetry, cfg.Retry)
	assert.Equal(t, resolver.DefaultRetrans, cfg.Retrans)
	assert.True(t, cfg.Recurse)
	assert.True(t, cfg.DefNames)
	assert.True(t, cfg.DNSSearch)
	assert.False(t, cfg.UseVC)
}

func TestValidateDeduplicatesPreservingOrder(t *testing.T) {
	cfg := resolver.DefaultConfig()
	cfg.Nameservers = []string{"192.0.2.1", "192.0.2.2", "192.0.2.1", " ", "192.0.2.2"}
	cfg.SearchList = []string{"Example.COM", "example.com", "sub.example.com"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2"}, cfg.Nameservers)
	assert.Equal(t, []string{"Example.COM", "sub.example.com"}, cfg.SearchList)
}

func TestValidateDevolvesDomainIntoSearchList(t *testing.T) {
	cfg := resolver.DefaultConfig()
	cfg.Domain = "eng.example.com."
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "eng.example.com", cfg.Domain)
	assert.Equal(t, []string{"eng.example.com", "example.com"}, cfg.SearchList)

	// An explicit search list is not overwritten.
	cfg = resolver.DefaultConfig()
	cfg.Domain = "eng.example.com"
	cfg.SearchList = []string{"other.net"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"other.net"}, cfg.SearchList)
}

func TestValidateClampsNumericFields(t *testing.T) {
	cfg := resolver.Config{Port: -1, Retry: 0, Retrans: -time.Second}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, resolver.DefaultPort, cfg.Port)
	assert.Equal(t, resolver.DefaultRetry, cfg.Retry)
	assert.Equal(t, resolver.DefaultRetrans, cfg.Retrans)
	assert.Equal(t, resolver.DefaultUDPTimeout, cfg.UDPTimeout)
	assert.Equal(t, resolver.DefaultTCPTimeout, cfg.TCPTimeout)
}

func TestValidateRejectsBadSourcePort(t *testing.T) {
	cfg := resolver.DefaultConfig()
	cfg.SrcPort = 70000
	require.Error(t, cfg.Validate())
}

func TestApplyOptionString(t *testing.T) {
	cfg := resolver.DefaultConfig()
	err := cfg.ApplyOptionString("debug usevc:1 recurse:no retry:2 retrans:1 port:5353 igntc:on")
	require.NoError(t, err)

	assert.True(t, cfg.Debug, "bare option name means true")
	assert.True(t, cfg.UseVC)
	assert.False(t, cfg.Recurse)
	assert.True(t, cfg.IgnTC)
	assert.Equal(t, 2, cfg.Retry)
	assert.Equal(t, time.Second, cfg.Retrans)
	assert.Equal(t, 5353, cfg.Port)
}

func TestApplyOptionStringAliasAndUnknown(t *testing.T) {
	cfg := resolver.DefaultConfig()
	require.NoError(t, cfg.ApplyOptionString("persistent_tcp:1 ndots:3 no-tld-query"))
	assert.True(t, cfg.StayOpen, "persistent_tcp is an alias for stayopen")

	require.Error(t, cfg.ApplyOptionString("retry:many"))
	require.Error(t, cfg.ApplyOptionString("debug:maybe"))
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"WIREDNS_NAMESERVERS": "192.0.2.1, 192.0.2.2\t192.0.2.3",
		"WIREDNS_SEARCHLIST":  "eng.example.com example.com",
		"WIREDNS_DOMAIN":      "example.com",
		"WIREDNS_OPTIONS":     "usevc retry:1",
	}
	cfg := resolver.DefaultConfig()
	require.NoError(t, cfg.FromEnv(func(k string) string { return env[k] }))

	assert.Equal(t, []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"}, cfg.Nameservers)
	assert.Equal(t, []string{"eng.example.com", "example.com"}, cfg.SearchList)
	assert.Equal(t, "example.com", cfg.Domain)
	assert.True(t, cfg.UseVC)
	assert.Equal(t, 1, cfg.Retry)

	// Unset variables leave the config untouched.
	before := cfg
	require.NoError(t, cfg.FromEnv(func(string) string { return "" }))
	assert.Equal(t, before, cfg)
}
