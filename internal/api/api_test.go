package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldevaal/wiredns/internal/api"
	"github.com/ldevaal/wiredns/internal/api/models"
	"github.com/ldevaal/wiredns/internal/config"
	"github.com/ldevaal/wiredns/internal/dns"
	"github.com/ldevaal/wiredns/internal/resolver"
)

// stubTransport answers A queries from a fixed table; everything else
// gets NXDOMAIN.
type stubTransport struct {
	addrs map[string]string
}

func (s *stubTransport) Exchange(_ context.Context, _, _ string, query []byte) ([]byte, error) {
	q, err := dns.ParseMessage(query)
	if err != nil {
		return nil, err
	}
	resp := &dns.Message{Header: dns.Header{ID: q.Header.ID, Flags: dns.QRFlag}}
	resp.Questions = q.Questions
	qname := q.Questions[0].Name
	if addr, ok := s.addrs[qname.String()]; ok {
		h := dns.NewRRHeader(qname, dns.ClassIN, 60)
		resp.Answers = append(resp.Answers, dns.NewARecord(h, netip.MustParseAddr(addr)))
	} else {
		resp.Header.Flags |= uint16(dns.RCodeNXDomain)
	}
	return resp.Marshal()
}

func (s *stubTransport) Send(context.Context, string, []byte) (resolver.Handle, error) {
	return nil, errors.New("not supported")
}

func (s *stubTransport) Stream(context.Context, string, []byte) (resolver.MessageStream, error) {
	return nil, errors.New("not supported")
}

func (s *stubTransport) Close() error { return nil }

func newTestServer(t *testing.T, mutate func(*config.Config)) *api.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Resolver.Nameservers = []string{"192.0.2.1"}
	cfg.Resolver.Retry = 1
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	s := api.New(&cfg, slog.Default())
	s.Handler().SetResolverFactory(func() (*resolver.Resolver, error) {
		return resolver.NewWithTransport(cfg.Resolver, &stubTransport{
			addrs: map[string]string{"host.example.com": "192.0.2.80"},
		})
	})
	return s
}

func doRequest(s *api.Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	w := doRequest(s, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	w := doRequest(s, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ServerStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Positive(t, resp.GoRoutines)
	assert.Positive(t, resp.NumCPU)
}

func TestResolveEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	w := doRequest(s, http.MethodGet, "/api/v1/resolve?name=host.example.com&type=a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ResolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "host.example.com", resp.Name)
	assert.Equal(t, "A", resp.Type)
	assert.Zero(t, resp.RCode)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "192.0.2.80", resp.Answers[0].Data)
	assert.Equal(t, uint32(60), resp.Answers[0].TTL)
}

func TestResolveEndpointNXDomain(t *testing.T) {
	s := newTestServer(t, nil)
	w := doRequest(s, http.MethodGet, "/api/v1/resolve?name=missing.example.com", nil)
	require.Equal(t, http.StatusOK, w.Code, "a negative answer is still a response")

	var resp models.ResolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int(dns.RCodeNXDomain), resp.RCode)
	assert.Empty(t, resp.Answers)
}

func TestResolveEndpointValidation(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing-name", target: "/api/v1/resolve"},
		{name: "bad-type", target: "/api/v1/resolve?name=x&type=NOPE"},
		{name: "bad-class", target: "/api/v1/resolve?name=x&class=XX"},
		{name: "bad-mode", target: "/api/v1/resolve?name=x&mode=sideways"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, http.MethodGet, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAPIKeyProtection(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.API.APIKey = "secret"
	})

	w := doRequest(s, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/health", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/health", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)
}
