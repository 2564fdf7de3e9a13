package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldevaal/wiredns/internal/dns"
	"github.com/ldevaal/wiredns/internal/resolver"
)

// exchangeCall records one transport exchange for order assertions.
type exchangeCall struct {
	network string
	addr    string
	qname   string
}

// mockTransport scripts the network. exchange receives the parsed
// query so scripts can branch on destination and question.
type mockTransport struct {
	exchange func(network, addr string, query *dns.Message) (*dns.Message, error)
	send     func(addr string, query *dns.Message) (resolver.Handle, error)
	stream   func(addr string, query *dns.Message) (resolver.MessageStream, error)
	calls    []exchangeCall
}

func (m *mockTransport) Exchange(_ context.Context, network, addr string, query []byte) ([]byte, error) {
	q, err := dns.ParseMessage(query)
	if err != nil {
		return nil, err
	}
	m.calls = append(m.calls, exchangeCall{network: network, addr: addr, qname: q.Questions[0].Name.String()})
	if m.exchange == nil {
		return nil, errors.New("no exchange scripted")
	}
	resp, err := m.exchange(network, addr, q)
	if err != nil {
		return nil, err
	}
	return resp.Marshal()
}

func (m *mockTransport) Send(_ context.Context, addr string, query []byte) (resolver.Handle, error) {
	q, err := dns.ParseMessage(query)
	if err != nil {
		return nil, err
	}
	if m.send == nil {
		return nil, errors.New("no send scripted")
	}
	return m.send(addr, q)
}

func (m *mockTransport) Stream(_ context.Context, addr string, query []byte) (resolver.MessageStream, error) {
	q, err := dns.ParseMessage(query)
	if err != nil {
		return nil, err
	}
	if m.stream == nil {
		return nil, errors.New("no stream scripted")
	}
	return m.stream(addr, q)
}

func (m *mockTransport) Close() error { return nil }

// reply builds a response skeleton matching the query's ID and question.
func reply(q *dns.Message) *dns.Message {
	resp := &dns.Message{Header: dns.Header{ID: q.Header.ID, Flags: dns.QRFlag}}
	resp.Questions = append(resp.Questions, q.Questions...)
	return resp
}

func answerA(q *dns.Message, addr string) *dns.Message {
	resp := reply(q)
	resp.Answers = append(resp.Answers, aRecord(q.Questions[0].Name.String(), addr))
	return resp
}

func header(name string) dns.RRHeader {
	return dns.NewRRHeader(dns.MustName(name), dns.ClassIN, 3600)
}

func aRecord(name, addr string) dns.Record {
	h := dns.NewRRHeader(dns.MustName(name), dns.ClassIN, 300)
	return dns.NewARecord(h, netip.MustParseAddr(addr))
}

func testConfig(nameservers ...string) resolver.Config {
	cfg := resolver.DefaultConfig()
	cfg.Nameservers = nameservers
	cfg.Retry = 1
	cfg.Retrans = time.Millisecond
	return cfg
}

func newTestResolver(t *testing.T, cfg resolver.Config, tr resolver.Transport) *resolver.Resolver {
	t.Helper()
	r, err := resolver.NewWithTransport(cfg, tr)
	require.NoError(t, err)
	return r
}

func TestSendStrictNameserverOrderWithRetries(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, addr string, q *dns.Message) (*dns.Message, error) {
			if addr == "192.0.2.1:53" {
				return nil, errors.New("connection refused")
			}
			return answerA(q, "192.0.2.99"), nil
		},
	}
	cfg := testConfig("192.0.2.1", "192.0.2.2")
	cfg.Retry = 2
	r := newTestResolver(t, cfg, tr)

	resp, err := r.SendQuery(context.Background(), "host.example.com", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Empty(t, r.Errorstring())

	// The failing server is retried before the next one is touched.
	var addrs []string
	for _, c := range tr.calls {
		addrs = append(addrs, c.addr)
	}
	assert.Equal(t, []string{"192.0.2.1:53", "192.0.2.1:53", "192.0.2.2:53"}, addrs)
}

func TestSendExhaustionYieldsErrNoResponse(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, _ *dns.Message) (*dns.Message, error) {
			return nil, errors.New("network unreachable")
		},
	}
	r := newTestResolver(t, testConfig("192.0.2.1"), tr)

	resp, err := r.SendQuery(context.Background(), "host.example.com", dns.TypeA, dns.ClassIN)
	require.ErrorIs(t, err, resolver.ErrNoResponse)
	assert.Nil(t, resp)
	assert.Contains(t, r.Errorstring(), "network unreachable")
}

func TestSendReturnsResponseWithZeroAnswers(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			resp := reply(q)
			resp.Header.Flags |= uint16(dns.RCodeNXDomain)
			return resp, nil
		},
	}
	r := newTestResolver(t, testConfig("192.0.2.1"), tr)

	resp, err := r.SendQuery(context.Background(), "missing.example.com", dns.TypeA, dns.ClassIN)
	require.NoError(t, err, "an empty answer is still a response")
	assert.Empty(t, resp.Answers)
	assert.Equal(t, dns.RCodeNXDomain, resp.Header.RCode())
}

func TestSendTruncationFallsBackToTCP(t *testing.T) {
	tr := &mockTransport{
		exchange: func(network, _ string, q *dns.Message) (*dns.Message, error) {
			if network == "udp" {
				resp := reply(q)
				resp.Header.Flags |= dns.TCFlag
				return resp, nil
			}
			return answerA(q, "192.0.2.99"), nil
		},
	}
	r := newTestResolver(t, testConfig("192.0.2.1"), tr)

	resp, err := r.SendQuery(context.Background(), "big.example.com", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.False(t, resp.Header.Truncated())

	require.Len(t, tr.calls, 2)
	assert.Equal(t, "udp", tr.calls[0].network)
	assert.Equal(t, "tcp", tr.calls[1].network)
}

func TestSendIgnTCAcceptsTruncatedResponse(t *testing.T) {
	tr := &mockTransport{
		exchange: func(network, _ string, q *dns.Message) (*dns.Message, error) {
			if network != "udp" {
				return nil, fmt.Errorf("unexpected network %s", network)
			}
			resp := reply(q)
			resp.Header.Flags |= dns.TCFlag
			return resp, nil
		},
	}
	cfg := testConfig("192.0.2.1")
	cfg.IgnTC = true
	r := newTestResolver(t, cfg, tr)

	resp, err := r.SendQuery(context.Background(), "big.example.com", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	assert.True(t, resp.Header.Truncated())
	require.Len(t, tr.calls, 1)
}

func TestSendUseVCGoesStraightToTCP(t *testing.T) {
	tr := &mockTransport{
		exchange: func(network, _ string, q *dns.Message) (*dns.Message, error) {
			if network != "tcp" {
				return nil, fmt.Errorf("unexpected network %s", network)
			}
			return answerA(q, "192.0.2.99"), nil
		},
	}
	cfg := testConfig("192.0.2.1")
	cfg.UseVC = true
	r := newTestResolver(t, cfg, tr)

	_, err := r.SendQuery(context.Background(), "host.example.com", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, "tcp", tr.calls[0].network)
}

func TestSendRejectsMismatchedTransactionID(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			resp := answerA(q, "192.0.2.99")
			resp.Header.ID++
			return resp, nil
		},
	}
	r := newTestResolver(t, testConfig("192.0.2.1"), tr)

	_, err := r.SendQuery(context.Background(), "host.example.com", dns.TypeA, dns.ClassIN)
	require.ErrorIs(t, err, resolver.ErrNoResponse)
	assert.Contains(t, r.Errorstring(), "does not match")
}

func TestQueryAppendsDefaultDomain(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			return answerA(q, "192.0.2.99"), nil
		},
	}
	cfg := testConfig("192.0.2.1")
	cfg.Domain = "example.com"
	r := newTestResolver(t, cfg, tr)

	_, err := r.Query(context.Background(), "host", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	assert.Equal(t, "host.example.com", tr.calls[0].qname)

	// A qualified name is left alone.
	_, err = r.Query(context.Background(), "host.other.net", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	assert.Equal(t, "host.other.net", tr.calls[1].qname)
}

func TestQueryTrailingDotMarksFullyQualified(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			return answerA(q, "192.0.2.99"), nil
		},
	}
	cfg := testConfig("192.0.2.1")
	cfg.Domain = "example.com"
	r := newTestResolver(t, cfg, tr)

	// "host." is already rooted; no default domain is appended.
	_, err := r.Query(context.Background(), "host.", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	assert.Equal(t, "host", tr.calls[0].qname)
}

func TestSendStillTruncatedAfterTCPYieldsErrTruncated(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			resp := reply(q)
			resp.Header.Flags |= dns.TCFlag
			return resp, nil
		},
	}
	r := newTestResolver(t, testConfig("192.0.2.1"), tr)

	resp, err := r.SendQuery(context.Background(), "big.example.com", dns.TypeA, dns.ClassIN)
	require.ErrorIs(t, err, resolver.ErrTruncated)
	require.NotNil(t, resp, "the truncated packet still travels with the error")
	assert.True(t, resp.Header.Truncated())

	require.Len(t, tr.calls, 2)
	assert.Equal(t, "udp", tr.calls[0].network)
	assert.Equal(t, "tcp", tr.calls[1].network)
}

func TestSearchSuffixOrderFirstAnswerWins(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			if q.Questions[0].Name.Equal(dns.MustName("mailhost.example.com")) {
				return answerA(q, "192.0.2.25"), nil
			}
			resp := reply(q)
			resp.Header.Flags |= uint16(dns.RCodeNXDomain)
			return resp, nil
		},
	}
	cfg := testConfig("192.0.2.1")
	cfg.SearchList = []string{"eng.example.com", "example.com"}
	r := newTestResolver(t, cfg, tr)

	resp, err := r.Search(context.Background(), "mailhost", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "192.0.2.25", resp.Answers[0].RDataString())

	var names []string
	for _, c := range tr.calls {
		names = append(names, c.qname)
	}
	assert.Equal(t, []string{"mailhost.eng.example.com", "mailhost.example.com"}, names)
}

func TestSearchEmbeddedDotTriesAsIsFirst(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			return answerA(q, "192.0.2.25"), nil
		},
	}
	cfg := testConfig("192.0.2.1")
	cfg.SearchList = []string{"example.com"}
	r := newTestResolver(t, cfg, tr)

	_, err := r.Search(context.Background(), "mail.host", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, "mail.host", tr.calls[0].qname)
}

func TestSearchWithoutSearchListTriesAsIs(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			return answerA(q, "192.0.2.25"), nil
		},
	}
	cfg := testConfig("192.0.2.1")
	cfg.DNSSearch = false
	r := newTestResolver(t, cfg, tr)

	_, err := r.Search(context.Background(), "mailhost", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, "mailhost", tr.calls[0].qname)
}

func TestSearchRewritesAddressShapedNames(t *testing.T) {
	var qtype dns.RecordType
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			qtype = q.Questions[0].Type
			resp := reply(q)
			return resp, nil
		},
	}
	r := newTestResolver(t, testConfig("192.0.2.1"), tr)

	_, err := r.Search(context.Background(), "192.0.2.7", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	assert.Equal(t, "7.2.0.192.in-addr.arpa", tr.calls[0].qname)
	assert.Equal(t, dns.TypePTR, qtype)

	_, err = r.Search(context.Background(), "2001:db8::1", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
	assert.Equal(t,
		"1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa",
		tr.calls[1].qname)
}

func TestDNSSECAttachesOPTWithDO(t *testing.T) {
	tr := &mockTransport{
		exchange: func(_, _ string, q *dns.Message) (*dns.Message, error) {
			opt := q.OPT()
			if opt == nil || !opt.Do() {
				return nil, errors.New("query missing DO bit")
			}
			return answerA(q, "192.0.2.99"), nil
		},
	}
	cfg := testConfig("192.0.2.1")
	cfg.DNSSEC = true
	r := newTestResolver(t, cfg, tr)

	_, err := r.SendQuery(context.Background(), "host.example.com", dns.TypeA, dns.ClassIN)
	require.NoError(t, err)
}
