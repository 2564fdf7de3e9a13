package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/ldevaal/wiredns/internal/dns"
)

// Resolver sends queries to the configured nameservers and decodes the
// responses. It is not safe for concurrent use.
type Resolver struct {
	cfg       Config
	transport Transport
	logger    *slog.Logger

	// errorstring records why the last Send produced no response, so a
	// caller can distinguish "no answer records" from "nobody answered".
	errorstring string

	hints    []string
	callback func(*dns.Message)
}

// New creates a resolver over the real network. The config is validated
// and normalized; dialer may be nil for the default net.Dialer.
func New(cfg Config, dialer proxy.ContextDialer) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{
		cfg:       cfg,
		transport: newNetTransport(cfg, dialer),
		logger:    slog.Default(),
	}, nil
}

// NewWithTransport creates a resolver over a caller-supplied transport.
// Used by tests and by callers embedding their own byte mover.
func NewWithTransport(cfg Config, t Transport) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg, transport: t, logger: slog.Default()}, nil
}

// Config returns a copy of the normalized configuration.
func (r *Resolver) Config() Config { return r.cfg }

// Errorstring returns the status detail behind the most recent
// ErrNoResponse, or "" after a successful exchange.
func (r *Resolver) Errorstring() string { return r.errorstring }

// Close releases the transport's persistent connections.
func (r *Resolver) Close() error { return r.transport.Close() }

// Query resolves name. An unqualified name (no embedded dot) gets the
// default domain appended when the defnames option is set; a trailing
// dot marks the name fully qualified and suppresses the appension.
// Delegates to Send.
func (r *Resolver) Query(ctx context.Context, name string, qtype dns.RecordType, qclass dns.RecordClass) (*dns.Message, error) {
	if trimmed := strings.TrimSuffix(name, "."); r.cfg.DefNames && r.cfg.Domain != "" &&
		!strings.HasSuffix(name, ".") && !strings.Contains(trimmed, ".") {
		name = trimmed + "." + r.cfg.Domain
	}
	return r.SendQuery(ctx, name, qtype, qclass)
}

// Search resolves name with search-list expansion. A name with an
// embedded dot is tried as-is first; otherwise each search suffix is
// tried in order (when the dnsrch option is set), and the first
// response carrying at least one answer wins. A dotless name with an
// empty search list is tried as-is. IP-address-shaped names are
// rewritten to their reverse-lookup form.
func (r *Resolver) Search(ctx context.Context, name string, qtype dns.RecordType, qclass dns.RecordClass) (*dns.Message, error) {
	if reverse, ok := reverseName(name); ok {
		name, qtype = reverse, dns.TypePTR
	}

	var candidates []string
	trimmed := strings.TrimSuffix(name, ".")
	switch {
	case strings.HasSuffix(name, "."):
		candidates = []string{name}
	case strings.Contains(trimmed, "."):
		candidates = append([]string{name}, r.suffixed(trimmed)...)
	case r.cfg.DNSSearch && len(r.cfg.SearchList) > 0:
		candidates = r.suffixed(trimmed)
	default:
		candidates = []string{name}
	}

	var last *dns.Message
	var lastErr error
	for _, candidate := range candidates {
		resp, err := r.SendQuery(ctx, candidate, qtype, qclass)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Answers) > 0 {
			return resp, nil
		}
		last = resp
	}
	if last != nil {
		return last, nil
	}
	return nil, lastErr
}

func (r *Resolver) suffixed(name string) []string {
	out := make([]string, 0, len(r.cfg.SearchList))
	for _, suffix := range r.cfg.SearchList {
		out = append(out, name+"."+suffix)
	}
	return out
}

// SendQuery builds a single-question message and hands it to Send.
func (r *Resolver) SendQuery(ctx context.Context, name string, qtype dns.RecordType, qclass dns.RecordClass) (*dns.Message, error) {
	msg, err := r.buildQuery(name, qtype, qclass)
	if err != nil {
		return nil, err
	}
	return r.Send(ctx, msg)
}

func (r *Resolver) buildQuery(name string, qtype dns.RecordType, qclass dns.RecordClass) (*dns.Message, error) {
	n, err := dns.NewName(name)
	if err != nil {
		return nil, err
	}
	msg := dns.NewQuery(n, qtype, qclass)
	msg.Header.SetRD(r.cfg.Recurse)
	if r.cfg.DNSSEC {
		opt := dns.NewOPTRecord()
		opt.SetDo(true)
		msg.Additionals = append(msg.Additionals, opt)
	}
	return msg, nil
}

// Send transmits msg to each configured nameserver in strict order,
// retrying each up to Retry times with the Retrans interval between
// rounds. UDP responses with the TC bit set are retried over TCP unless
// the igntc option accepts them as-is. A response still truncated after
// that retry is returned alongside ErrTruncated. The response is
// returned even when it carries zero answers; only full exhaustion
// yields ErrNoResponse, with the detail available from Errorstring.
func (r *Resolver) Send(ctx context.Context, msg *dns.Message) (*dns.Message, error) {
	if len(r.cfg.Nameservers) == 0 {
		r.errorstring = "no nameservers configured"
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, r.errorstring)
	}
	query, err := msg.Marshal()
	if err != nil {
		return nil, err
	}

	servers := make([]string, len(r.cfg.Nameservers))
	for i, ns := range r.cfg.Nameservers {
		servers[i] = r.serverAddr(ns)
	}
	return r.sendTo(ctx, msg, query, servers)
}

// sendTo runs the retry loop against an explicit server list; Send and
// the recursive engine share it.
func (r *Resolver) sendTo(ctx context.Context, msg *dns.Message, query []byte, servers []string) (*dns.Message, error) {
	r.errorstring = ""
	network := "udp"
	if r.cfg.UseVC {
		network = "tcp"
	}

	var lastStatus string
	for _, addr := range servers {
		for attempt := 0; attempt < r.cfg.Retry; attempt++ {
			if attempt > 0 {
				if err := sleepCtx(ctx, r.cfg.Retrans); err != nil {
					r.errorstring = lastStatus
					return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
				}
			}
			resp, status := r.exchangeOnce(ctx, network, addr, msg, query)
			if resp != nil {
				if resp.Header.Truncated() && !r.cfg.IgnTC {
					// The TCP fallback already ran; a response still
					// truncated here has no larger rendition to fetch.
					return resp, fmt.Errorf("%w: %s", ErrTruncated, addr)
				}
				return resp, nil
			}
			lastStatus = status
			if ctx.Err() != nil {
				r.errorstring = lastStatus
				return nil, fmt.Errorf("%w: %v", ErrNoResponse, ctx.Err())
			}
		}
	}
	if lastStatus == "" {
		lastStatus = "query timed out"
	}
	r.errorstring = lastStatus
	return nil, fmt.Errorf("%w: %s", ErrNoResponse, lastStatus)
}

// exchangeOnce performs one attempt against one server, including the
// TCP fallback on truncation. Returns (nil, status) on failure.
func (r *Resolver) exchangeOnce(ctx context.Context, network, addr string, msg *dns.Message, query []byte) (*dns.Message, string) {
	if r.cfg.Debug {
		r.logger.Debug("sending query", "server", addr, "network", network, "id", msg.Header.ID)
	}
	raw, err := r.transport.Exchange(ctx, network, addr, query)
	if err != nil {
		return nil, fmt.Sprintf("%s: %v", addr, err)
	}
	resp, err := dns.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Sprintf("%s: bad response: %v", addr, err)
	}
	if resp.Header.ID != msg.Header.ID {
		return nil, fmt.Sprintf("%s: response id %d does not match query id %d", addr, resp.Header.ID, msg.Header.ID)
	}

	if resp.Header.Truncated() && network == "udp" && !r.cfg.IgnTC {
		if r.cfg.Debug {
			r.logger.Debug("response truncated, retrying over tcp", "server", addr)
		}
		raw, err = r.transport.Exchange(ctx, "tcp", addr, query)
		if err != nil {
			return nil, fmt.Sprintf("%s: tcp retry: %v", addr, err)
		}
		resp, err = dns.ParseMessage(raw)
		if err != nil {
			return nil, fmt.Sprintf("%s: bad tcp response: %v", addr, err)
		}
		if resp.Header.ID != msg.Header.ID {
			return nil, fmt.Sprintf("%s: tcp response id mismatch", addr)
		}
	}
	return resp, ""
}

func (r *Resolver) serverAddr(ns string) string {
	if _, _, err := net.SplitHostPort(ns); err == nil {
		return ns
	}
	return net.JoinHostPort(ns, fmt.Sprint(r.cfg.Port))
}

// reverseName rewrites an IP-address-shaped name to its PTR lookup
// form: in-addr.arpa for IPv4, nibble-reversed ip6.arpa for IPv6.
func reverseName(name string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSuffix(name, "."))
	if err != nil {
		return "", false
	}
	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa", b[3], b[2], b[1], b[0]), true
	}
	b := addr.As16()
	var sb strings.Builder
	for i := len(b) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%x.%x.", b[i]&0x0F, b[i]>>4)
	}
	return sb.String() + "ip6.arpa", true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
