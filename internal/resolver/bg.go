package resolver

import (
	"context"
	"fmt"

	"github.com/ldevaal/wiredns/internal/dns"
)

// BgSend transmits msg as a single UDP datagram to the first configured
// nameserver and returns immediately with a handle. There are no
// retries and no TCP fallback on truncation: the caller inspects the
// decoded response's TC bit and re-queries explicitly if needed.
//
// The handle must be closed on every path; Close is also the way to
// cancel a query that will never be read.
func (r *Resolver) BgSend(ctx context.Context, msg *dns.Message) (Handle, error) {
	if len(r.cfg.Nameservers) == 0 {
		return nil, fmt.Errorf("%w: no nameservers configured", ErrNoResponse)
	}
	query, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	return r.transport.Send(ctx, r.serverAddr(r.cfg.Nameservers[0]), query)
}

// BgSendQuery is BgSend for a freshly built single-question query.
func (r *Resolver) BgSendQuery(ctx context.Context, name string, qtype dns.RecordType, qclass dns.RecordClass) (Handle, error) {
	msg, err := r.buildQuery(name, qtype, qclass)
	if err != nil {
		return nil, err
	}
	return r.BgSend(ctx, msg)
}

// BgIsReady reports without blocking whether BgRead would return now.
func (r *Resolver) BgIsReady(h Handle) bool { return h.Ready() }

// BgRead blocks until the handle's datagram arrives and decodes it.
// The handle is closed regardless of outcome.
func (r *Resolver) BgRead(h Handle) (*dns.Message, error) {
	defer h.Close()
	raw, err := h.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	return dns.ParseMessage(raw)
}
