package resolver

import (
	"context"
	"fmt"

	"github.com/ldevaal/wiredns/internal/dns"
)

// AXFRRecords performs a zone transfer (RFC 5936) and returns the
// zone's records in transfer order. The stream is bounded by the second
// occurrence of the zone's SOA; that terminating SOA is excluded from
// the result while the leading one is kept. Any connection or protocol
// failure yields an empty result and an error, never a partial zone.
func (r *Resolver) AXFRRecords(ctx context.Context, zone string) ([]dns.Record, error) {
	var records []dns.Record
	err := r.axfr(ctx, zone, func(rec dns.Record) {
		records = append(records, rec)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AXFRIterator performs a zone transfer and exposes it as a restartable
// pull iterator. The transfer completes before the iterator is
// returned, so a failed transfer yields a nil iterator rather than one
// that stops early.
func (r *Resolver) AXFRIterator(ctx context.Context, zone string) (*AXFRIter, error) {
	records, err := r.AXFRRecords(ctx, zone)
	if err != nil {
		return nil, err
	}
	return &AXFRIter{records: records}, nil
}

// AXFRIter yields one transferred record per Next call.
type AXFRIter struct {
	records []dns.Record
	pos     int
}

// Next returns the next record; ok is false once the zone is exhausted.
func (it *AXFRIter) Next() (rec dns.Record, ok bool) {
	if it.pos >= len(it.records) {
		return nil, false
	}
	rec = it.records[it.pos]
	it.pos++
	return rec, true
}

// Reset rewinds the iterator to the first record.
func (it *AXFRIter) Reset() { it.pos = 0 }

// axfr runs the transfer against each nameserver in order until one
// completes, emitting every record except the terminating SOA.
func (r *Resolver) axfr(ctx context.Context, zone string, emit func(dns.Record)) error {
	msg, err := r.buildQuery(zone, dns.TypeAXFR, dns.ClassIN)
	if err != nil {
		return err
	}
	msg.Header.SetRD(false)
	query, err := msg.Marshal()
	if err != nil {
		return err
	}
	if len(r.cfg.Nameservers) == 0 {
		return fmt.Errorf("%w: no nameservers configured", ErrNoResponse)
	}

	var lastErr error
	for _, ns := range r.cfg.Nameservers {
		err := r.axfrFrom(ctx, r.serverAddr(ns), msg.Header.ID, query, emit)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (r *Resolver) axfrFrom(ctx context.Context, addr string, id uint16, query []byte, emit func(dns.Record)) error {
	stream, err := r.transport.Stream(ctx, addr, query)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoResponse, addr, err)
	}
	defer stream.Close()

	soaSeen := 0
	for {
		raw, err := stream.Next()
		if err != nil {
			return fmt.Errorf("%w: %s: transfer ended before terminating SOA: %v", ErrNoResponse, addr, err)
		}
		resp, err := dns.ParseMessage(raw)
		if err != nil {
			return err
		}
		if resp.Header.ID != id {
			return fmt.Errorf("%w: %s: response id mismatch", ErrNoResponse, addr)
		}
		if rcode := resp.Header.RCode(); rcode != dns.RCodeNoError {
			return fmt.Errorf("%w: %s: transfer refused with rcode %d", ErrNoResponse, addr, rcode)
		}
		if soaSeen == 0 && (len(resp.Answers) == 0 || resp.Answers[0].Type() != dns.TypeSOA) {
			return fmt.Errorf("%w: %s: transfer does not start with SOA", ErrNoResponse, addr)
		}

		for _, rec := range resp.Answers {
			if rec.Type() == dns.TypeSOA {
				soaSeen++
				if soaSeen == 2 {
					return nil
				}
			}
			emit(rec)
		}
	}
}
