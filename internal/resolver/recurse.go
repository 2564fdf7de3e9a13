package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/ldevaal/wiredns/internal/dns"
)

// maxReferralDepth bounds the delegation chain; past it the resolution
// is treated as a loop.
const maxReferralDepth = 16

// SetCallback installs a function invoked with every response received
// during QueryRecursive, one call per exchange, before the response is
// acted on. Passing nil removes it.
func (r *Resolver) SetCallback(fn func(*dns.Message)) { r.callback = fn }

// QueryRecursive resolves name iteratively: it starts at the hint
// servers (IANA roots unless SetHints replaced them) and follows NS
// referrals downward until a server answers authoritatively. CNAME
// chains in answers are chased. A revisited delegation or an exceeded
// depth bound aborts with ErrReferralLoop and no packet.
func (r *Resolver) QueryRecursive(ctx context.Context, name string, qtype dns.RecordType) (*dns.Message, error) {
	visited := map[string]struct{}{}
	return r.recurse(ctx, name, qtype, r.Hints(), visited, 0)
}

func (r *Resolver) recurse(ctx context.Context, name string, qtype dns.RecordType, servers []string, visited map[string]struct{}, depth int) (*dns.Message, error) {
	if depth >= maxReferralDepth {
		return nil, fmt.Errorf("%w: depth bound %d exceeded resolving %q", ErrReferralLoop, maxReferralDepth, name)
	}
	qname, err := dns.NewName(name)
	if err != nil {
		return nil, err
	}

	for {
		resp, err := r.askServers(ctx, qname, qtype, servers)
		if err != nil {
			return nil, err
		}
		if r.callback != nil {
			r.callback(resp)
		}

		if len(resp.Answers) > 0 {
			if target, onlyCNAME := cnameContinuation(resp, qname, qtype); onlyCNAME {
				if r.cfg.Debug {
					r.logger.Debug("following cname", "from", qname.String(), "to", target.String())
				}
				return r.recurse(ctx, target.String(), qtype, r.Hints(), visited, depth+1)
			}
			return resp, nil
		}

		zone, nsNames := referral(resp)
		if len(nsNames) == 0 {
			// Authoritative negative or dead end; hand it to the caller.
			return resp, nil
		}
		key := referralKey(zone, nsNames)
		if _, seen := visited[key]; seen {
			return nil, fmt.Errorf("%w: delegation %q revisited", ErrReferralLoop, zone.String())
		}
		visited[key] = struct{}{}

		// Every referral is a hop against the depth bound; a server
		// naming a fresh delegation on each exchange must not keep the
		// walk alive indefinitely.
		depth++
		if depth >= maxReferralDepth {
			return nil, fmt.Errorf("%w: depth bound %d exceeded resolving %q", ErrReferralLoop, maxReferralDepth, name)
		}
		if r.cfg.Debug {
			r.logger.Debug("following referral", "zone", zone.String(), "nameservers", len(nsNames))
		}

		servers, err = r.delegationServers(ctx, resp, nsNames, visited, depth)
		if err != nil {
			return nil, err
		}
	}
}

// askServers tries each delegation server in order with a fresh query;
// a single attempt per server keeps referral walking snappy.
func (r *Resolver) askServers(ctx context.Context, qname dns.Name, qtype dns.RecordType, servers []string) (*dns.Message, error) {
	msg := dns.NewQuery(qname, qtype, dns.ClassIN)
	msg.Header.SetRD(false)
	if r.cfg.DNSSEC {
		opt := dns.NewOPTRecord()
		opt.SetDo(true)
		msg.Additionals = append(msg.Additionals, opt)
	}
	query, err := msg.Marshal()
	if err != nil {
		return nil, err
	}

	var lastStatus string
	for _, server := range servers {
		addr := r.serverAddr(server)
		resp, status := r.exchangeOnce(ctx, "udp", addr, msg, query)
		if resp != nil {
			return resp, nil
		}
		lastStatus = status
		if ctx.Err() != nil {
			break
		}
	}
	r.errorstring = lastStatus
	return nil, fmt.Errorf("%w: %s", ErrNoResponse, lastStatus)
}

// cnameContinuation reports whether the answers carry only a CNAME
// chain for qname without a record of the wanted type, returning the
// final target to chase.
func cnameContinuation(resp *dns.Message, qname dns.Name, qtype dns.RecordType) (dns.Name, bool) {
	if qtype == dns.TypeCNAME || qtype == dns.TypeANY {
		return dns.Name{}, false
	}
	target := qname
	chased := false
	// A chain cannot be longer than the answer section, so a CNAME
	// cycle inside one response ends the walk instead of spinning it.
	for i := 0; i < len(resp.Answers); i++ {
		advanced := false
		for _, rec := range resp.Answers {
			if rec.Type() == qtype && rec.Header().Name.Equal(target) {
				return dns.Name{}, false
			}
			if cname, ok := rec.(*dns.NameRecord); ok && rec.Type() == dns.TypeCNAME && rec.Header().Name.Equal(target) {
				target = cname.Target
				chased = true
				advanced = true
			}
		}
		if !advanced {
			break
		}
	}
	return target, chased
}

// referral extracts the delegated zone and its nameserver names from
// the authority section.
func referral(resp *dns.Message) (dns.Name, []dns.Name) {
	var zone dns.Name
	var names []dns.Name
	for _, rec := range resp.Authorities {
		ns, ok := rec.(*dns.NameRecord)
		if !ok || rec.Type() != dns.TypeNS {
			continue
		}
		zone = rec.Header().Name
		names = append(names, ns.Target)
	}
	return zone, names
}

func referralKey(zone dns.Name, nsNames []dns.Name) string {
	parts := make([]string, 0, len(nsNames)+1)
	parts = append(parts, zone.Canonical())
	for _, n := range nsNames {
		parts = append(parts, n.Canonical())
	}
	return strings.Join(parts, "|")
}

// delegationServers turns NS names into addresses: glue records from
// the additional section first, then a bounded recursive lookup for
// glueless nameservers.
func (r *Resolver) delegationServers(ctx context.Context, resp *dns.Message, nsNames []dns.Name, visited map[string]struct{}, depth int) ([]string, error) {
	var servers []string
	for _, rec := range resp.Additionals {
		ip, ok := rec.(*dns.IPRecord)
		if !ok || (rec.Type() != dns.TypeA && rec.Type() != dns.TypeAAAA) {
			continue
		}
		for _, nsName := range nsNames {
			if rec.Header().Name.Equal(nsName) {
				servers = append(servers, ip.Addr.String())
				break
			}
		}
	}
	if len(servers) > 0 {
		return servers, nil
	}

	// Glueless delegation: resolve the nameserver names themselves.
	for _, nsName := range nsNames {
		addrResp, err := r.recurse(ctx, nsName.String(), dns.TypeA, r.Hints(), visited, depth+1)
		if err != nil {
			continue
		}
		for _, rec := range addrResp.Answers {
			if ip, ok := rec.(*dns.IPRecord); ok && rec.Type() == dns.TypeA {
				servers = append(servers, ip.Addr.String())
			}
		}
		if len(servers) > 0 {
			return servers, nil
		}
	}
	return nil, fmt.Errorf("%w: no reachable nameserver addresses for delegation", ErrNoResponse)
}
