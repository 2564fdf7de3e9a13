// Command print-zone transfers a zone over AXFR and prints its records
// in presentation form.
//
//	print-zone -server ns1.example.com example.com
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ldevaal/wiredns/internal/dns"
	"github.com/ldevaal/wiredns/internal/resolver"
)

func main() {
	var (
		server  = flag.String("server", "", "Nameserver to transfer from (HOST or HOST:PORT)")
		timeout = flag.Duration("timeout", 60*time.Second, "Transfer timeout")
		sorted  = flag.Bool("sort", false, "Sort records by name and type instead of transfer order")
	)
	flag.Parse()
	if flag.NArg() != 1 || *server == "" {
		fmt.Fprintf(os.Stderr, "Usage: print-zone -server HOST ZONE\n")
		os.Exit(2)
	}
	zone := flag.Arg(0)

	cfg := resolver.DefaultConfig()
	cfg.Nameservers = []string{*server}
	r, err := resolver.New(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "print-zone: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	it, err := r.AXFRIterator(ctx, zone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "print-zone: transfer failed: %v\n", err)
		os.Exit(1)
	}

	var recs []dns.Record
	for rec, ok := it.Next(); ok; rec, ok = it.Next() {
		recs = append(recs, rec)
	}
	if *sorted {
		sort.SliceStable(recs, func(i, j int) bool {
			a, b := recs[i], recs[j]
			if c := a.Header().Name.Compare(b.Header().Name); c != 0 {
				return c < 0
			}
			return a.Type() < b.Type()
		})
	}

	if soa, ok := first(recs).(*dns.SOARecord); ok {
		fmt.Printf("; zone %s serial %d (%d records)\n", zone, soa.Serial, len(recs))
	}
	for _, rec := range recs {
		fmt.Println(dns.RecordString(rec))
	}
}

func first(recs []dns.Record) dns.Record {
	if len(recs) == 0 {
		return nil
	}
	return recs[0]
}
