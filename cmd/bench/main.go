// Command bench floods a nameserver with identical queries through the
// resolver engine and reports latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ldevaal/wiredns/internal/dns"
	"github.com/ldevaal/wiredns/internal/resolver"
)

func main() {
	var (
		server      = flag.String("server", "127.0.0.1:1053", "DNS server HOST:PORT")
		name        = flag.String("name", "example.com", "Query name")
		qtypeStr    = flag.String("type", "A", "Query type mnemonic")
		concurrency = flag.Int("concurrency", 200, "Number of concurrent workers")
		requests    = flag.Int("requests", 20000, "Total number of requests")
		timeout     = flag.Duration("timeout", 2*time.Second, "Per-request timeout")
		useTCP      = flag.Bool("tcp", false, "Query over TCP")
	)
	flag.Parse()

	qtype, ok := dns.TypeFromMnemonic(strings.ToUpper(*qtypeStr))
	if !ok {
		fmt.Fprintf(os.Stderr, "bench: unknown record type %q\n", *qtypeStr)
		os.Exit(2)
	}

	conc := max(*concurrency, 1)
	total := max(*requests, 1)
	per := total / conc
	rem := total % conc

	cfg := resolver.DefaultConfig()
	cfg.Nameservers = []string{*server}
	cfg.Retry = 1
	cfg.UDPTimeout = *timeout
	cfg.TCPTimeout = *timeout
	cfg.UseVC = *useTCP
	cfg.PersistentUDP = true
	cfg.StayOpen = true

	lat := make([]float64, 0, total)
	var latMu sync.Mutex

	t0 := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < conc; i++ {
		n := per
		if i < rem {
			n++
		}
		if n <= 0 {
			continue
		}
		wg.Add(1)
		// The resolver is not safe for concurrent use; one per worker.
		go func(num int) {
			defer wg.Done()
			r, err := resolver.New(cfg, nil)
			if err != nil {
				return
			}
			defer r.Close()
			for j := 0; j < num; j++ {
				start := time.Now()
				ctx, cancel := context.WithTimeout(context.Background(), *timeout)
				_, err := r.SendQuery(ctx, *name, qtype, dns.ClassIN)
				cancel()
				if err != nil {
					continue
				}
				ms := float64(time.Since(start).Microseconds()) / 1000.0
				latMu.Lock()
				lat = append(lat, ms)
				latMu.Unlock()
			}
		}(n)
	}
	wg.Wait()
	elapsed := time.Since(t0).Seconds()

	if len(lat) == 0 {
		fmt.Printf("no successful requests\n")
		return
	}
	sort.Float64s(lat)
	p50 := percentile(lat, 50)
	p95 := percentile(lat, 95)
	p99 := percentile(lat, 99)
	qps := float64(len(lat)) / elapsed

	fmt.Printf("server=%s name=%q type=%s concurrency=%d requests=%d\n", *server, *name, dns.TypeMnemonic(qtype), conc, len(lat))
	fmt.Printf("elapsed_s=%.3f qps=%.1f\n", elapsed, qps)
	fmt.Printf("latency_ms p50=%.3f p95=%.3f p99=%.3f min=%.3f max=%.3f\n", p50, p95, p99, lat[0], lat[len(lat)-1])
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(float64(len(sorted))*float64(p)/100.0) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
