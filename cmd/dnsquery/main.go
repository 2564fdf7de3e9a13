// Command dnsquery is a dig-style lookup tool over the wiredns
// resolver engine.
//
//	dnsquery -server 9.9.9.9 -type MX example.com
//	dnsquery -recursive -type A www.example.com
//	dnsquery -config wiredns.yaml mailhost
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ldevaal/wiredns/internal/config"
	"github.com/ldevaal/wiredns/internal/dns"
	"github.com/ldevaal/wiredns/internal/logging"
	"github.com/ldevaal/wiredns/internal/resolver"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML configuration file (or set WIREDNS_CONFIG)")
		server     = flag.String("server", "", "Nameserver to query (overrides config; HOST or HOST:PORT)")
		qtypeStr   = flag.String("type", "A", "Query type mnemonic (A, AAAA, MX, TXT, ..., or TYPEnnn)")
		qclassStr  = flag.String("class", "IN", "Query class (IN, CH, ANY)")
		recursive  = flag.Bool("recursive", false, "Resolve iteratively from the root servers instead of asking a recursive nameserver")
		noSearch   = flag.Bool("no-search", false, "Skip search-list expansion; query the name as given")
		timeout    = flag.Duration("timeout", 10*time.Second, "Overall lookup timeout")
		short      = flag.Bool("short", false, "Print answer rdata only")
		debug      = flag.Bool("debug", false, "Enable debug logging of each exchange")
		noColor    = flag.Bool("no-color", false, "Disable colored output")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: dnsquery [flags] NAME\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	name := flag.Arg(0)
	if *noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(config.ResolveConfigPath(*configPath))
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if *server != "" {
		cfg.Resolver.Nameservers = []string{*server}
	}
	if *debug {
		cfg.Resolver.Debug = true
		cfg.Logging.Level = "DEBUG"
	}
	logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})

	qtype, ok := dns.TypeFromMnemonic(strings.ToUpper(*qtypeStr))
	if !ok {
		fatal("unknown record type %q", *qtypeStr)
	}
	qclass, err := parseClass(*qclassStr)
	if err != nil {
		fatal("%v", err)
	}

	r, err := resolver.New(cfg.Resolver, nil)
	if err != nil {
		fatal("%v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var resp *dns.Message
	switch {
	case *recursive:
		resp, err = r.QueryRecursive(ctx, name, qtype)
	case *noSearch:
		resp, err = r.Query(ctx, name, qtype, qclass)
	default:
		resp, err = r.Search(ctx, name, qtype, qclass)
	}
	if err != nil {
		if detail := r.Errorstring(); detail != "" {
			fatal("%v (%s)", err, detail)
		}
		fatal("%v", err)
	}

	if *short {
		for _, rec := range resp.Answers {
			fmt.Println(rec.RDataString())
		}
		if len(resp.Answers) == 0 {
			os.Exit(1)
		}
		return
	}
	printResponse(resp, time.Since(start))
	if len(resp.Answers) == 0 {
		os.Exit(1)
	}
}

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	sectionColor = color.New(color.FgYellow)
	nameColor    = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
)

func printResponse(resp *dns.Message, elapsed time.Duration) {
	h := resp.Header
	headerColor.Printf(";; id=%d opcode=%d rcode=%d", h.ID, h.Opcode(), h.RCode())
	var flags []string
	if h.IsResponse() {
		flags = append(flags, "qr")
	}
	if h.Authoritative() {
		flags = append(flags, "aa")
	}
	if h.Truncated() {
		flags = append(flags, "tc")
	}
	if h.RecursionDesired() {
		flags = append(flags, "rd")
	}
	if h.RecursionAvailable() {
		flags = append(flags, "ra")
	}
	headerColor.Printf(" flags=[%s]\n", strings.Join(flags, " "))

	for _, q := range resp.Questions {
		dimColor.Printf(";; question: %s %s\n", q.Name.String(), dns.TypeMnemonic(q.Type))
	}
	printSection("ANSWER", resp.Answers)
	printSection("AUTHORITY", resp.Authorities)
	printSection("ADDITIONAL", resp.Additionals)
	dimColor.Printf(";; query time: %s\n", elapsed.Round(time.Millisecond))
}

func printSection(title string, recs []dns.Record) {
	if len(recs) == 0 {
		return
	}
	sectionColor.Printf(";; %s\n", title)
	sorted := append([]dns.Record(nil), recs...)
	dns.SortRecords(sorted)
	for _, rec := range sorted {
		if opt, ok := rec.(*dns.OPTRecord); ok {
			dimColor.Printf("; EDNS: udp=%d do=%t %s\n", opt.UDPSize(), opt.Do(), opt.RDataString())
			continue
		}
		rh := rec.Header()
		nameColor.Printf("%s", rh.Name.String())
		fmt.Printf("\t%d\tIN\t%s\t%s\n", rh.TTL, dns.TypeMnemonic(rec.Type()), rec.RDataString())
	}
}

func parseClass(s string) (dns.RecordClass, error) {
	switch strings.ToUpper(s) {
	case "IN":
		return dns.ClassIN, nil
	case "CH":
		return dns.ClassCH, nil
	case "ANY":
		return dns.ClassANY, nil
	}
	return 0, fmt.Errorf("unknown record class %q", s)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "dnsquery: "+format+"\n", args...)
	os.Exit(1)
}
