package resolver

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultPort       = 53
	DefaultRetry      = 4
	DefaultRetrans    = 5 * time.Second
	DefaultUDPTimeout = 5 * time.Second
	DefaultTCPTimeout = 120 * time.Second
)

// Config holds the resolver's tunables. It is built once from
// configuration sources, normalized by Validate, and read-mostly
// afterwards.
//
// Nameservers are tried strictly in order. The search list drives
// Search's suffix expansion; when empty it is derived from Domain by
// devolution (dropping leading labels while at least two remain).
type Config struct {
	Nameservers []string `yaml:"nameservers"`
	SearchList  []string `yaml:"searchlist"`
	Domain      string   `yaml:"domain"`

	Port    int    `yaml:"port"`
	SrcAddr string `yaml:"srcaddr"`
	SrcPort int    `yaml:"srcport"`

	Retry      int           `yaml:"retry"`
	Retrans    time.Duration `yaml:"retrans"`
	UDPTimeout time.Duration `yaml:"udp_timeout"`
	TCPTimeout time.Duration `yaml:"tcp_timeout"`

	Recurse       bool `yaml:"recurse"`        // request recursion (RD flag)
	Debug         bool `yaml:"debug"`          // verbose logging of each exchange
	UseVC         bool `yaml:"usevc"`          // force TCP ("virtual circuit")
	IgnTC         bool `yaml:"igntc"`          // accept truncated UDP responses as-is
	DefNames      bool `yaml:"defnames"`       // append default domain to unqualified names
	DNSSearch     bool `yaml:"dnsrch"`         // apply the search list in Search
	DNSSEC        bool `yaml:"dnssec"`         // attach EDNS with the DO bit
	StayOpen      bool `yaml:"stayopen"`       // keep TCP connections open across queries
	PersistentUDP bool `yaml:"persistent_udp"` // reuse one UDP socket across queries
}

// DefaultConfig returns a config with the standard stub-resolver
// behavior: recursion requested, default domain appension and search
// enabled, four tries per nameserver.
func DefaultConfig() Config {
	return Config{
		Port:       DefaultPort,
		Retry:      DefaultRetry,
		Retrans:    DefaultRetrans,
		UDPTimeout: DefaultUDPTimeout,
		TCPTimeout: DefaultTCPTimeout,
		Recurse:    true,
		DefNames:   true,
		DNSSearch:  true,
	}
}

// Validate normalizes the config in place: deduplicates the nameserver
// and search lists preserving first occurrence, derives the search list
// from the default domain when absent, and clamps numeric fields to
// sane defaults.
func (c *Config) Validate() error {
	c.Nameservers = dedupe(c.Nameservers)
	c.Domain = strings.TrimSuffix(strings.TrimSpace(c.Domain), ".")
	if len(c.SearchList) == 0 && c.Domain != "" {
		c.SearchList = devolve(c.Domain)
	}
	c.SearchList = dedupe(c.SearchList)

	if c.Port <= 0 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	if c.SrcPort < 0 || c.SrcPort > 65535 {
		return fmt.Errorf("invalid source port %d", c.SrcPort)
	}
	if c.Retry <= 0 {
		c.Retry = DefaultRetry
	}
	if c.Retrans <= 0 {
		c.Retrans = DefaultRetrans
	}
	if c.UDPTimeout <= 0 {
		c.UDPTimeout = DefaultUDPTimeout
	}
	if c.TCPTimeout <= 0 {
		c.TCPTimeout = DefaultTCPTimeout
	}
	return nil
}

// ApplyOptionString ingests a space-separated "option:value" list, the
// RES_OPTIONS convention. Unknown options are ignored so environments
// aimed at other resolvers do not break this one.
func (c *Config) ApplyOptionString(opts string) error {
	for _, field := range strings.Fields(opts) {
		name, value, _ := strings.Cut(field, ":")
		if err := c.applyOption(strings.ToLower(name), value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyOption(name, value string) error {
	boolTargets := map[string]*bool{
		"recurse":        &c.Recurse,
		"debug":          &c.Debug,
		"usevc":          &c.UseVC,
		"igntc":          &c.IgnTC,
		"defnames":       &c.DefNames,
		"dnsrch":         &c.DNSSearch,
		"dnssec":         &c.DNSSEC,
		"stayopen":       &c.StayOpen,
		"persistent_tcp": &c.StayOpen,
		"persistent_udp": &c.PersistentUDP,
	}
	if target, ok := boolTargets[name]; ok {
		b, err := parseBoolOption(name, value)
		if err != nil {
			return err
		}
		*target = b
		return nil
	}

	secondsTargets := map[string]*time.Duration{
		"retrans":     &c.Retrans,
		"udp_timeout": &c.UDPTimeout,
		"tcp_timeout": &c.TCPTimeout,
	}
	if target, ok := secondsTargets[name]; ok {
		n, err := parseIntOption(name, value)
		if err != nil {
			return err
		}
		*target = time.Duration(n) * time.Second
		return nil
	}

	switch name {
	case "retry":
		n, err := parseIntOption(name, value)
		if err != nil {
			return err
		}
		c.Retry = n
	case "port":
		n, err := parseIntOption(name, value)
		if err != nil {
			return err
		}
		c.Port = n
	case "srcaddr":
		c.SrcAddr = value
	case "srcport":
		n, err := parseIntOption(name, value)
		if err != nil {
			return err
		}
		c.SrcPort = n
	}
	return nil
}

func parseBoolOption(name, value string) (bool, error) {
	if value == "" {
		return true, nil
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q for option %q", value, name)
}

func parseIntOption(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid value %q for option %q", value, name)
	}
	return n, nil
}

// FromEnv overlays environment-style overrides fetched through getenv
// (injected so tests never touch the process environment):
// WIREDNS_NAMESERVERS and WIREDNS_SEARCHLIST are whitespace- or
// comma-separated lists, WIREDNS_DOMAIN a single name, WIREDNS_OPTIONS
// an "option:value" list as for ApplyOptionString.
func (c *Config) FromEnv(getenv func(string) string) error {
	if v := getenv("WIREDNS_NAMESERVERS"); v != "" {
		c.Nameservers = splitList(v)
	}
	if v := getenv("WIREDNS_SEARCHLIST"); v != "" {
		c.SearchList = splitList(v)
	}
	if v := getenv("WIREDNS_DOMAIN"); v != "" {
		c.Domain = v
	}
	if v := getenv("WIREDNS_OPTIONS"); v != "" {
		if err := c.ApplyOptionString(v); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// devolve expands "eng.example.com" to ["eng.example.com",
// "example.com"], stopping while at least two labels remain.
func devolve(domain string) []string {
	labels := strings.Split(domain, ".")
	var out []string
	for len(labels) >= 2 {
		out = append(out, strings.Join(labels, "."))
		labels = labels[1:]
	}
	if len(out) == 0 {
		out = []string{domain}
	}
	return out
}
