package dns

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// EDNS option codes (IANA DNS EDNS0 Option Codes registry).
const (
	OptCodeNSID         uint16 = 3
	OptCodeDAU          uint16 = 5
	OptCodeDHU          uint16 = 6
	OptCodeN3U          uint16 = 7
	OptCodeClientSubnet uint16 = 8
	OptCodeExpire       uint16 = 9
	OptCodeCookie       uint16 = 10
	OptCodeKeepalive    uint16 = 11
	OptCodePadding      uint16 = 12
)

// OptionValue is a structured interpretation of an option's opaque
// bytes. The three shapes render recursively:
//
//   - Scalar: decimal when the bytes spell a bounded non-negative
//     integer, quoted string when printable, hex with an 0x prefix
//     otherwise.
//   - List: elements comma-separated, no trailing separator.
//   - Mapping: key=value pairs in interpreter registration order,
//     comma-separated, no trailing separator.
//
// The rendering is invertible: parsing the text back through the same
// interpreter reproduces the original wire bytes exactly. The 0x prefix
// on hex exists to keep that true when raw bytes happen to look like a
// decimal string.
type OptionValue interface {
	String() string
}

// Scalar is an option value carried as a single byte string.
type Scalar []byte

// String renders per the scalar rules described on OptionValue.
func (s Scalar) String() string {
	if isBoundedDecimal(string(s)) {
		return string(s)
	}
	if isPrintable(s) {
		return strconv.Quote(string(s))
	}
	return "0x" + hex.EncodeToString(s)
}

// parseScalar inverts Scalar.String.
func parseScalar(text string) (Scalar, error) {
	switch {
	case strings.HasPrefix(text, "0x"):
		b, err := hex.DecodeString(text[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex option value %q", ErrMalformedWireData, text)
		}
		return b, nil
	case strings.HasPrefix(text, `"`):
		s, err := strconv.Unquote(text)
		if err != nil {
			return nil, fmt.Errorf("%w: bad quoted option value %q", ErrMalformedWireData, text)
		}
		return Scalar(s), nil
	default:
		if !isBoundedDecimal(text) {
			return nil, fmt.Errorf("%w: bad option value %q", ErrMalformedWireData, text)
		}
		return Scalar(text), nil
	}
}

func isBoundedDecimal(s string) bool {
	if s == "" || len(s) > 10 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	return err == nil && n <= 1<<32-1
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return len(b) > 0
}

// List is an ordered sequence of option values.
type List []OptionValue

func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// Pair is one entry of a Mapping.
type Pair struct {
	Key   string
	Value OptionValue
}

// Mapping is an ordered set of key=value pairs; order follows the
// interpreter's field registration, not alphabetical.
type Mapping []Pair

func (m Mapping) String() string {
	parts := make([]string, len(m))
	for i, p := range m {
		parts[i] = p.Key + "=" + p.Value.String()
	}
	return strings.Join(parts, ",")
}

func (m Mapping) get(key string) (OptionValue, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// OptionInterpreter converts between an option's opaque wire bytes and
// its structured value, in both directions. Decode never mutates its
// input; Parse accepts exactly the text Decode's value renders.
type OptionInterpreter struct {
	Name   string
	Decode func(b []byte) (OptionValue, error)
	Parse  func(text string) ([]byte, error)
}

// optionInterpreters is populated below and by RegisterOptionInterpreter
// during init; read-only afterwards.
var optionInterpreters = map[uint16]OptionInterpreter{}

// RegisterOptionInterpreter installs the interpreter for an option
// code. Like RegisterType it must only be called during package
// initialization.
func RegisterOptionInterpreter(code uint16, it OptionInterpreter) {
	if _, dup := optionInterpreters[code]; dup {
		panic(fmt.Sprintf("dns: duplicate option interpreter for code %d", code))
	}
	optionInterpreters[code] = it
}

// OptionName returns the registered mnemonic for an option code, or
// "OPT<code>" when unregistered.
func OptionName(code uint16) string {
	if it, ok := optionInterpreters[code]; ok {
		return it.Name
	}
	return fmt.Sprintf("OPT%d", code)
}

// interpretOption renders option bytes as presentation text. Unknown
// codes pass through as raw hex.
func interpretOption(code uint16, value []byte) (string, error) {
	it, ok := optionInterpreters[code]
	if !ok {
		return Scalar(value).String(), nil
	}
	v, err := it.Decode(value)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// parseOptionText inverts interpretOption.
func parseOptionText(code uint16, text string) ([]byte, error) {
	it, ok := optionInterpreters[code]
	if !ok {
		s, err := parseScalar(text)
		return []byte(s), err
	}
	return it.Parse(text)
}

// scalarInterpreter treats the whole value as one scalar. Used for
// NSID, EXPIRE, PADDING, and TCP keepalive, whose payloads are a plain
// string, a counter, or filler.
func scalarInterpreter(name string) OptionInterpreter {
	return OptionInterpreter{
		Name:   name,
		Decode: func(b []byte) (OptionValue, error) { return Scalar(b), nil },
		Parse: func(text string) ([]byte, error) {
			s, err := parseScalar(text)
			return []byte(s), err
		},
	}
}

// algListInterpreter decodes DAU/DHU/N3U payloads: one algorithm number
// per byte, rendered as a decimal list.
func algListInterpreter(name string) OptionInterpreter {
	return OptionInterpreter{
		Name: name,
		Decode: func(b []byte) (OptionValue, error) {
			l := make(List, len(b))
			for i, alg := range b {
				l[i] = Scalar(strconv.Itoa(int(alg)))
			}
			return l, nil
		},
		Parse: func(text string) ([]byte, error) {
			if text == "" {
				return []byte{}, nil
			}
			parts := strings.Split(text, ",")
			out := make([]byte, len(parts))
			for i, p := range parts {
				n, err := strconv.ParseUint(p, 10, 8)
				if err != nil {
					return nil, fmt.Errorf("%w: bad algorithm number %q", ErrMalformedWireData, p)
				}
				out[i] = byte(n)
			}
			return out, nil
		},
	}
}

// clientSubnetInterpreter handles the CLIENT-SUBNET option (RFC 7871):
// family(16) source-prefix(8) scope-prefix(8) address bytes.
func clientSubnetInterpreter() OptionInterpreter {
	return OptionInterpreter{
		Name: "CLIENT-SUBNET",
		Decode: func(b []byte) (OptionValue, error) {
			if len(b) < 4 {
				return nil, fmt.Errorf("%w: CLIENT-SUBNET option too short", ErrMalformedWireData)
			}
			return Mapping{
				{"FAMILY", Scalar(strconv.Itoa(int(binary.BigEndian.Uint16(b[:2]))))},
				{"SOURCE", Scalar(strconv.Itoa(int(b[2])))},
				{"SCOPE", Scalar(strconv.Itoa(int(b[3])))},
				{"ADDRESS", Scalar(b[4:])},
			}, nil
		},
		Parse: func(text string) ([]byte, error) {
			m, err := parseMappingText(text)
			if err != nil {
				return nil, err
			}
			family, err := mappingUint(m, "FAMILY", 16)
			if err != nil {
				return nil, err
			}
			source, err := mappingUint(m, "SOURCE", 8)
			if err != nil {
				return nil, err
			}
			scope, err := mappingUint(m, "SCOPE", 8)
			if err != nil {
				return nil, err
			}
			buf := binary.BigEndian.AppendUint16(nil, uint16(family))
			buf = append(buf, byte(source), byte(scope))
			if addr, ok := m.get("ADDRESS"); ok {
				buf = append(buf, []byte(addr.(Scalar))...)
			}
			return buf, nil
		},
	}
}

// cookieInterpreter handles the COOKIE option (RFC 7873): 8-byte client
// cookie, optional 8..32-byte server cookie.
func cookieInterpreter() OptionInterpreter {
	return OptionInterpreter{
		Name: "COOKIE",
		Decode: func(b []byte) (OptionValue, error) {
			if len(b) < 8 {
				return nil, fmt.Errorf("%w: COOKIE option shorter than client cookie", ErrMalformedWireData)
			}
			return Mapping{
				{"CLIENT", Scalar(b[:8])},
				{"SERVER", Scalar(b[8:])},
			}, nil
		},
		Parse: func(text string) ([]byte, error) {
			m, err := parseMappingText(text)
			if err != nil {
				return nil, err
			}
			client, ok := m.get("CLIENT")
			if !ok {
				return nil, fmt.Errorf("%w: COOKIE text missing CLIENT", ErrMalformedWireData)
			}
			buf := append([]byte(nil), []byte(client.(Scalar))...)
			if server, ok := m.get("SERVER"); ok {
				buf = append(buf, []byte(server.(Scalar))...)
			}
			return buf, nil
		},
	}
}

// parseMappingText splits "K=v,K=v" text back into an ordered mapping
// of scalar values. Quoted scalars may contain commas, so splitting is
// quote-aware.
func parseMappingText(text string) (Mapping, error) {
	var m Mapping
	for _, part := range splitTopLevel(text) {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: bad mapping entry %q", ErrMalformedWireData, part)
		}
		s, err := parseScalar(val)
		if err != nil {
			return nil, err
		}
		m = append(m, Pair{Key: key, Value: s})
	}
	return m, nil
}

func mappingUint(m Mapping, key string, bits int) (uint64, error) {
	v, ok := m.get(key)
	if !ok {
		return 0, fmt.Errorf("%w: mapping missing key %q", ErrMalformedWireData, key)
	}
	n, err := strconv.ParseUint(string(v.(Scalar)), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: bad value for %q", ErrMalformedWireData, key)
	}
	return n, nil
}

// splitTopLevel splits on commas that are outside quoted strings.
func splitTopLevel(text string) []string {
	if text == "" {
		return nil
	}
	var parts []string
	depth := false
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			depth = !depth
		case '\\':
			if depth {
				i++
			}
		case ',':
			if !depth {
				parts = append(parts, text[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, text[start:])
}

func init() {
	RegisterOptionInterpreter(OptCodeNSID, scalarInterpreter("NSID"))
	RegisterOptionInterpreter(OptCodeDAU, algListInterpreter("DAU"))
	RegisterOptionInterpreter(OptCodeDHU, algListInterpreter("DHU"))
	RegisterOptionInterpreter(OptCodeN3U, algListInterpreter("N3U"))
	RegisterOptionInterpreter(OptCodeClientSubnet, clientSubnetInterpreter())
	RegisterOptionInterpreter(OptCodeExpire, OptionInterpreter{
		Name: "EXPIRE",
		Decode: func(b []byte) (OptionValue, error) {
			switch len(b) {
			case 0:
				return Scalar(nil), nil
			case 4:
				return Scalar(strconv.FormatUint(uint64(binary.BigEndian.Uint32(b)), 10)), nil
			default:
				return nil, fmt.Errorf("%w: EXPIRE option must be 0 or 4 bytes", ErrMalformedWireData)
			}
		},
		Parse: func(text string) ([]byte, error) {
			if text == "" || text == "0x" {
				return []byte{}, nil
			}
			n, err := strconv.ParseUint(text, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: bad EXPIRE value %q", ErrMalformedWireData, text)
			}
			return binary.BigEndian.AppendUint32(nil, uint32(n)), nil
		},
	})
	RegisterOptionInterpreter(OptCodeCookie, cookieInterpreter())
	RegisterOptionInterpreter(OptCodeKeepalive, OptionInterpreter{
		Name: "TCP-KEEPALIVE",
		Decode: func(b []byte) (OptionValue, error) {
			switch len(b) {
			case 0:
				return Scalar(nil), nil
			case 2:
				return Scalar(strconv.FormatUint(uint64(binary.BigEndian.Uint16(b)), 10)), nil
			default:
				return nil, fmt.Errorf("%w: TCP-KEEPALIVE option must be 0 or 2 bytes", ErrMalformedWireData)
			}
		},
		Parse: func(text string) ([]byte, error) {
			if text == "" || text == "0x" {
				return []byte{}, nil
			}
			n, err := strconv.ParseUint(text, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("%w: bad TCP-KEEPALIVE value %q", ErrMalformedWireData, text)
			}
			return binary.BigEndian.AppendUint16(nil, uint16(n)), nil
		},
	})
	RegisterOptionInterpreter(OptCodePadding, scalarInterpreter("PADDING"))
}
