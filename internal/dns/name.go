package dns

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Wire-format limits for domain names (RFC 1035 Section 2.3.4).
const (
	maxLabelLen   = 63  // Maximum length of one label
	maxNameLen    = 255 // Maximum length of an encoded name
	compressFlag  = 0xC0
	maxPointerOff = 0x3FFF // Compression pointers carry a 14-bit offset
)

// Name is the wire-format representation of a domain name: an ordered
// sequence of labels, each at most 63 bytes, case-preserved.
//
// A Name is immutable once decoded; Set re-derives the label sequence
// from presentation text. The zero value is the root name.
type Name struct {
	labels []string
}

// NewName parses a domain name from presentation format. Dots separate
// labels; "\." and "\\" escape a literal dot or backslash inside a
// label. The empty string and "." both denote the root name.
func NewName(s string) (Name, error) {
	var n Name
	if err := n.Set(s); err != nil {
		return Name{}, err
	}
	return n, nil
}

// MustName is NewName for names known valid at compile time.
// It panics on error and is intended for constants and tests.
func MustName(s string) Name {
	n, err := NewName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Set replaces the name with one re-derived from presentation text.
func (n *Name) Set(s string) error {
	if s == "" || s == "." {
		n.labels = nil
		return nil
	}
	s = strings.TrimSuffix(s, ".")

	labels := make([]string, 0, 4)
	var label strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			label.WriteByte(s[i])
		case c == '.':
			if label.Len() == 0 {
				return fmt.Errorf("%w: empty label in name %q", ErrMalformedWireData, s)
			}
			labels = append(labels, label.String())
			label.Reset()
		default:
			label.WriteByte(c)
		}
	}
	if label.Len() == 0 {
		return fmt.Errorf("%w: empty label in name %q", ErrMalformedWireData, s)
	}
	labels = append(labels, label.String())

	if err := validateLabels(labels); err != nil {
		return err
	}
	n.labels = labels
	return nil
}

func validateLabels(labels []string) error {
	encoded := 1 // terminating root label
	for _, l := range labels {
		if len(l) > maxLabelLen {
			return fmt.Errorf("%w: label exceeds %d bytes: %q", ErrMalformedWireData, maxLabelLen, l)
		}
		encoded += 1 + len(l)
	}
	if encoded > maxNameLen {
		return fmt.Errorf("%w: encoded name exceeds %d bytes", ErrMalformedWireData, maxNameLen)
	}
	return nil
}

// Labels returns the ordered label sequence. The root name has none.
func (n Name) Labels() []string { return n.labels }

// IsRoot reports whether the name is the DNS root.
func (n Name) IsRoot() bool { return len(n.labels) == 0 }

// String renders the name in presentation format without a trailing dot.
// Dots and backslashes inside a label are escaped; the root renders ".".
func (n Name) String() string {
	if n.IsRoot() {
		return "."
	}
	var b strings.Builder
	for i, l := range n.labels {
		if i > 0 {
			b.WriteByte('.')
		}
		for j := 0; j < len(l); j++ {
			if l[j] == '.' || l[j] == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(l[j])
		}
	}
	return b.String()
}

// Canonical returns the lowercase form used for ordering and comparison
// per the canonical name algorithm (RFC 4034 Section 6.1).
func (n Name) Canonical() string {
	return strings.ToLower(n.String())
}

// Equal compares two names case-insensitively, label by label.
func (n Name) Equal(other Name) bool {
	if len(n.labels) != len(other.labels) {
		return false
	}
	for i := range n.labels {
		if !strings.EqualFold(n.labels[i], other.labels[i]) {
			return false
		}
	}
	return true
}

// Compare orders two names by their canonical form.
func (n Name) Compare(other Name) int {
	return strings.Compare(n.Canonical(), other.Canonical())
}

// ParseName decodes a possibly-compressed domain name from wire format,
// advancing *off past the encoded name (including any pointer bytes).
//
// Compression pointers (RFC 1035 Section 4.1.4) are the two high bits of
// a length byte set (11xxxxxx); the remaining 14 bits are an offset from
// the start of the message. A pointer may only reference an offset
// strictly earlier in the buffer than the pointer itself, and no offset
// may be visited twice; both rules make decode loops impossible.
func ParseName(msg []byte, off *int) (Name, error) {
	if *off < 0 || *off >= len(msg) {
		return Name{}, fmt.Errorf("%w: name offset outside message", ErrMalformedWireData)
	}

	labels := make([]string, 0, 6)
	decoded := 1 // running encoded-length bound, counting the root label
	pos := *off
	followed := false // are we past the first compression pointer?
	visited := map[int]struct{}{}

	for {
		if pos >= len(msg) {
			return Name{}, fmt.Errorf("%w: truncated name", ErrMalformedWireData)
		}
		c := int(msg[pos])
		switch {
		case c == 0:
			if !followed {
				*off = pos + 1
			}
			return Name{labels: labels}, nil

		case c&compressFlag == compressFlag:
			if pos+1 >= len(msg) {
				return Name{}, fmt.Errorf("%w: truncated compression pointer", ErrMalformedWireData)
			}
			ptr := int(binary.BigEndian.Uint16(msg[pos:pos+2]) &^ (uint16(compressFlag) << 8))
			if ptr >= pos {
				return Name{}, fmt.Errorf("%w: compression pointer not strictly backward", ErrMalformedWireData)
			}
			if _, ok := visited[ptr]; ok {
				return Name{}, fmt.Errorf("%w: compression pointer loop", ErrMalformedWireData)
			}
			visited[ptr] = struct{}{}
			if !followed {
				*off = pos + 2
				followed = true
			}
			pos = ptr

		case c&compressFlag != 0:
			return Name{}, fmt.Errorf("%w: reserved label type %#x", ErrMalformedWireData, c&compressFlag)

		default:
			if pos+1+c > len(msg) {
				return Name{}, fmt.Errorf("%w: label overruns message", ErrMalformedWireData)
			}
			decoded += 1 + c
			if decoded > maxNameLen {
				return Name{}, fmt.Errorf("%w: decoded name exceeds %d bytes", ErrMalformedWireData, maxNameLen)
			}
			labels = append(labels, string(msg[pos+1:pos+1+c]))
			pos += 1 + c
		}
	}
}

// appendWire appends the wire encoding of the name to buf.
//
// When cmap is non-nil it maps canonical name suffixes to the absolute
// message offset where they were first emitted; an identical suffix whose
// offset fits in 14 bits is replaced by a 2-byte pointer. base is the
// absolute message offset of buf[0], so rdata encoders working on a
// local buffer can share the same table as the enclosing message.
func (n Name) appendWire(buf []byte, base int, cmap map[string]int) ([]byte, error) {
	if err := validateLabels(n.labels); err != nil {
		return nil, err
	}
	for i, l := range n.labels {
		if cmap != nil {
			suffix := Name{labels: n.labels[i:]}.Canonical()
			if ptr, ok := cmap[suffix]; ok && ptr <= maxPointerOff {
				return binary.BigEndian.AppendUint16(buf, uint16(compressFlag)<<8|uint16(ptr)), nil
			}
			if here := base + len(buf); here <= maxPointerOff {
				cmap[suffix] = here
			}
		}
		buf = append(buf, byte(len(l)))
		buf = append(buf, l...)
	}
	return append(buf, 0), nil
}

// EncodedLen returns the uncompressed wire length of the name.
func (n Name) EncodedLen() int {
	total := 1
	for _, l := range n.labels {
		total += 1 + len(l)
	}
	return total
}
