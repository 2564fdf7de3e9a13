package dns

import (
	"fmt"
	"strconv"
	"strings"
)

func init() {
	RegisterType(TypeTXT, "TXT", func() Record { return &TXTRecord{} }, nil)
}

// TXTRecord represents descriptive text (RFC 1035 Section 3.3.14): one
// or more character-strings, each a length byte followed by up to 255
// bytes of data.
type TXTRecord struct {
	H       RRHeader
	Strings []string
}

// NewTXTRecord creates a TXT record from one or more character-strings.
func NewTXTRecord(h RRHeader, strs ...string) *TXTRecord {
	return &TXTRecord{H: h, Strings: strs}
}

// Type returns TypeTXT.
func (r *TXTRecord) Type() RecordType { return TypeTXT }

// Header returns the record header.
func (r *TXTRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *TXTRecord) SetHeader(h RRHeader) { r.H = h }

// UnpackRData decodes the character-string sequence.
func (r *TXTRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	end := *off + rdlen
	var strs []string
	for *off < end {
		n := int(msg[*off])
		*off++
		if *off+n > end {
			return fmt.Errorf("%w: TXT character-string overruns rdata", ErrMalformedWireData)
		}
		strs = append(strs, string(msg[*off:*off+n]))
		*off += n
	}
	r.Strings = strs
	return nil
}

// MarshalRData encodes the character-string sequence.
func (r *TXTRecord) MarshalRData(map[string]int, int) ([]byte, error) {
	var buf []byte
	for _, s := range r.Strings {
		if len(s) > 255 {
			return nil, fmt.Errorf("%w: TXT character-string exceeds 255 bytes", ErrMalformedWireData)
		}
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}
	return buf, nil
}

// RDataString renders each character-string quoted.
func (r *TXTRecord) RDataString() string {
	parts := make([]string, 0, len(r.Strings))
	for _, s := range r.Strings {
		parts = append(parts, strconv.Quote(s))
	}
	return strings.Join(parts, " ")
}

// ParseRData parses quoted or bare character-string fields.
func (r *TXTRecord) ParseRData(fields []string) error {
	var strs []string
	for _, f := range fields {
		if len(f) >= 2 && f[0] == '"' {
			s, err := strconv.Unquote(f)
			if err != nil {
				return fmt.Errorf("%w: bad TXT string %q", ErrMalformedWireData, f)
			}
			f = s
		}
		strs = append(strs, f)
	}
	r.Strings = strs
	return nil
}
