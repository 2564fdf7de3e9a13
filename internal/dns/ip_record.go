package dns

import (
	"fmt"
	"net/netip"
)

func init() {
	RegisterType(TypeA, "A", func() Record { return &IPRecord{T: TypeA} }, nil)
	RegisterType(TypeAAAA, "AAAA", func() Record { return &IPRecord{T: TypeAAAA} }, nil)
}

// IPRecord represents address records: A (4-byte IPv4, RFC 1035) and
// AAAA (16-byte IPv6, RFC 3596).
type IPRecord struct {
	H    RRHeader
	T    RecordType
	Addr netip.Addr
}

// NewARecord creates an A record.
func NewARecord(h RRHeader, addr netip.Addr) *IPRecord {
	return &IPRecord{H: h, T: TypeA, Addr: addr}
}

// NewAAAARecord creates an AAAA record.
func NewAAAARecord(h RRHeader, addr netip.Addr) *IPRecord {
	return &IPRecord{H: h, T: TypeAAAA, Addr: addr}
}

// Type returns the record type (A or AAAA).
func (r *IPRecord) Type() RecordType { return r.T }

// Header returns the record header.
func (r *IPRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *IPRecord) SetHeader(h RRHeader) { r.H = h }

func (r *IPRecord) addrLen() int {
	if r.T == TypeA {
		return 4
	}
	return 16
}

// UnpackRData decodes the fixed-size address.
func (r *IPRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	if rdlen != r.addrLen() {
		return fmt.Errorf("%w: %s rdata must be %d bytes, got %d",
			ErrMalformedWireData, TypeMnemonic(r.T), r.addrLen(), rdlen)
	}
	addr, ok := netip.AddrFromSlice(msg[*off : *off+rdlen])
	if !ok {
		return fmt.Errorf("%w: invalid address bytes", ErrMalformedWireData)
	}
	r.Addr = addr
	*off += rdlen
	return nil
}

// MarshalRData encodes the address.
func (r *IPRecord) MarshalRData(map[string]int, int) ([]byte, error) {
	if r.T == TypeA {
		if !r.Addr.Is4() {
			return nil, fmt.Errorf("%w: A record requires an IPv4 address", ErrMalformedWireData)
		}
		b := r.Addr.As4()
		return b[:], nil
	}
	if !r.Addr.Is6() || r.Addr.Is4In6() {
		return nil, fmt.Errorf("%w: AAAA record requires an IPv6 address", ErrMalformedWireData)
	}
	b := r.Addr.As16()
	return b[:], nil
}

// RDataString renders the address.
func (r *IPRecord) RDataString() string { return r.Addr.String() }

// ParseRData parses a single address field.
func (r *IPRecord) ParseRData(fields []string) error {
	if len(fields) != 1 {
		return fmt.Errorf("%w: %s takes one address field", ErrMalformedWireData, TypeMnemonic(r.T))
	}
	addr, err := netip.ParseAddr(fields[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedWireData, err)
	}
	r.Addr = addr
	return nil
}
