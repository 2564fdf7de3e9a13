package dns

import "fmt"

func init() {
	RegisterType(TypeNS, "NS", func() Record { return &NameRecord{T: TypeNS} }, nil)
	RegisterType(TypeCNAME, "CNAME", func() Record { return &NameRecord{T: TypeCNAME} }, nil)
	RegisterType(TypePTR, "PTR", func() Record { return &NameRecord{T: TypePTR} }, nil)
}

// NameRecord represents DNS records whose rdata is a single domain name
// (CNAME, NS, PTR). The target participates in message compression.
type NameRecord struct {
	H      RRHeader
	T      RecordType
	Target Name
}

// NewNSRecord creates an NS record.
func NewNSRecord(h RRHeader, target Name) *NameRecord {
	return &NameRecord{H: h, T: TypeNS, Target: target}
}

// NewCNAMERecord creates a CNAME record.
func NewCNAMERecord(h RRHeader, target Name) *NameRecord {
	return &NameRecord{H: h, T: TypeCNAME, Target: target}
}

// NewPTRRecord creates a PTR record.
func NewPTRRecord(h RRHeader, target Name) *NameRecord {
	return &NameRecord{H: h, T: TypePTR, Target: target}
}

// Type returns the record type (NS, CNAME, or PTR).
func (r *NameRecord) Type() RecordType { return r.T }

// Header returns the record header.
func (r *NameRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *NameRecord) SetHeader(h RRHeader) { r.H = h }

// UnpackRData decodes the target name (possibly compressed).
func (r *NameRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	start := *off
	n, err := ParseName(msg, off)
	if err != nil {
		return err
	}
	if *off-start != rdlen {
		return fmt.Errorf("%w: %s rdata length mismatch", ErrMalformedWireData, TypeMnemonic(r.T))
	}
	r.Target = n
	return nil
}

// MarshalRData encodes the target name, sharing the message compression
// table when one is supplied.
func (r *NameRecord) MarshalRData(cmap map[string]int, off int) ([]byte, error) {
	return r.Target.appendWire(nil, off, cmap)
}

// RDataString renders the target name.
func (r *NameRecord) RDataString() string { return r.Target.String() }

// ParseRData parses a single target name field.
func (r *NameRecord) ParseRData(fields []string) error {
	if len(fields) != 1 {
		return fmt.Errorf("%w: %s takes one name field", ErrMalformedWireData, TypeMnemonic(r.T))
	}
	return r.Target.Set(fields[0])
}
