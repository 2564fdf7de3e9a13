package dns

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

func init() {
	RegisterType(TypeMX, "MX", func() Record { return &MXRecord{} }, mxLess)
}

// mxLess orders MX records ascending by preference; equal preferences
// keep their insertion order (SortRecords is stable).
func mxLess(a, b Record) bool {
	ma, ok1 := a.(*MXRecord)
	mb, ok2 := b.(*MXRecord)
	return ok1 && ok2 && ma.Preference < mb.Preference
}

// MXRecord represents a mail exchange record (RFC 1035 Section 3.3.9).
type MXRecord struct {
	H          RRHeader
	Preference uint16
	Exchange   Name
}

// NewMXRecord creates an MX record.
func NewMXRecord(h RRHeader, preference uint16, exchange Name) *MXRecord {
	return &MXRecord{H: h, Preference: preference, Exchange: exchange}
}

// Type returns TypeMX.
func (r *MXRecord) Type() RecordType { return TypeMX }

// Header returns the record header.
func (r *MXRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *MXRecord) SetHeader(h RRHeader) { r.H = h }

// UnpackRData decodes preference and exchange name.
func (r *MXRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	start := *off
	if rdlen < 3 {
		return fmt.Errorf("%w: MX rdata too short", ErrMalformedWireData)
	}
	r.Preference = binary.BigEndian.Uint16(msg[*off : *off+2])
	*off += 2
	ex, err := ParseName(msg, off)
	if err != nil {
		return err
	}
	if *off-start != rdlen {
		return fmt.Errorf("%w: MX rdata length mismatch", ErrMalformedWireData)
	}
	r.Exchange = ex
	return nil
}

// MarshalRData encodes preference and exchange name.
func (r *MXRecord) MarshalRData(cmap map[string]int, off int) ([]byte, error) {
	buf := binary.BigEndian.AppendUint16(nil, r.Preference)
	return r.Exchange.appendWire(buf, off, cmap)
}

// RDataString renders "preference exchange".
func (r *MXRecord) RDataString() string {
	return fmt.Sprintf("%d %s", r.Preference, r.Exchange.String())
}

// ParseRData parses "preference exchange" fields.
func (r *MXRecord) ParseRData(fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("%w: MX takes preference and exchange fields", ErrMalformedWireData)
	}
	pref, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return fmt.Errorf("%w: bad MX preference %q", ErrMalformedWireData, fields[0])
	}
	r.Preference = uint16(pref)
	return r.Exchange.Set(fields[1])
}
