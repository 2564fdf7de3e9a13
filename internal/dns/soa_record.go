package dns

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

func init() {
	RegisterType(TypeSOA, "SOA", func() Record { return &SOARecord{} }, nil)
}

// SOARecord represents a Start of Authority record (RFC 1035 Section
// 3.3.13). RName is the zone maintainer's mailbox in domain-name form.
type SOARecord struct {
	H       RRHeader
	MName   Name
	RName   Mailbox
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// Type returns TypeSOA.
func (r *SOARecord) Type() RecordType { return TypeSOA }

// Header returns the record header.
func (r *SOARecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *SOARecord) SetHeader(h RRHeader) { r.H = h }

// UnpackRData decodes the two names and five 32-bit fields.
func (r *SOARecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	start := *off
	mname, err := ParseName(msg, off)
	if err != nil {
		return err
	}
	rname, err := ParseName(msg, off)
	if err != nil {
		return err
	}
	if *off+20 > len(msg) || *off-start+20 != rdlen {
		return fmt.Errorf("%w: SOA rdata length mismatch", ErrMalformedWireData)
	}
	r.MName = mname
	r.RName = Mailbox{Name: rname}
	r.Serial = binary.BigEndian.Uint32(msg[*off : *off+4])
	r.Refresh = binary.BigEndian.Uint32(msg[*off+4 : *off+8])
	r.Retry = binary.BigEndian.Uint32(msg[*off+8 : *off+12])
	r.Expire = binary.BigEndian.Uint32(msg[*off+12 : *off+16])
	r.Minimum = binary.BigEndian.Uint32(msg[*off+16 : *off+20])
	*off += 20
	return nil
}

// MarshalRData encodes the two names and five 32-bit fields.
func (r *SOARecord) MarshalRData(cmap map[string]int, off int) ([]byte, error) {
	buf, err := r.MName.appendWire(nil, off, cmap)
	if err != nil {
		return nil, err
	}
	buf, err = r.RName.appendWire(buf, off, cmap)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint32(buf, r.Serial)
	buf = binary.BigEndian.AppendUint32(buf, r.Refresh)
	buf = binary.BigEndian.AppendUint32(buf, r.Retry)
	buf = binary.BigEndian.AppendUint32(buf, r.Expire)
	buf = binary.BigEndian.AppendUint32(buf, r.Minimum)
	return buf, nil
}

// RDataString renders the SOA fields on one line.
func (r *SOARecord) RDataString() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d",
		r.MName.String(), r.RName.Name.String(),
		r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum)
}

// ParseRData parses "mname rname serial refresh retry expire minimum".
func (r *SOARecord) ParseRData(fields []string) error {
	if len(fields) != 7 {
		return fmt.Errorf("%w: SOA takes 7 fields", ErrMalformedWireData)
	}
	if err := r.MName.Set(fields[0]); err != nil {
		return err
	}
	if err := r.RName.Set(fields[1]); err != nil {
		return err
	}
	for i, dst := range []*uint32{&r.Serial, &r.Refresh, &r.Retry, &r.Expire, &r.Minimum} {
		v, err := strconv.ParseUint(fields[2+i], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: bad SOA field %q", ErrMalformedWireData, fields[2+i])
		}
		*dst = uint32(v)
	}
	return nil
}
