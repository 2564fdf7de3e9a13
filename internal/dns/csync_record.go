package dns

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

func init() {
	RegisterType(TypeCSYNC, "CSYNC", func() Record { return &CSYNCRecord{} }, nil)
}

// CSYNC flag bits (RFC 7477 Section 2.1.1.2).
const (
	CSYNCImmediate  uint16 = 0x0001 // parent may process immediately
	CSYNCSOAMinimum uint16 = 0x0002 // SOASerial field must match child SOA
)

// CSYNCRecord represents a Child-To-Parent Synchronization record
// (RFC 7477). TypeList is carried on the wire as an NSEC-style type
// bitmap (RFC 4034 Section 4.1.2) and is kept sorted by type code.
type CSYNCRecord struct {
	H         RRHeader
	SOASerial uint32
	Flags     uint16
	TypeList  []RecordType
}

// Type returns TypeCSYNC.
func (r *CSYNCRecord) Type() RecordType { return TypeCSYNC }

// Header returns the record header.
func (r *CSYNCRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *CSYNCRecord) SetHeader(h RRHeader) { r.H = h }

// UnpackRData decodes serial, flags, and the type bitmap.
func (r *CSYNCRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	if rdlen < 6 {
		return fmt.Errorf("%w: CSYNC rdata too short", ErrMalformedWireData)
	}
	r.SOASerial = binary.BigEndian.Uint32(msg[*off : *off+4])
	r.Flags = binary.BigEndian.Uint16(msg[*off+4 : *off+6])
	*off += 6
	types, err := unpackTypeBitmap(msg[*off : *off+rdlen-6])
	if err != nil {
		return err
	}
	r.TypeList = types
	*off += rdlen - 6
	return nil
}

// MarshalRData encodes serial, flags, and the type bitmap.
func (r *CSYNCRecord) MarshalRData(map[string]int, int) ([]byte, error) {
	buf := binary.BigEndian.AppendUint32(nil, r.SOASerial)
	buf = binary.BigEndian.AppendUint16(buf, r.Flags)
	return appendTypeBitmap(buf, r.TypeList), nil
}

// RDataString renders "serial flags TYPE TYPE ...".
func (r *CSYNCRecord) RDataString() string {
	parts := make([]string, 0, 2+len(r.TypeList))
	parts = append(parts, strconv.FormatUint(uint64(r.SOASerial), 10))
	parts = append(parts, strconv.FormatUint(uint64(r.Flags), 10))
	for _, t := range sortedTypes(r.TypeList) {
		parts = append(parts, TypeMnemonic(t))
	}
	return strings.Join(parts, " ")
}

// ParseRData parses "serial flags TYPE TYPE ...".
func (r *CSYNCRecord) ParseRData(fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("%w: CSYNC takes serial, flags, and a type list", ErrMalformedWireData)
	}
	serial, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: bad CSYNC serial %q", ErrMalformedWireData, fields[0])
	}
	flags, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return fmt.Errorf("%w: bad CSYNC flags %q", ErrMalformedWireData, fields[1])
	}
	types := make([]RecordType, 0, len(fields)-2)
	for _, f := range fields[2:] {
		t, ok := TypeFromMnemonic(f)
		if !ok {
			return fmt.Errorf("%w: unknown type mnemonic %q", ErrMalformedWireData, f)
		}
		types = append(types, t)
	}
	r.SOASerial = uint32(serial)
	r.Flags = uint16(flags)
	r.TypeList = sortedTypes(types)
	return nil
}

func sortedTypes(types []RecordType) []RecordType {
	out := slices.Clone(types)
	slices.Sort(out)
	return slices.Compact(out)
}

// appendTypeBitmap encodes a type set as NSEC-style window blocks:
// each block is (window:8, length:8, bitmap up to 32 bytes), with bit
// (type mod 256) numbered from the most significant bit of the bitmap.
func appendTypeBitmap(buf []byte, types []RecordType) []byte {
	sorted := sortedTypes(types)
	i := 0
	for i < len(sorted) {
		window := byte(sorted[i] >> 8)
		var bitmap [32]byte
		used := 0
		for ; i < len(sorted) && byte(sorted[i]>>8) == window; i++ {
			low := int(sorted[i] & 0xFF)
			bitmap[low/8] |= 0x80 >> (low % 8)
			if low/8+1 > used {
				used = low/8 + 1
			}
		}
		buf = append(buf, window, byte(used))
		buf = append(buf, bitmap[:used]...)
	}
	return buf
}

// unpackTypeBitmap decodes NSEC-style window blocks into an ascending
// type list.
func unpackTypeBitmap(b []byte) ([]RecordType, error) {
	var types []RecordType
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, fmt.Errorf("%w: truncated type bitmap header", ErrMalformedWireData)
		}
		window, length := int(b[0]), int(b[1])
		b = b[2:]
		if length == 0 || length > 32 || len(b) < length {
			return nil, fmt.Errorf("%w: bad type bitmap block length %d", ErrMalformedWireData, length)
		}
		for i := 0; i < length; i++ {
			for bit := 0; bit < 8; bit++ {
				if b[i]&(0x80>>bit) != 0 {
					types = append(types, RecordType(window<<8|i*8+bit))
				}
			}
		}
		b = b[length:]
	}
	return types, nil
}
