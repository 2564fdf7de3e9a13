package dns

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
)

func init() {
	RegisterType(TypeKEY, "KEY", func() Record { return &KEYRecord{} }, nil)
}

// KEYRecord represents a public key record (RFC 2535). For SIG(0) use
// the protocol field is 3 (DNSSEC) and the flags identify an entity key.
type KEYRecord struct {
	H         RRHeader
	Flags     uint16
	Protocol  uint8
	Algorithm uint8
	PublicKey []byte
}

// NewKEYRecord creates a KEY record holding the wire-format public key
// for the given algorithm.
func NewKEYRecord(h RRHeader, flags uint16, protocol, algorithm uint8, publicKey []byte) *KEYRecord {
	return &KEYRecord{H: h, Flags: flags, Protocol: protocol, Algorithm: algorithm, PublicKey: publicKey}
}

// Type returns TypeKEY.
func (r *KEYRecord) Type() RecordType { return TypeKEY }

// Header returns the record header.
func (r *KEYRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *KEYRecord) SetHeader(h RRHeader) { r.H = h }

// UnpackRData decodes flags, protocol, algorithm, and key material.
func (r *KEYRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	if rdlen < 4 {
		return fmt.Errorf("%w: KEY rdata too short", ErrMalformedWireData)
	}
	r.Flags = binary.BigEndian.Uint16(msg[*off : *off+2])
	r.Protocol = msg[*off+2]
	r.Algorithm = msg[*off+3]
	r.PublicKey = append([]byte(nil), msg[*off+4:*off+rdlen]...)
	*off += rdlen
	return nil
}

// MarshalRData encodes flags, protocol, algorithm, and key material.
func (r *KEYRecord) MarshalRData(map[string]int, int) ([]byte, error) {
	buf := binary.BigEndian.AppendUint16(nil, r.Flags)
	buf = append(buf, r.Protocol, r.Algorithm)
	return append(buf, r.PublicKey...), nil
}

// RDataString renders "flags protocol algorithm base64-key".
func (r *KEYRecord) RDataString() string {
	return fmt.Sprintf("%d %d %d %s", r.Flags, r.Protocol, r.Algorithm,
		base64.StdEncoding.EncodeToString(r.PublicKey))
}

// ParseRData parses "flags protocol algorithm base64-key" fields.
func (r *KEYRecord) ParseRData(fields []string) error {
	if len(fields) < 4 {
		return fmt.Errorf("%w: KEY takes flags, protocol, algorithm, and key fields", ErrMalformedWireData)
	}
	flags, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return fmt.Errorf("%w: bad KEY flags %q", ErrMalformedWireData, fields[0])
	}
	proto, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return fmt.Errorf("%w: bad KEY protocol %q", ErrMalformedWireData, fields[1])
	}
	alg, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil {
		return fmt.Errorf("%w: bad KEY algorithm %q", ErrMalformedWireData, fields[2])
	}
	var b64 string
	for _, f := range fields[3:] {
		b64 += f
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("%w: bad KEY base64: %v", ErrMalformedWireData, err)
	}
	r.Flags = uint16(flags)
	r.Protocol = uint8(proto)
	r.Algorithm = uint8(alg)
	r.PublicKey = key
	return nil
}

// KeyTag computes the RFC 4034 Appendix B key tag over the key rdata.
// It is a non-cryptographic fingerprint used to narrow candidate keys
// during verification.
func (r *KEYRecord) KeyTag() uint16 {
	rdata, _ := r.MarshalRData(nil, 0)
	var acc uint32
	for i, b := range rdata {
		if i&1 == 1 {
			acc += uint32(b)
		} else {
			acc += uint32(b) << 8
		}
	}
	acc += acc >> 16 & 0xFFFF
	return uint16(acc & 0xFFFF)
}
