package dns

import (
	"encoding/binary"
	"fmt"
)

// Header represents a DNS message header (RFC 1035 Section 4.1.1).
//
// The header is always 12 bytes and contains:
//   - ID: 16-bit identifier for matching requests to responses
//   - Flags: 16-bit field containing QR, Opcode, AA, TC, RD, RA, Z, RCODE
//   - QDCount/ANCount/NSCount/ARCount: section entry counts
//
// Count fields are recomputed from the section slices at encode time;
// counts read from the wire bound the section walk but are never
// trusted beyond the actual buffer length.
type Header struct {
	ID      uint16 // Transaction ID
	Flags   uint16 // See enums.go for flag definitions
	QDCount uint16 // Question count
	ANCount uint16 // Answer count
	NSCount uint16 // Authority (nameserver) count
	ARCount uint16 // Additional records count
}

// HeaderSize is the fixed size of a DNS header in bytes.
const HeaderSize = 12

// Marshal serializes the header to wire format (big-endian, 12 bytes).
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(b[0:2], h.ID)
	binary.BigEndian.PutUint16(b[2:4], h.Flags)
	binary.BigEndian.PutUint16(b[4:6], h.QDCount)
	binary.BigEndian.PutUint16(b[6:8], h.ANCount)
	binary.BigEndian.PutUint16(b[8:10], h.NSCount)
	binary.BigEndian.PutUint16(b[10:12], h.ARCount)
	return b
}

// ParseHeader parses a DNS header from the message at the given offset.
// It advances *off by 12 bytes (the header size) on success.
func ParseHeader(msg []byte, off *int) (Header, error) {
	if *off+HeaderSize > len(msg) {
		return Header{}, fmt.Errorf("%w: unexpected EOF while reading header", ErrMalformedWireData)
	}
	h := Header{
		ID:      binary.BigEndian.Uint16(msg[*off : *off+2]),
		Flags:   binary.BigEndian.Uint16(msg[*off+2 : *off+4]),
		QDCount: binary.BigEndian.Uint16(msg[*off+4 : *off+6]),
		ANCount: binary.BigEndian.Uint16(msg[*off+6 : *off+8]),
		NSCount: binary.BigEndian.Uint16(msg[*off+8 : *off+10]),
		ARCount: binary.BigEndian.Uint16(msg[*off+10 : *off+12]),
	}
	*off += HeaderSize
	return h, nil
}

// RCode returns the response code from the low 4 bits of the flags.
func (h Header) RCode() RCode { return RCodeFromFlags(h.Flags) }

// Opcode returns the 4-bit operation code (bits 14-11 of the flags).
func (h Header) Opcode() uint16 { return (h.Flags & OpcodeMask) >> 11 }

// IsQuery returns true if this is a query (QR=0).
func (h Header) IsQuery() bool { return h.Flags&QRFlag == 0 }

// IsResponse returns true if this is a response (QR=1).
func (h Header) IsResponse() bool { return h.Flags&QRFlag != 0 }

// Truncated returns true if the TC (Truncated) flag is set.
func (h Header) Truncated() bool { return h.Flags&TCFlag != 0 }

// Authoritative returns true if the AA (Authoritative Answer) flag is set.
func (h Header) Authoritative() bool { return h.Flags&AAFlag != 0 }

// RecursionDesired returns true if the RD (Recursion Desired) flag is set.
func (h Header) RecursionDesired() bool { return h.Flags&RDFlag != 0 }

// RecursionAvailable returns true if the RA (Recursion Available) flag is set.
func (h Header) RecursionAvailable() bool { return h.Flags&RAFlag != 0 }

// SetRD sets or clears the RD (Recursion Desired) flag.
func (h *Header) SetRD(enabled bool) { h.setFlag(RDFlag, enabled) }

// SetCD sets or clears the CD (Checking Disabled) flag.
func (h *Header) SetCD(enabled bool) { h.setFlag(CDFlag, enabled) }

// SetAD sets or clears the AD (Authenticated Data) flag.
func (h *Header) SetAD(enabled bool) { h.setFlag(ADFlag, enabled) }

func (h *Header) setFlag(mask uint16, enabled bool) {
	if enabled {
		h.Flags |= mask
	} else {
		h.Flags &^= mask
	}
}
