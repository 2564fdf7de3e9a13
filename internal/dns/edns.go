package dns

import (
	"encoding/binary"
	"fmt"
	"strings"
)

func init() {
	RegisterType(TypeOPT, "OPT", func() Record { return NewOPTRecord() }, nil)
}

// DefaultUDPPayloadSize is the payload size advertised by a fresh OPT
// record. 1232 avoids IPv6 fragmentation on common paths.
const DefaultUDPPayloadSize = 1232

// OPTRecord is the EDNS pseudo-record (RFC 6891). It repurposes the
// record envelope: the owner name is root, the class field carries the
// requester's UDP payload size, and the ttl field packs extended
// rcode (bits 31-24), version (bits 23-16), and the DO bit (bit 15).
//
// The rdata is a sequence of (code:16, length:16, value) triples with
// no padding. Options behave as a mapping keyed by code but preserve
// insertion order so encoding is deterministic; duplicate codes can
// arrive off the wire and are kept as independent occurrences.
//
// Setting an option to an empty byte slice stores a valid zero-length
// value; removing an option is the separate DeleteOption call.
type OPTRecord struct {
	H       RRHeader
	options []ednsOption
}

type ednsOption struct {
	code  uint16
	value []byte
}

// NewOPTRecord creates an OPT record with the default payload size and
// no options.
func NewOPTRecord() *OPTRecord {
	return &OPTRecord{H: RRHeader{Class: DefaultUDPPayloadSize}}
}

// Type returns TypeOPT.
func (r *OPTRecord) Type() RecordType { return TypeOPT }

// Header returns the record envelope. Class and TTL hold the EDNS
// fields described on OPTRecord.
func (r *OPTRecord) Header() RRHeader { return r.H }

// SetHeader sets the record envelope.
func (r *OPTRecord) SetHeader(h RRHeader) { r.H = h }

// UDPSize returns the advertised UDP payload size.
func (r *OPTRecord) UDPSize() uint16 { return r.H.Class }

// SetUDPSize sets the advertised UDP payload size.
func (r *OPTRecord) SetUDPSize(size uint16) { r.H.Class = size }

// ExtendedRCode returns the upper 8 bits of the extended response code.
func (r *OPTRecord) ExtendedRCode() uint8 { return uint8(r.H.TTL >> 24) }

// Version returns the EDNS version.
func (r *OPTRecord) Version() uint8 { return uint8(r.H.TTL >> 16) }

// Do reports whether the DNSSEC OK bit is set.
func (r *OPTRecord) Do() bool { return r.H.TTL&0x8000 != 0 }

// SetDo sets or clears the DNSSEC OK bit.
func (r *OPTRecord) SetDo(enabled bool) {
	if enabled {
		r.H.TTL |= 0x8000
	} else {
		r.H.TTL &^= 0x8000
	}
}

// Option returns the value of the first occurrence of code.
func (r *OPTRecord) Option(code uint16) ([]byte, bool) {
	for _, o := range r.options {
		if o.code == code {
			return o.value, true
		}
	}
	return nil, false
}

// SetOption stores value under code, replacing the first existing
// occurrence in place or appending when absent. An empty (possibly nil)
// value is stored as a zero-length option, not a deletion.
func (r *OPTRecord) SetOption(code uint16, value []byte) {
	stored := append([]byte(nil), value...)
	if stored == nil {
		stored = []byte{}
	}
	for i, o := range r.options {
		if o.code == code {
			r.options[i].value = stored
			return
		}
	}
	r.options = append(r.options, ednsOption{code: code, value: stored})
}

// DeleteOption removes every occurrence of code, reporting whether any
// was present.
func (r *OPTRecord) DeleteOption(code uint16) bool {
	kept := r.options[:0]
	found := false
	for _, o := range r.options {
		if o.code == code {
			found = true
			continue
		}
		kept = append(kept, o)
	}
	r.options = kept
	return found
}

// Options returns the option codes in insertion order, duplicates
// included.
func (r *OPTRecord) Options() []uint16 {
	codes := make([]uint16, len(r.options))
	for i, o := range r.options {
		codes[i] = o.code
	}
	return codes
}

// OptionCount returns the number of stored options.
func (r *OPTRecord) OptionCount() int { return len(r.options) }

// OptionText renders the first occurrence of code through its
// registered interpreter (raw hex when none is registered).
func (r *OPTRecord) OptionText(code uint16) (string, error) {
	value, ok := r.Option(code)
	if !ok {
		return "", fmt.Errorf("%w: option %s not present", ErrMalformedWireData, OptionName(code))
	}
	return interpretOption(code, value)
}

// SetOptionText parses presentation text through the code's interpreter
// and stores the resulting bytes; text produced by OptionText stores
// back the identical wire bytes.
func (r *OPTRecord) SetOptionText(code uint16, text string) error {
	value, err := parseOptionText(code, text)
	if err != nil {
		return err
	}
	r.SetOption(code, value)
	return nil
}

// UnpackRData decodes the option triples.
func (r *OPTRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	end := *off + rdlen
	var options []ednsOption
	for *off < end {
		if *off+4 > end {
			return fmt.Errorf("%w: truncated EDNS option header", ErrMalformedWireData)
		}
		code := binary.BigEndian.Uint16(msg[*off : *off+2])
		length := int(binary.BigEndian.Uint16(msg[*off+2 : *off+4]))
		*off += 4
		if *off+length > end {
			return fmt.Errorf("%w: EDNS option %s overruns rdata", ErrMalformedWireData, OptionName(code))
		}
		options = append(options, ednsOption{
			code:  code,
			value: append([]byte(nil), msg[*off:*off+length]...),
		})
		*off += length
	}
	r.options = options
	return nil
}

// MarshalRData encodes the option triples in insertion order.
func (r *OPTRecord) MarshalRData(map[string]int, int) ([]byte, error) {
	var buf []byte
	for _, o := range r.options {
		if len(o.value) > 0xFFFF {
			return nil, fmt.Errorf("%w: EDNS option %s value too large", ErrMalformedWireData, OptionName(o.code))
		}
		buf = binary.BigEndian.AppendUint16(buf, o.code)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(o.value)))
		buf = append(buf, o.value...)
	}
	return buf, nil
}

// RDataString renders the options for diagnostics as "NAME: text"
// pairs. OPT has no zone-file presentation (RFC 6891 Section 5).
func (r *OPTRecord) RDataString() string {
	if len(r.options) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.options))
	for _, o := range r.options {
		text, err := interpretOption(o.code, o.value)
		if err != nil {
			text = Scalar(o.value).String()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", OptionName(o.code), text))
	}
	return strings.Join(parts, " ; ")
}

// ParseRData rejects zone-file input: OPT is a per-message pseudo-record
// with no presentation format.
func (r *OPTRecord) ParseRData([]string) error {
	return fmt.Errorf("%w: OPT has no presentation format", ErrMalformedWireData)
}
