package dns

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/ldevaal/wiredns/internal/helpers"
)

// RRHeader contains common metadata for DNS resource records.
// This is distinct from Header which is the DNS message header.
type RRHeader struct {
	Name  Name
	Class uint16
	TTL   uint32
}

// NewRRHeader creates a new resource record header.
func NewRRHeader(name Name, class RecordClass, ttl uint32) RRHeader {
	return RRHeader{Name: name, Class: uint16(class), TTL: ttl}
}

// Record is the interface every DNS resource record implements. A type
// becomes decodable by registering a factory for its type code; the
// envelope parser and the Message codec never change when a record kind
// is added.
type Record interface {
	// Type returns the DNS record type code.
	Type() RecordType

	// Header returns the record's envelope metadata.
	Header() RRHeader

	// SetHeader sets the record's envelope metadata.
	SetHeader(h RRHeader)

	// UnpackRData decodes the type-specific payload from msg starting at
	// *off, which it advances by exactly rdlen bytes on success. msg is
	// the whole message so compressed names inside rdata resolve.
	UnpackRData(msg []byte, off *int, rdlen int) error

	// MarshalRData encodes the type-specific payload. cmap and off carry
	// the per-message compression state: off is the absolute message
	// offset at which the rdata will be placed. Both may be nil/zero for
	// standalone encoding.
	MarshalRData(cmap map[string]int, off int) ([]byte, error)

	// RDataString renders the payload in presentation format.
	RDataString() string

	// ParseRData populates the payload from presentation-format fields.
	ParseRData(fields []string) error
}

// codec binds a record type code to its factory, mnemonic, and an
// optional ordering used when a same-owner set of that type needs a
// canonical or preference-based sort.
type codec struct {
	mnemonic  string
	newRecord func() Record
	less      func(a, b Record) bool
}

// typeRegistry is populated by RegisterType during package init and is
// read-only afterwards, making unsynchronized concurrent lookups safe.
var (
	typeRegistry     = map[RecordType]codec{}
	mnemonicRegistry = map[string]RecordType{}
)

// RegisterType installs the codec for a record type. It must only be
// called during package initialization, before any concurrent use.
func RegisterType(rt RecordType, mnemonic string, newRecord func() Record, less func(a, b Record) bool) {
	if _, dup := typeRegistry[rt]; dup {
		panic(fmt.Sprintf("dns: duplicate registration for type %d", rt))
	}
	typeRegistry[rt] = codec{mnemonic: mnemonic, newRecord: newRecord, less: less}
	mnemonicRegistry[mnemonic] = rt
}

// TypeMnemonic returns the registered mnemonic for a type code, or the
// RFC 3597 "TYPEnnn" form for unregistered codes.
func TypeMnemonic(rt RecordType) string {
	if c, ok := typeRegistry[rt]; ok {
		return c.mnemonic
	}
	switch rt {
	case TypeAXFR:
		return "AXFR"
	case TypeANY:
		return "ANY"
	}
	return fmt.Sprintf("TYPE%d", rt)
}

// TypeFromMnemonic resolves a mnemonic (or "TYPEnnn") to a type code.
func TypeFromMnemonic(s string) (RecordType, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if rt, ok := mnemonicRegistry[s]; ok {
		return rt, true
	}
	switch s {
	case "AXFR":
		return TypeAXFR, true
	case "ANY":
		return TypeANY, true
	}
	if rest, ok := strings.CutPrefix(s, "TYPE"); ok {
		var n int
		if _, err := fmt.Sscanf(rest, "%d", &n); err == nil && n >= 0 && n <= 0xFFFF {
			return RecordType(n), true
		}
	}
	return 0, false
}

// newRecordForType returns a fresh record of the registered concrete
// type, or an OpaqueRecord when the type code is unregistered. Unknown
// types are not an error: they round-trip as an opaque payload.
func newRecordForType(rt RecordType) Record {
	if c, ok := typeRegistry[rt]; ok {
		return c.newRecord()
	}
	return &OpaqueRecord{T: rt}
}

// ParseRecord parses one resource record from wire format, advancing
// *off past it on success. The rdata decoder must consume exactly the
// rdlength announced by the envelope; any mismatch fails the decode.
func ParseRecord(msg []byte, off *int) (Record, error) {
	name, err := ParseName(msg, off)
	if err != nil {
		return nil, err
	}
	if *off+10 > len(msg) {
		return nil, fmt.Errorf("%w: unexpected EOF while reading record envelope", ErrMalformedWireData)
	}
	rt := RecordType(binary.BigEndian.Uint16(msg[*off : *off+2]))
	class := binary.BigEndian.Uint16(msg[*off+2 : *off+4])
	ttl := binary.BigEndian.Uint32(msg[*off+4 : *off+8])
	rdlen := int(binary.BigEndian.Uint16(msg[*off+8 : *off+10]))
	*off += 10
	start := *off
	if start+rdlen > len(msg) {
		return nil, fmt.Errorf("%w: rdata overruns message", ErrMalformedWireData)
	}

	r := newRecordForType(rt)
	r.SetHeader(RRHeader{Name: name, Class: class, TTL: ttl})
	if err := r.UnpackRData(msg, off, rdlen); err != nil {
		return nil, err
	}
	if *off != start+rdlen {
		return nil, fmt.Errorf("%w: %s rdata length mismatch (%d != %d)",
			ErrMalformedWireData, TypeMnemonic(rt), *off-start, rdlen)
	}
	return r, nil
}

// appendRecord appends a record's wire form to buf, threading the
// per-message name compression table. The rdlength prefix is computed
// from the actual encoded rdata byte count.
func appendRecord(buf []byte, cmap map[string]int, r Record) ([]byte, error) {
	buf, err := r.Header().Name.appendWire(buf, 0, cmap)
	if err != nil {
		return nil, err
	}
	h := r.Header()
	buf = binary.BigEndian.AppendUint16(buf, uint16(r.Type()))
	buf = binary.BigEndian.AppendUint16(buf, h.Class)
	buf = binary.BigEndian.AppendUint32(buf, h.TTL)

	rdata, err := r.MarshalRData(cmap, len(buf)+2)
	if err != nil {
		return nil, err
	}
	if len(rdata) > 0xFFFF {
		return nil, fmt.Errorf("%w: rdata too large (%d bytes)", ErrMalformedWireData, len(rdata))
	}
	buf = binary.BigEndian.AppendUint16(buf, helpers.ClampIntToUint16(len(rdata)))
	return append(buf, rdata...), nil
}

// MarshalRecord converts a single record to wire format without message
// compression context.
func MarshalRecord(r Record) ([]byte, error) {
	return appendRecord(nil, nil, r)
}

// SortRecords stably sorts a same-owner record set using the ordering
// registered for its type (for MX, ascending preference). Types without
// a registered ordering keep their insertion order.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Type() != records[j].Type() {
			return false
		}
		c, ok := typeRegistry[records[i].Type()]
		if !ok || c.less == nil {
			return false
		}
		return c.less(records[i], records[j])
	})
}

// RecordString renders a record as a presentation-format line.
func RecordString(r Record) string {
	h := r.Header()
	return fmt.Sprintf("%s\t%d\tIN\t%s\t%s",
		h.Name.String(), h.TTL, TypeMnemonic(r.Type()), r.RDataString())
}
