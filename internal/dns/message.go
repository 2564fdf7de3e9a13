package dns

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"strings"

	"github.com/ldevaal/wiredns/internal/helpers"
)

// Message represents a complete DNS message (RFC 1035 Section 4.1):
// header plus the question, answer, authority, and additional sections.
//
// The header's count fields are recomputed from the section slices at
// encode time, so callers manipulate the slices directly and never
// touch the counts.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Additionals []Record
}

// NewQuery builds a query message with a random transaction ID, the RD
// flag set, and a single question.
func NewQuery(name Name, qtype RecordType, qclass RecordClass) *Message {
	m := &Message{
		Header: Header{ID: uint16(rand.Uint32()), Flags: RDFlag},
	}
	m.SetQuestion(name, qtype, qclass)
	return m
}

// SetQuestion replaces the question section with a single entry.
func (m *Message) SetQuestion(name Name, qtype RecordType, qclass RecordClass) {
	m.Questions = []Question{{Name: name, Type: qtype, Class: qclass}}
}

// OPT returns the message's EDNS record from the additional section,
// or nil when none is attached.
func (m *Message) OPT() *OPTRecord {
	for _, r := range m.Additionals {
		if opt, ok := r.(*OPTRecord); ok {
			return opt
		}
	}
	return nil
}

// Marshal encodes the message to wire format. All names across all
// sections share one compression table, so later owner names and
// compressible rdata names point back at earlier occurrences.
//
// A SIG record in the final additional position that still awaits
// deferred signing is handled here: the message is encoded without it,
// the signature is computed over those bytes (SIG(0), RFC 2931), and
// the signed record is then appended with the additional count patched
// to include it.
func (m *Message) Marshal() ([]byte, error) {
	additionals := m.Additionals
	var pending *SIGRecord
	if n := len(additionals); n > 0 {
		if sig, ok := additionals[n-1].(*SIGRecord); ok && sig.Pending() {
			pending = sig
			additionals = additionals[:n-1]
		}
	}

	h := m.Header
	h.QDCount = helpers.ClampIntToUint16(len(m.Questions))
	h.ANCount = helpers.ClampIntToUint16(len(m.Answers))
	h.NSCount = helpers.ClampIntToUint16(len(m.Authorities))
	h.ARCount = helpers.ClampIntToUint16(len(additionals))

	buf := h.Marshal()
	cmap := map[string]int{}
	var err error
	for _, q := range m.Questions {
		if buf, err = q.appendWire(buf, cmap); err != nil {
			return nil, err
		}
	}
	for _, section := range [][]Record{m.Answers, m.Authorities, additionals} {
		for _, r := range section {
			if buf, err = appendRecord(buf, cmap, r); err != nil {
				return nil, err
			}
		}
	}

	if pending != nil {
		if err := pending.Sign(buf); err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint16(buf[10:12], h.ARCount+1)
		if buf, err = appendRecord(buf, cmap, pending); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ParseMessage decodes a wire-format message. Section counts from the
// header bound the walk; any overrun of the actual buffer fails the
// whole decode, leaving no partially-populated message behind.
func ParseMessage(msg []byte) (*Message, error) {
	off := 0
	h, err := ParseHeader(msg, &off)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: h}
	for i := 0; i < int(h.QDCount); i++ {
		q, err := ParseQuestion(msg, &off)
		if err != nil {
			return nil, err
		}
		m.Questions = append(m.Questions, q)
	}
	sections := []struct {
		count uint16
		dst   *[]Record
	}{
		{h.ANCount, &m.Answers},
		{h.NSCount, &m.Authorities},
		{h.ARCount, &m.Additionals},
	}
	for _, s := range sections {
		for i := 0; i < int(s.count); i++ {
			r, err := ParseRecord(msg, &off)
			if err != nil {
				return nil, err
			}
			*s.dst = append(*s.dst, r)
		}
	}
	if off != len(msg) {
		return nil, fmt.Errorf("%w: %d trailing bytes after message", ErrMalformedWireData, len(msg)-off)
	}
	return m, nil
}

// String renders the message dig-style for logs and CLI output.
func (m *Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, ";; id %d, opcode %d, rcode %d, flags %#04x\n",
		m.Header.ID, m.Header.Opcode(), m.Header.RCode(), m.Header.Flags)
	fmt.Fprintf(&b, ";; QUESTION (%d)\n", len(m.Questions))
	for _, q := range m.Questions {
		fmt.Fprintf(&b, ";%s\n", q.String())
	}
	sections := []struct {
		name    string
		records []Record
	}{
		{"ANSWER", m.Answers},
		{"AUTHORITY", m.Authorities},
		{"ADDITIONAL", m.Additionals},
	}
	for _, s := range sections {
		fmt.Fprintf(&b, ";; %s (%d)\n", s.name, len(s.records))
		for _, r := range s.records {
			b.WriteString(RecordString(r))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
