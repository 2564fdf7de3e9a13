package dns

import (
	"encoding/binary"
	"fmt"
)

// Question represents a DNS question section entry (RFC 1035 Section 4.1.2).
type Question struct {
	Name  Name
	Type  RecordType
	Class RecordClass
}

// appendWire appends the question's wire encoding to buf, recording the
// question name in the shared compression table.
func (q Question) appendWire(buf []byte, cmap map[string]int) ([]byte, error) {
	buf, err := q.Name.appendWire(buf, 0, cmap)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(q.Type))
	buf = binary.BigEndian.AppendUint16(buf, uint16(q.Class))
	return buf, nil
}

// ParseQuestion parses a question from the message at the given offset.
// It advances *off past the parsed question on success.
func ParseQuestion(msg []byte, off *int) (Question, error) {
	name, err := ParseName(msg, off)
	if err != nil {
		return Question{}, err
	}
	if *off+4 > len(msg) {
		return Question{}, fmt.Errorf("%w: unexpected EOF while reading question", ErrMalformedWireData)
	}
	q := Question{
		Name:  name,
		Type:  RecordType(binary.BigEndian.Uint16(msg[*off : *off+2])),
		Class: RecordClass(binary.BigEndian.Uint16(msg[*off+2 : *off+4])),
	}
	*off += 4
	return q, nil
}

// String renders the question in presentation format.
func (q Question) String() string {
	return fmt.Sprintf("%s\tIN\t%s", q.Name.String(), TypeMnemonic(q.Type))
}
