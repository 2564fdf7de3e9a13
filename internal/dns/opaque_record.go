package dns

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// OpaqueRecord carries the rdata of a record type with no registered
// codec as an uninterpreted byte string. Unknown types decode, encode,
// and render (RFC 3597 generic form) without failing the message; this
// is graceful degradation, not an error.
type OpaqueRecord struct {
	H    RRHeader
	T    RecordType
	Data []byte
}

// Type returns the wire type code this record was decoded with.
func (r *OpaqueRecord) Type() RecordType { return r.T }

// Header returns the record header.
func (r *OpaqueRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *OpaqueRecord) SetHeader(h RRHeader) { r.H = h }

// UnpackRData copies the raw rdata bytes.
func (r *OpaqueRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	r.Data = append([]byte(nil), msg[*off:*off+rdlen]...)
	*off += rdlen
	return nil
}

// MarshalRData emits the raw bytes unchanged.
func (r *OpaqueRecord) MarshalRData(map[string]int, int) ([]byte, error) {
	return r.Data, nil
}

// RDataString renders the payload in RFC 3597 generic form: `\# len hex`.
func (r *OpaqueRecord) RDataString() string {
	if len(r.Data) == 0 {
		return `\# 0`
	}
	return fmt.Sprintf(`\# %d %s`, len(r.Data), strings.ToUpper(hex.EncodeToString(r.Data)))
}

// ParseRData accepts the RFC 3597 generic form emitted by RDataString.
func (r *OpaqueRecord) ParseRData(fields []string) error {
	if len(fields) < 2 || fields[0] != `\#` {
		return fmt.Errorf("%w: generic rdata must start with \\#", ErrMalformedWireData)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return fmt.Errorf("%w: bad generic rdata length %q", ErrMalformedWireData, fields[1])
	}
	data, err := hex.DecodeString(strings.Join(fields[2:], ""))
	if err != nil {
		return fmt.Errorf("%w: bad generic rdata hex: %v", ErrMalformedWireData, err)
	}
	if len(data) != n {
		return fmt.Errorf("%w: generic rdata length %d does not match %d bytes", ErrMalformedWireData, n, len(data))
	}
	r.Data = data
	return nil
}
