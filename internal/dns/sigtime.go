package dns

import (
	"fmt"
	"time"
)

// SIG timestamps are 32 bits on the wire but logically cover the
// 136-year range [1998-01-01, 1998-01-01 + 2^32 seconds), reaching past
// the 2106 Unix-epoch rollover. Wire values numerically below the 1998
// pivot are post-2106 times folded modulo 2^32.
//
// Presentation text (yyyymmddhhmmss) is converted through two further
// pivots so the arithmetic stays within time package range regardless of
// platform epoch width: years [2026,2082) fold back 56 years through the
// 2026 pivot, years >= 2082 fold back 84 years through the 2082 pivot.
// Both 56-year windows contain the same 14 leap days, so the first fold
// is exact. The 84-year fold lands on 2016, which has a Feb 29 while
// 2100 does not; times at or after the folded 2016-02-29 are adjusted by
// one day, symmetrically in both directions.
//
// All of the pivot arithmetic lives in this file; nothing else in the
// package may re-derive it.
const (
	sigEpoch1998 = 883612800  // 1998-01-01T00:00:00Z
	sigPivot2026 = 1767225600 // 2026-01-01T00:00:00Z
	sigPivot2082 = 3534451200 // 2082-01-01T00:00:00Z
	sigFold2082  = sigPivot2082 - sigEpoch1998

	sigFeb29Folded = 1456704000 // 2016-02-29T00:00:00Z, the folded image of the nonexistent 2100-02-29
)

// SerialBefore reports whether a precedes b under RFC 1982 32-bit
// serial number arithmetic. Equal values are not before each other;
// values more than 2^31 apart compare the "wrapped" way, which is what
// lets a 32-bit timestamp field order times on both sides of 2106.
func SerialBefore(a, b uint32) bool {
	return a != b && b-a < 1<<31
}

// SigTimeToUnix expands a 32-bit wire timestamp to a Unix time.
func SigTimeToUnix(w uint32) int64 {
	t := int64(w)
	if t < sigEpoch1998 {
		t += 1 << 32
	}
	return t
}

// SigTimeFromUnix compresses a Unix time into its 32-bit wire form.
// Times outside the representable 136-year window are rejected.
func SigTimeFromUnix(t int64) (uint32, error) {
	if t < sigEpoch1998 || t >= sigEpoch1998+(1<<32) {
		return 0, fmt.Errorf("%w: time %d outside representable signature window", ErrMalformedWireData, t)
	}
	return uint32(t), nil
}

// SigTimeString renders a Unix time as yyyymmddhhmmss in UTC.
func SigTimeString(t int64) string {
	var shift int
	switch {
	case t >= sigPivot2082:
		t -= sigFold2082
		if t >= sigFeb29Folded {
			t += 86400
		}
		shift = 84
	case t >= sigPivot2026:
		t -= sigPivot2026
		shift = 56
	}
	u := time.Unix(t, 0).UTC()
	return fmt.Sprintf("%04d%02d%02d%02d%02d%02d",
		u.Year()+shift, u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second())
}

// ParseSigTime parses a yyyymmddhhmmss timestamp (or, for backwards
// compatibility, a bare integer shorter than 12 digits taken as a raw
// Unix time) into a Unix time.
func ParseSigTime(s string) (int64, error) {
	if len(s) < 12 {
		var raw int64
		if _, err := fmt.Sscanf(s, "%d", &raw); err != nil {
			return 0, fmt.Errorf("%w: bad timestamp %q", ErrMalformedWireData, s)
		}
		return raw, nil
	}
	var y, mo, d, h, mi, sec int
	if _, err := fmt.Sscanf(s, "%4d%2d%2d%2d%2d%2d", &y, &mo, &d, &h, &mi, &sec); err != nil {
		return 0, fmt.Errorf("%w: bad timestamp %q", ErrMalformedWireData, s)
	}
	utc := func(year int) int64 {
		return time.Date(year, time.Month(mo), d, h, mi, sec, 0, time.UTC).Unix()
	}
	switch {
	case y >= 2082:
		z := utc(y - 84)
		if z >= sigFeb29Folded+86400 {
			// The folded calendar contains 2016-02-29; real 2100 does not.
			return z + sigFold2082 - 86400, nil
		}
		if z >= sigFeb29Folded {
			return 0, fmt.Errorf("%w: %q names the nonexistent 2100-02-29", ErrMalformedWireData, s)
		}
		return z + sigFold2082, nil
	case y >= 2026:
		return utc(y-56) + sigPivot2026, nil
	default:
		return utc(y), nil
	}
}
