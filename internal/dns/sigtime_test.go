package dns_test

import (
	"testing"

	"github.com/ldevaal/wiredns/internal/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	epoch1998 = int64(883612800)  // 1998-01-01T00:00:00Z
	pivot2026 = int64(1767225600) // 2026-01-01T00:00:00Z
	pivot2082 = int64(3534451200) // 2082-01-01T00:00:00Z
)

func TestSerialBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b uint32
		want bool
	}{
		{name: "simple-before", a: 10, b: 20, want: true},
		{name: "simple-after", a: 20, b: 10, want: false},
		{name: "equal", a: 42, b: 42, want: false},
		{name: "wrap-before", a: 0xFFFFFFF0, b: 5, want: true},
		{name: "wrap-after", a: 5, b: 0xFFFFFFF0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dns.SerialBefore(tt.a, tt.b))
		})
	}
}

func TestSigTimeWireRange(t *testing.T) {
	// Values below the 1998 pivot are post-2106 times folded mod 2^32.
	assert.Equal(t, epoch1998, dns.SigTimeToUnix(uint32(epoch1998)))
	assert.Equal(t, int64(100)+(1<<32), dns.SigTimeToUnix(100))

	w, err := dns.SigTimeFromUnix(epoch1998)
	require.NoError(t, err)
	assert.Equal(t, uint32(epoch1998), w)

	w, err = dns.SigTimeFromUnix(int64(100) + (1 << 32))
	require.NoError(t, err)
	assert.Equal(t, uint32(100), w)

	_, err = dns.SigTimeFromUnix(epoch1998 - 1)
	require.ErrorIs(t, err, dns.ErrMalformedWireData)
	_, err = dns.SigTimeFromUnix(epoch1998 + (1 << 32))
	require.ErrorIs(t, err, dns.ErrMalformedWireData)
}

func TestSigTimeTextRoundTrip(t *testing.T) {
	tests := []struct {
		text string
		unix int64
	}{
		{text: "19980101000000", unix: epoch1998},
		{text: "20251231235959", unix: pivot2026 - 1},
		{text: "20260101000000", unix: pivot2026},
		{text: "20260321120000", unix: pivot2026 + 79*86400 + 12*3600},
		{text: "20811231235959", unix: pivot2082 - 1},
		{text: "20820101000000", unix: pivot2082},
		{text: "21000228235959", unix: 0}, // checked by identity only
		{text: "21000301000000", unix: 0},
		{text: "21061231235959", unix: 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			u, err := dns.ParseSigTime(tt.text)
			require.NoError(t, err)
			if tt.unix != 0 {
				assert.Equal(t, tt.unix, u)
			}
			// The fold must be the identity on valid dates, both ways.
			assert.Equal(t, tt.text, dns.SigTimeString(u))

			// And survive the 32-bit wire form.
			w, err := dns.SigTimeFromUnix(u)
			require.NoError(t, err)
			assert.Equal(t, u, dns.SigTimeToUnix(w))
		})
	}
}

func TestSigTimeRejectsNonexistentFeb29(t *testing.T) {
	// 2100 is not a leap year; its folded image (2016) is.
	_, err := dns.ParseSigTime("21000229000000")
	require.ErrorIs(t, err, dns.ErrMalformedWireData)
	_, err = dns.ParseSigTime("21000229235959")
	require.ErrorIs(t, err, dns.ErrMalformedWireData)
}

func TestSigTimeFeb29SkipIsSymmetric(t *testing.T) {
	// The last second of 2100-02-28 and the first of 2100-03-01 must be
	// adjacent on the unix timeline even though the folded calendar has
	// an extra day between them.
	before, err := dns.ParseSigTime("21000228235959")
	require.NoError(t, err)
	after, err := dns.ParseSigTime("21000301000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1), after-before)
}

func TestSigTimeBareIntegerFallback(t *testing.T) {
	u, err := dns.ParseSigTime("883612800")
	require.NoError(t, err)
	assert.Equal(t, epoch1998, u)

	_, err = dns.ParseSigTime("not-a-time")
	require.ErrorIs(t, err, dns.ErrMalformedWireData)
}
