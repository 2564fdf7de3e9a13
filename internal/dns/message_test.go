package dns_test

import (
	"net/netip"
	"testing"

	"github.com/ldevaal/wiredns/internal/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := dns.NewQuery(dns.MustName("host.example.com"), dns.TypeA, dns.ClassIN)
	msg.Header.Flags |= dns.QRFlag | dns.AAFlag
	msg.Answers = append(msg.Answers,
		dns.NewARecord(header("host.example.com"), netip.MustParseAddr("192.0.2.1")),
	)
	msg.Authorities = append(msg.Authorities,
		dns.NewNSRecord(header("example.com"), dns.MustName("ns1.example.com")),
		dns.NewNSRecord(header("example.com"), dns.MustName("ns2.example.com")),
	)
	msg.Additionals = append(msg.Additionals,
		dns.NewARecord(header("ns1.example.com"), netip.MustParseAddr("192.0.2.53")),
	)

	wire, err := msg.Marshal()
	require.NoError(t, err)

	parsed, err := dns.ParseMessage(wire)
	require.NoError(t, err)
	assert.Equal(t, msg.Header.ID, parsed.Header.ID)
	assert.True(t, parsed.Header.IsResponse())
	assert.True(t, parsed.Header.Authoritative())
	require.Len(t, parsed.Questions, 1)
	assert.True(t, parsed.Questions[0].Name.Equal(dns.MustName("host.example.com")))
	require.Len(t, parsed.Answers, 1)
	require.Len(t, parsed.Authorities, 2)
	require.Len(t, parsed.Additionals, 1)
	assert.Equal(t, "192.0.2.1", parsed.Answers[0].RDataString())
	assert.True(t, parsed.Authorities[1].(*dns.NameRecord).Target.Equal(dns.MustName("ns2.example.com")))
}

func TestMessageCompressionShrinksAndPreservesMeaning(t *testing.T) {
	msg := dns.NewQuery(dns.MustName("host.example.com"), dns.TypeNS, dns.ClassIN)
	for _, target := range []string{"ns1.example.com", "ns2.example.com", "ns3.example.com"} {
		msg.Answers = append(msg.Answers, dns.NewNSRecord(header("example.com"), dns.MustName(target)))
	}

	wire, err := msg.Marshal()
	require.NoError(t, err)

	// Sum of the standalone (uncompressed) encodings.
	uncompressed := dns.HeaderSize + dns.MustName("host.example.com").EncodedLen() + 4
	for _, r := range msg.Answers {
		standalone, err := dns.MarshalRecord(r)
		require.NoError(t, err)
		uncompressed += len(standalone)
	}
	assert.Less(t, len(wire), uncompressed, "shared suffixes must compress")

	parsed, err := dns.ParseMessage(wire)
	require.NoError(t, err)
	require.Len(t, parsed.Answers, 3)
	for i, target := range []string{"ns1.example.com", "ns2.example.com", "ns3.example.com"} {
		ns := parsed.Answers[i].(*dns.NameRecord)
		assert.True(t, ns.Header().Name.Equal(dns.MustName("example.com")))
		assert.True(t, ns.Target.Equal(dns.MustName(target)))
	}
}

func TestMessageCompressionIsCaseInsensitive(t *testing.T) {
	msg := dns.NewQuery(dns.MustName("EXAMPLE.com"), dns.TypeA, dns.ClassIN)
	msg.Answers = append(msg.Answers,
		dns.NewARecord(header("example.COM"), netip.MustParseAddr("192.0.2.1")),
	)
	wire, err := msg.Marshal()
	require.NoError(t, err)

	parsed, err := dns.ParseMessage(wire)
	require.NoError(t, err)
	assert.True(t, parsed.Answers[0].Header().Name.Equal(dns.MustName("example.com")))
}

func TestParseMessageRejectsTrailingBytes(t *testing.T) {
	msg := dns.NewQuery(dns.MustName("example.com"), dns.TypeA, dns.ClassIN)
	wire, err := msg.Marshal()
	require.NoError(t, err)

	_, err = dns.ParseMessage(append(wire, 0xFF))
	require.ErrorIs(t, err, dns.ErrMalformedWireData)
}

func TestParseMessageRejectsCountOverrun(t *testing.T) {
	msg := dns.NewQuery(dns.MustName("example.com"), dns.TypeA, dns.ClassIN)
	wire, err := msg.Marshal()
	require.NoError(t, err)
	wire[7] = 1 // claim one answer that is not present

	_, err = dns.ParseMessage(wire)
	require.ErrorIs(t, err, dns.ErrMalformedWireData)
}

func TestMessageOPTAccessor(t *testing.T) {
	msg := dns.NewQuery(dns.MustName("example.com"), dns.TypeA, dns.ClassIN)
	assert.Nil(t, msg.OPT())

	opt := dns.NewOPTRecord()
	opt.SetDo(true)
	msg.Additionals = append(msg.Additionals, opt)

	got := msg.OPT()
	require.NotNil(t, got)
	assert.True(t, got.Do())
	assert.Equal(t, uint16(dns.DefaultUDPPayloadSize), got.UDPSize())
}
