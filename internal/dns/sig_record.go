package dns

import (
	"crypto"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func init() {
	RegisterType(TypeSIG, "SIG", func() Record { return &SIGRecord{} }, nil)
}

// timeNow is replaced in tests to pin the verification clock.
var timeNow = time.Now

// DefaultSIGValidity is the validity window applied when neither an
// expiration time nor an explicit window is supplied.
const DefaultSIGValidity = 10 * time.Minute

// SIGRecord represents a transaction signature (RFC 2535, RFC 2931).
// With TypeCovered zero it is a SIG(0) record authenticating an entire
// message rather than a zone's records.
//
// Rdata layout: typecovered(16) algorithm(8) labels(8) orgttl(32)
// expiration(32) inception(32) keytag(16) signer(uncompressed name)
// signature.
//
// Lifecycle: a record created without data holds a deferred one-shot
// signing key and is UNSIGNED; the first signing attempt (explicit or
// triggered by message encoding) consumes the key and transitions to
// SIGNED, which is terminal; later encodes reuse the cached signature
// bytes. The byte buffer being signed or verified is always a borrowed
// parameter of the single call that needs it, never retained.
type SIGRecord struct {
	H           RRHeader
	TypeCovered RecordType
	Algorithm   uint8
	Labels      uint8
	OrigTTL     uint32
	Expiration  uint32 // 32-bit wire timestamp, see sigtime.go
	Inception   uint32
	KeyTag      uint16
	SignerName  Name
	Signature   []byte

	signKey crypto.PrivateKey // deferred one-shot key; nil once consumed
}

// SIGOptions configures NewSIG. Zero values select the defaults noted
// on each field.
type SIGOptions struct {
	Algorithm  uint8
	KeyTag     uint16
	SignerName Name
	SigIn      int64         // inception as Unix time; zero means now
	SigEx      int64         // expiration as Unix time; zero means SigIn + SigVal
	SigVal     time.Duration // validity window; truncated to whole minutes; zero means 10m
}

// NewSIG creates a SIG record over data with the given private key.
//
// When data is non-empty the record is signed immediately. When data is
// empty the record is marked for deferred signing: the caller intends
// to attach it to an outgoing message and have encoding sign over the
// final message bytes; the key is consumed the first time signing
// actually occurs and never reused.
func NewSIG(data []byte, key crypto.PrivateKey, opts SIGOptions) (*SIGRecord, error) {
	if !AlgorithmSupported(opts.Algorithm) {
		return nil, fmt.Errorf("%w: algorithm %d", ErrSignatureAlgorithmUnsupported, opts.Algorithm)
	}
	sigin := opts.SigIn
	if sigin == 0 {
		sigin = timeNow().Unix()
	}
	sigex := opts.SigEx
	if sigex == 0 {
		validity := opts.SigVal
		if validity == 0 {
			validity = DefaultSIGValidity
		}
		sigex = sigin + 60*int64(validity.Minutes())
	}
	inception, err := SigTimeFromUnix(sigin)
	if err != nil {
		return nil, err
	}
	expiration, err := SigTimeFromUnix(sigex)
	if err != nil {
		return nil, err
	}

	s := &SIGRecord{
		H:          RRHeader{Class: uint16(ClassANY)},
		Algorithm:  opts.Algorithm,
		Inception:  inception,
		Expiration: expiration,
		KeyTag:     opts.KeyTag,
		SignerName: opts.SignerName,
		signKey:    key,
	}
	if len(data) > 0 {
		if err := s.Sign(data); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Type returns TypeSIG.
func (r *SIGRecord) Type() RecordType { return TypeSIG }

// Header returns the record header.
func (r *SIGRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *SIGRecord) SetHeader(h RRHeader) { r.H = h }

// IsSigned reports whether signature bytes are cached (the SIGNED,
// terminal state).
func (r *SIGRecord) IsSigned() bool { return len(r.Signature) > 0 }

// Pending reports whether a deferred signing key is still held.
func (r *SIGRecord) Pending() bool { return r.signKey != nil && !r.IsSigned() }

// sigPrefix packs the rdata fields in wire order with the signature
// omitted; this prefix followed by the covered data forms the signed
// preimage. The signer name is never compressed.
func (r *SIGRecord) sigPrefix() ([]byte, error) {
	buf := binary.BigEndian.AppendUint16(nil, uint16(r.TypeCovered))
	buf = append(buf, r.Algorithm, r.Labels)
	buf = binary.BigEndian.AppendUint32(buf, r.OrigTTL)
	buf = binary.BigEndian.AppendUint32(buf, r.Expiration)
	buf = binary.BigEndian.AppendUint32(buf, r.Inception)
	buf = binary.BigEndian.AppendUint16(buf, r.KeyTag)
	return r.SignerName.appendWire(buf, 0, nil)
}

// Sign computes the signature over the supplied bytes, consuming the
// deferred key. Signing occurs exactly once: a SIGNED record rejects
// further attempts and a record whose key was already consumed cannot
// sign again.
func (r *SIGRecord) Sign(data []byte) error {
	if r.IsSigned() {
		return fmt.Errorf("%w: record already signed", ErrSignatureVerificationFailed)
	}
	if r.signKey == nil {
		return fmt.Errorf("%w: signing key already consumed", ErrSignatureVerificationFailed)
	}
	alg, ok := sigAlgorithms[r.Algorithm]
	if !ok {
		return fmt.Errorf("%w: algorithm %d", ErrSignatureAlgorithmUnsupported, r.Algorithm)
	}
	prefix, err := r.sigPrefix()
	if err != nil {
		return err
	}
	preimage := append(prefix, data...)
	sig, err := alg.sign(r.signKey, preimage)
	if err != nil {
		return err
	}
	r.Signature = sig
	r.signKey = nil
	return nil
}

// Verify checks the signature over data against one or more candidate
// keys. Keys whose algorithm or key tag do not match are skipped;
// verification short-circuits on the first key that validates. After a
// cryptographic success the current time must fall within
// [inception, expiration] under 32-bit serial ordering, both bounds
// inclusive. When every key fails, the per-key reasons are accumulated
// into the returned error.
func (r *SIGRecord) Verify(data []byte, keys ...*KEYRecord) error {
	if !r.IsSigned() {
		return fmt.Errorf("%w: record carries no signature", ErrSignatureVerificationFailed)
	}
	alg, ok := sigAlgorithms[r.Algorithm]
	if !ok {
		return fmt.Errorf("%w: algorithm %d", ErrSignatureAlgorithmUnsupported, r.Algorithm)
	}
	prefix, err := r.sigPrefix()
	if err != nil {
		return err
	}
	preimage := append(prefix, data...)

	var reasons []string
	for i, key := range keys {
		if key.Algorithm != r.Algorithm {
			reasons = append(reasons, fmt.Sprintf("key %d: algorithm %d does not cover %d", i, key.Algorithm, r.Algorithm))
			continue
		}
		if tag := key.KeyTag(); tag != r.KeyTag {
			reasons = append(reasons, fmt.Sprintf("key %d: keytag %d does not match %d", i, tag, r.KeyTag))
			continue
		}
		if err := alg.verify(key, preimage, r.Signature); err != nil {
			reasons = append(reasons, fmt.Sprintf("key %d: %v", i, err))
			continue
		}
		return r.checkValidityWindow()
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no candidate keys supplied")
	}
	return fmt.Errorf("%w: %s", ErrSignatureVerificationFailed, strings.Join(reasons, "; "))
}

// checkValidityWindow enforces inception <= now <= expiration under
// RFC 1982 serial ordering, so windows spanning the 2106 rollover
// compare correctly.
func (r *SIGRecord) checkValidityWindow() error {
	now := uint32(timeNow().Unix())
	if SerialBefore(now, r.Inception) {
		return fmt.Errorf("%w: window opens %s", ErrSignatureNotYetValid, SigTimeString(SigTimeToUnix(r.Inception)))
	}
	if SerialBefore(r.Expiration, now) {
		return fmt.Errorf("%w: window closed %s", ErrSignatureExpired, SigTimeString(SigTimeToUnix(r.Expiration)))
	}
	return nil
}

// VerifyMessage checks a SIG(0) signature against the complete wire
// message that carried it. The preimage is reconstructed from the
// borrowed buffer: the header with this SIG excluded from the
// additional-section count, followed by all sections up to the SIG
// record itself. The buffer is not retained.
func (r *SIGRecord) VerifyMessage(msgBytes []byte, keys ...*KEYRecord) error {
	image, err := sig0MessageImage(msgBytes)
	if err != nil {
		return err
	}
	return r.Verify(image, keys...)
}

// sig0MessageImage rebuilds the signed portion of a wire message: the
// 12-byte header with ARCount decremented, then everything up to the
// start of the trailing SIG record.
func sig0MessageImage(msg []byte) ([]byte, error) {
	off := 0
	h, err := ParseHeader(msg, &off)
	if err != nil {
		return nil, err
	}
	if h.ARCount == 0 {
		return nil, fmt.Errorf("%w: message carries no additional records", ErrSignatureVerificationFailed)
	}

	skipName := func() error {
		_, err := ParseName(msg, &off)
		return err
	}
	for i := 0; i < int(h.QDCount); i++ {
		if err := skipName(); err != nil {
			return nil, err
		}
		off += 4
	}
	records := int(h.ANCount) + int(h.NSCount) + int(h.ARCount)
	sigStart := 0
	var sigType RecordType
	for i := 0; i < records; i++ {
		start := off
		if err := skipName(); err != nil {
			return nil, err
		}
		if off+10 > len(msg) {
			return nil, fmt.Errorf("%w: truncated record envelope", ErrMalformedWireData)
		}
		rt := RecordType(binary.BigEndian.Uint16(msg[off : off+2]))
		rdlen := int(binary.BigEndian.Uint16(msg[off+8 : off+10]))
		off += 10 + rdlen
		if off > len(msg) {
			return nil, fmt.Errorf("%w: rdata overruns message", ErrMalformedWireData)
		}
		sigStart, sigType = start, rt
	}
	if sigType != TypeSIG {
		return nil, fmt.Errorf("%w: final additional record is %s, not SIG", ErrSignatureVerificationFailed, TypeMnemonic(sigType))
	}

	image := make([]byte, 0, sigStart)
	hdr := h
	hdr.ARCount--
	image = append(image, hdr.Marshal()...)
	return append(image, msg[HeaderSize:sigStart]...), nil
}

// UnpackRData decodes the signature rdata.
func (r *SIGRecord) UnpackRData(msg []byte, off *int, rdlen int) error {
	start := *off
	if rdlen < 18 {
		return fmt.Errorf("%w: SIG rdata too short", ErrMalformedWireData)
	}
	r.TypeCovered = RecordType(binary.BigEndian.Uint16(msg[*off : *off+2]))
	r.Algorithm = msg[*off+2]
	r.Labels = msg[*off+3]
	r.OrigTTL = binary.BigEndian.Uint32(msg[*off+4 : *off+8])
	r.Expiration = binary.BigEndian.Uint32(msg[*off+8 : *off+12])
	r.Inception = binary.BigEndian.Uint32(msg[*off+12 : *off+16])
	r.KeyTag = binary.BigEndian.Uint16(msg[*off+16 : *off+18])
	*off += 18
	signer, err := ParseName(msg, off)
	if err != nil {
		return err
	}
	if *off-start > rdlen {
		return fmt.Errorf("%w: SIG signer name overruns rdata", ErrMalformedWireData)
	}
	r.SignerName = signer
	r.Signature = append([]byte(nil), msg[*off:start+rdlen]...)
	*off = start + rdlen
	return nil
}

// MarshalRData encodes the signature rdata. The cached signature bytes
// are reused; a record still awaiting deferred signing cannot encode
// here because the enclosing message bytes are not in scope; message
// encoding signs it first (see Message.Marshal).
func (r *SIGRecord) MarshalRData(map[string]int, int) ([]byte, error) {
	if !r.IsSigned() && r.signKey != nil {
		return nil, fmt.Errorf("%w: deferred SIG must be signed through message encoding", ErrSignatureVerificationFailed)
	}
	prefix, err := r.sigPrefix()
	if err != nil {
		return nil, err
	}
	return append(prefix, r.Signature...), nil
}

// RDataString renders the signature fields with presentation-format
// timestamps and a base64 signature.
func (r *SIGRecord) RDataString() string {
	return fmt.Sprintf("%s %d %d %d %s %s %d %s %s",
		TypeMnemonic(r.TypeCovered), r.Algorithm, r.Labels, r.OrigTTL,
		SigTimeString(SigTimeToUnix(r.Expiration)),
		SigTimeString(SigTimeToUnix(r.Inception)),
		r.KeyTag, r.SignerName.String(),
		base64.StdEncoding.EncodeToString(r.Signature))
}

// ParseRData parses the presentation form emitted by RDataString.
func (r *SIGRecord) ParseRData(fields []string) error {
	if len(fields) < 9 {
		return fmt.Errorf("%w: SIG takes 9 fields", ErrMalformedWireData)
	}
	tc, ok := TypeFromMnemonic(fields[0])
	if !ok && fields[0] != "TYPE0" {
		return fmt.Errorf("%w: unknown type covered %q", ErrMalformedWireData, fields[0])
	}
	alg, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return fmt.Errorf("%w: bad SIG algorithm %q", ErrMalformedWireData, fields[1])
	}
	labels, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil {
		return fmt.Errorf("%w: bad SIG labels %q", ErrMalformedWireData, fields[2])
	}
	ttl, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: bad SIG original ttl %q", ErrMalformedWireData, fields[3])
	}
	exTime, err := ParseSigTime(fields[4])
	if err != nil {
		return err
	}
	inTime, err := ParseSigTime(fields[5])
	if err != nil {
		return err
	}
	expiration, err := SigTimeFromUnix(exTime)
	if err != nil {
		return err
	}
	inception, err := SigTimeFromUnix(inTime)
	if err != nil {
		return err
	}
	tag, err := strconv.ParseUint(fields[6], 10, 16)
	if err != nil {
		return fmt.Errorf("%w: bad SIG keytag %q", ErrMalformedWireData, fields[6])
	}
	if err := r.SignerName.Set(fields[7]); err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(strings.Join(fields[8:], ""))
	if err != nil {
		return fmt.Errorf("%w: bad SIG base64: %v", ErrMalformedWireData, err)
	}
	r.TypeCovered = tc
	r.Algorithm = uint8(alg)
	r.Labels = uint8(labels)
	r.OrigTTL = uint32(ttl)
	r.Expiration = expiration
	r.Inception = inception
	r.KeyTag = uint16(tag)
	r.Signature = sig
	return nil
}
