// Package dns implements the DNS wire format: domain names with label
// compression, an extensible resource-record codec registry, EDNS(0)
// options, and SIG(0) transaction signatures.
//
// Standards Compliance:
//
// This package implements DNS protocol features from the following RFCs:
//
//   - RFC 1035: Domain Names - Implementation and Specification (core DNS protocol)
//   - RFC 1982: Serial Number Arithmetic (signature validity comparison)
//   - RFC 2535/4034: DNS Security Extensions (KEY/SIG records, key tags)
//   - RFC 2931: DNS Request and Transaction Signatures (SIG(0))
//   - RFC 3596: DNS Extensions to Support IPv6 (AAAA records)
//   - RFC 6891: Extension Mechanisms for DNS (EDNS, OPT records)
//   - RFC 7477: Child-to-Parent Synchronization (CSYNC records)
//
// Extensibility:
//
// Record types plug into a process-wide registry mapping the numeric type
// code to a codec. The message parser never changes when a new type is
// added; unregistered types decode to OpaqueRecord rather than failing.
// The registry is populated in package init and is read-only afterwards,
// which makes concurrent lookups safe without locking.
//
// Error Handling:
//
// All errors are wrapped with context using fmt.Errorf("...: %w", err).
// This preserves error chains while adding operational context.
package dns

import "errors"

var (
	// ErrMalformedWireData reports a length or offset inconsistency, a
	// compression loop, or an oversized name while decoding a message.
	// It is always fatal to the decode of that message.
	ErrMalformedWireData = errors.New("malformed dns wire data")

	// ErrSignatureAlgorithmUnsupported reports a SIG algorithm id with no
	// registered signing capability. Signing fails fast rather than
	// silently producing an unsigned record.
	ErrSignatureAlgorithmUnsupported = errors.New("signature algorithm unsupported")

	// ErrSignatureVerificationFailed reports that no supplied key verified
	// the signature. The message accumulates per-key failure reasons.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")

	// ErrSignatureExpired reports a cryptographically valid signature whose
	// validity window has passed.
	ErrSignatureExpired = errors.New("signature expired")

	// ErrSignatureNotYetValid reports a cryptographically valid signature
	// whose inception time is still in the future.
	ErrSignatureNotYetValid = errors.New("signature not yet valid")
)
