package dns

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"math/big"
)

// sigAlgorithm is one entry of the algorithm dispatch table: a signing
// and a verification capability keyed by the DNSSEC algorithm number.
type sigAlgorithm struct {
	name   string
	sign   func(key crypto.PrivateKey, preimage []byte) ([]byte, error)
	verify func(key *KEYRecord, preimage, signature []byte) error
}

// sigAlgorithms is populated below and never mutated afterwards; like
// the record-type registry it is safe for unsynchronized reads.
var sigAlgorithms = map[uint8]sigAlgorithm{
	AlgRSASHA1: {
		name:   "RSASHA1",
		sign:   func(k crypto.PrivateKey, m []byte) ([]byte, error) { return rsaSign(k, m, crypto.SHA1) },
		verify: func(k *KEYRecord, m, s []byte) error { return rsaVerify(k, m, s, crypto.SHA1) },
	},
	AlgRSASHA256: {
		name:   "RSASHA256",
		sign:   func(k crypto.PrivateKey, m []byte) ([]byte, error) { return rsaSign(k, m, crypto.SHA256) },
		verify: func(k *KEYRecord, m, s []byte) error { return rsaVerify(k, m, s, crypto.SHA256) },
	},
	AlgRSASHA512: {
		name:   "RSASHA512",
		sign:   func(k crypto.PrivateKey, m []byte) ([]byte, error) { return rsaSign(k, m, crypto.SHA512) },
		verify: func(k *KEYRecord, m, s []byte) error { return rsaVerify(k, m, s, crypto.SHA512) },
	},
	AlgECDSAP256SHA256: {
		name:   "ECDSAP256SHA256",
		sign:   ecdsaSign,
		verify: ecdsaVerify,
	},
	AlgED25519: {
		name:   "ED25519",
		sign:   ed25519Sign,
		verify: ed25519Verify,
	},
}

// AlgorithmSupported reports whether a signing capability is registered
// for the algorithm number.
func AlgorithmSupported(alg uint8) bool {
	_, ok := sigAlgorithms[alg]
	return ok
}

// AlgorithmName returns the mnemonic for an algorithm number.
func AlgorithmName(alg uint8) string {
	if a, ok := sigAlgorithms[alg]; ok {
		return a.name
	}
	return fmt.Sprintf("ALG%d", alg)
}

func digest(m []byte, h crypto.Hash) []byte {
	switch h {
	case crypto.SHA1:
		d := sha1.Sum(m)
		return d[:]
	case crypto.SHA512:
		d := sha512.Sum512(m)
		return d[:]
	default:
		d := sha256.Sum256(m)
		return d[:]
	}
}

func rsaSign(key crypto.PrivateKey, preimage []byte, h crypto.Hash) ([]byte, error) {
	k, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: RSA algorithm requires *rsa.PrivateKey", ErrSignatureAlgorithmUnsupported)
	}
	return rsa.SignPKCS1v15(rand.Reader, k, h, digest(preimage, h))
}

func rsaVerify(key *KEYRecord, preimage, signature []byte, h crypto.Hash) error {
	pub, err := parseRSAPublicKey(key.PublicKey)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(pub, h, digest(preimage, h), signature); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureVerificationFailed, err)
	}
	return nil
}

// parseRSAPublicKey decodes the RFC 3110 wire form: exponent length
// (one byte, or zero plus two bytes), exponent, modulus.
func parseRSAPublicKey(b []byte) (*rsa.PublicKey, error) {
	if len(b) < 3 {
		return nil, fmt.Errorf("%w: RSA public key too short", ErrMalformedWireData)
	}
	expLen := int(b[0])
	b = b[1:]
	if expLen == 0 {
		expLen = int(b[0])<<8 | int(b[1])
		b = b[2:]
	}
	if expLen == 0 || expLen > len(b)-1 {
		return nil, fmt.Errorf("%w: RSA exponent length %d invalid", ErrMalformedWireData, expLen)
	}
	exp := new(big.Int).SetBytes(b[:expLen])
	if !exp.IsInt64() || exp.Int64() > 1<<31 {
		return nil, fmt.Errorf("%w: RSA exponent too large", ErrMalformedWireData)
	}
	return &rsa.PublicKey{E: int(exp.Int64()), N: new(big.Int).SetBytes(b[expLen:])}, nil
}

// EncodeRSAPublicKey packs an RSA public key in RFC 3110 wire form.
func EncodeRSAPublicKey(pub *rsa.PublicKey) []byte {
	exp := big.NewInt(int64(pub.E)).Bytes()
	var buf []byte
	if len(exp) > 255 {
		buf = append(buf, 0, byte(len(exp)>>8), byte(len(exp)))
	} else {
		buf = append(buf, byte(len(exp)))
	}
	buf = append(buf, exp...)
	return append(buf, pub.N.Bytes()...)
}

func ecdsaSign(key crypto.PrivateKey, preimage []byte) ([]byte, error) {
	k, ok := key.(*ecdsa.PrivateKey)
	if !ok || k.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: ECDSAP256SHA256 requires a P-256 *ecdsa.PrivateKey", ErrSignatureAlgorithmUnsupported)
	}
	r, s, err := ecdsa.Sign(rand.Reader, k, digest(preimage, crypto.SHA256))
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:])
	return sig, nil
}

func ecdsaVerify(key *KEYRecord, preimage, signature []byte) error {
	if len(key.PublicKey) != 64 {
		return fmt.Errorf("%w: ECDSA P-256 public key must be 64 bytes", ErrMalformedWireData)
	}
	if len(signature) != 64 {
		return fmt.Errorf("%w: ECDSA P-256 signature must be 64 bytes", ErrSignatureVerificationFailed)
	}
	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(key.PublicKey[:32]),
		Y:     new(big.Int).SetBytes(key.PublicKey[32:]),
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	if !ecdsa.Verify(pub, digest(preimage, crypto.SHA256), r, s) {
		return fmt.Errorf("%w: ECDSA signature mismatch", ErrSignatureVerificationFailed)
	}
	return nil
}

// EncodeECDSAPublicKey packs a P-256 public key as X||Y (RFC 6605).
func EncodeECDSAPublicKey(pub *ecdsa.PublicKey) []byte {
	buf := make([]byte, 64)
	pub.X.FillBytes(buf[:32])
	pub.Y.FillBytes(buf[32:])
	return buf
}

func ed25519Sign(key crypto.PrivateKey, preimage []byte) ([]byte, error) {
	k, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: ED25519 requires ed25519.PrivateKey", ErrSignatureAlgorithmUnsupported)
	}
	return ed25519.Sign(k, preimage), nil
}

func ed25519Verify(key *KEYRecord, preimage, signature []byte) error {
	if len(key.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: ED25519 public key must be %d bytes", ErrMalformedWireData, ed25519.PublicKeySize)
	}
	if !ed25519.Verify(ed25519.PublicKey(key.PublicKey), preimage, signature) {
		return fmt.Errorf("%w: ED25519 signature mismatch", ErrSignatureVerificationFailed)
	}
	return nil
}
