package wise

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Verifier checks webhook bodies against Wise's published public key.
type Verifier struct {
	key *rsa.PublicKey
}

// NewVerifier creates a Verifier for key.
func NewVerifier(key *rsa.PublicKey) *Verifier {
	return &Verifier{key: key}
}

// LoadVerifier reads a PEM encoded RSA public key from path.
func LoadVerifier(path string) (*Verifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read webhook public key: %w", err)
	}
	key, err := ParsePublicKey(raw)
	if err != nil {
		return nil, err
	}
	return NewVerifier(key), nil
}

// Verify reports whether signature is a valid RSASSA-PKCS1-v1_5 SHA-256
// signature of body.
func (v *Verifier) Verify(body, signature []byte) error {
	digest := sha256.Sum256(body)
	return rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], signature)
}

// ParsePublicKey decodes a PKIX or PKCS#1 PEM block holding an RSA key.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("public key: no PEM block found")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key: expected RSA, got %T", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("public key: unsupported PEM type %q", block.Type)
	}
}
