package wise

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Signer answers 2FA challenges with the private half of the key pair whose
// public key is registered on the Wise profile.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner creates a Signer for key.
func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// LoadSigner reads a PEM encoded RSA private key from path.
func LoadSigner(path string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := ParsePrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}

// SignChallenge signs the challenge bytes with RSASSA-PKCS1-v1_5 over SHA-256
// and returns the base64 signature.
func (s *Signer) SignChallenge(challenge string) (string, error) {
	digest := sha256.Sum256([]byte(challenge))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// ParsePrivateKey decodes a PKCS#1 or PKCS#8 PEM block holding an RSA key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("private key: no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key: expected RSA, got %T", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("private key: unsupported PEM type %q", block.Type)
	}
}
