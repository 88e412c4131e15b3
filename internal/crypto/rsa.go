package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var ErrEncryptionFailed = errors.New("rsa encryption failed")

// DecodeBase64PEM unwraps a base64-encoded PEM document as sent by the auth API.
func DecodeBase64PEM(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("invalid base64 public key: %w", err)
	}
	return string(raw), nil
}

// ParsePublicKey accepts a "PUBLIC KEY" or "RSA PUBLIC KEY" PEM block, or the
// bare base64 DER body without armor.
func ParsePublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	var der []byte
	if block, _ := pem.Decode([]byte(publicKeyPEM)); block != nil {
		der = block.Bytes
	} else {
		body := strings.Join(strings.Fields(publicKeyPEM), "")
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("public key is neither PEM nor base64: %w", err)
		}
		der = decoded
	}

	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", pub)
		}
		return rsaPub, nil
	}

	rsaPub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return rsaPub, nil
}

// EncryptPKCS1v15 encrypts plaintext for the holder of publicKeyPEM and returns
// the ciphertext as standard base64. Every failure wraps ErrEncryptionFailed.
func EncryptPKCS1v15(publicKeyPEM, plaintext string) (string, error) {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	if len(ciphertext) == 0 {
		return "", fmt.Errorf("%w: empty ciphertext", ErrEncryptionFailed)
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
