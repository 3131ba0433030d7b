package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"signal_relay/internal/domain"
)

// Signer handles Binance SIGNED endpoint authentication
type Signer struct {
	secretKey string
}

// NewSigner creates a new Signer instance.
// An empty secret is refused so nothing is ever signed with it.
func NewSigner(secretKey string) (*Signer, error) {
	if secretKey == "" {
		return nil, domain.ErrMissingCredentials
	}
	return &Signer{secretKey: secretKey}, nil
}

// Sign returns the hex signature of an already encoded query string.
// The caller must transmit exactly the bytes it signed.
func (s *Signer) Sign(canonical string) string {
	return computeHmacSha256(canonical, s.secretKey)
}

// SignParams encodes params once and returns the encoded string with its signature
func (s *Signer) SignParams(p Params) (canonical, signature string) {
	canonical = p.Encode()
	return canonical, s.Sign(canonical)
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
