package handlers

import (
	"fmt"

	"github.com/pedroo-goncalves/Projeto-FBD/libs/auth"
)

// TokenSigner issues and verifies access tokens.
type TokenSigner interface {
	Sign(claims auth.Claims) (string, error)
	Verify(token string) (*auth.Claims, error)
}

// HS256Signer signs with a shared secret. The gateway holds the same secret
// and verifies tokens without calling back here.
type HS256Signer struct {
	secret string
}

func NewHS256Signer(secret string) (*HS256Signer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	return &HS256Signer{secret: secret}, nil
}

func (s *HS256Signer) Sign(claims auth.Claims) (string, error) {
	return auth.SignHS256(claims, s.secret)
}

func (s *HS256Signer) Verify(token string) (*auth.Claims, error) {
	return auth.ParseAndVerifyHS256(token, s.secret)
}
