package handlers

import (
	"testing"
	"time"

	"github.com/pedroo-goncalves/Projeto-FBD/libs/auth"
)

func TestPasswordHashing(t *testing.T) {
	password := "consulta123"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestHS256Signer_RoundTrip(t *testing.T) {
	signer, err := NewHS256Signer("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	now := time.Now()
	token, err := signer.Sign(auth.Claims{
		Sub:  "user-1",
		Name: "Dra. Ana Campos",
		Role: "medico",
		Iat:  now.Unix(),
		Exp:  now.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "medico" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestHS256Signer_RejectsShortSecret(t *testing.T) {
	if _, err := NewHS256Signer("too-short"); err == nil {
		t.Fatal("expected error for short secret")
	}
}
