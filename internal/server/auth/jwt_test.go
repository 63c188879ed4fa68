package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/netsoclabs/memberd/internal/common"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	username := "alice"

	tok, err := GenerateToken(username, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	got, err := GetUsernameFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetUsernameFromToken error: %v", err)
	}
	if got != username {
		t.Fatalf("username mismatch: got %q want %q", got, username)
	}
}

func TestGetUsernameFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")

	tok, err := GenerateToken("alice", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = GetUsernameFromToken(tok, secret)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetUsernameFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("alice", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err = GetUsernameFromToken(tok, []byte("wrong-secret")); err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
}

func TestGetUsernameFromToken_Garbage(t *testing.T) {
	t.Parallel()

	if _, err := GetUsernameFromToken("not.a.jwt", []byte("secret")); err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
}
