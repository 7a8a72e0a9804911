package auth

import (
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/chordseqapp/chordseq-server/internal/domain"
)

func newTestTokenService(t *testing.T) (*TokenService, string) {
	t.Helper()

	dir := t.TempDir()
	accessKey := make([]byte, keyLength)
	if _, err := rand.Read(accessKey); err != nil {
		t.Fatalf("generate key: %v", err)
	}

	signingKey, err := LoadOrGenerateSigningKey(dir)
	if err != nil {
		t.Fatalf("signing key: %v", err)
	}
	keySet, err := NewKeySet(filepath.Join(dir, publicKeyDir), nil)
	if err != nil {
		t.Fatalf("key set: %v", err)
	}

	svc, err := NewTokenService(accessKey, signingKey, keySet, time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	return svc, dir
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAccessTokenRoundTrip(t *testing.T) {
	svc, _ := newTestTokenService(t)

	user := &domain.User{Email: "ada@example.com"}
	user.ID = "user-abc123"

	token, err := svc.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("user_id: got %q, want %q", claims.UserID, user.ID)
	}
	if claims.Email != user.Email {
		t.Errorf("email: got %q, want %q", claims.Email, user.Email)
	}
	if claims.Subject != user.ID {
		t.Errorf("sub: got %q, want %q", claims.Subject, user.ID)
	}
}

func TestAccessTokenRejectsTampering(t *testing.T) {
	svc, _ := newTestTokenService(t)

	user := &domain.User{Email: "ada@example.com"}
	user.ID = "user-abc123"
	token, err := svc.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	mangled := token[:len(token)-2] + "xx"
	if _, err := svc.VerifyAccessToken(mangled); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for tampered token, got %v", err)
	}
	if _, err := svc.VerifyAccessToken("not a token"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestInvitationTokenRoundTrip(t *testing.T) {
	svc, _ := newTestTokenService(t)

	inv := &domain.Invitation{
		ResourceType: domain.ResourceTag,
		ResourceID:   "tag-xyz",
		Action:       domain.ActionRead,
		ExpiresAt:    timePtr(time.Now().Add(24 * time.Hour)),
		CreatorID:    "user-owner",
	}
	inv.ID = "inv-123"

	token, err := svc.GenerateInvitationToken(inv)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.VerifyInvitationToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.InvitationID != inv.ID {
		t.Errorf("invitation_id: got %q, want %q", claims.InvitationID, inv.ID)
	}
}

func TestInvitationTokenExpired(t *testing.T) {
	svc, _ := newTestTokenService(t)

	inv := &domain.Invitation{
		ResourceType: domain.ResourceTag,
		ResourceID:   "tag-xyz",
		Action:       domain.ActionRead,
		ExpiresAt:    timePtr(time.Now().Add(-time.Minute)),
		CreatorID:    "user-owner",
	}
	inv.ID = "inv-expired"

	token, err := svc.GenerateInvitationToken(inv)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.VerifyInvitationToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

// Tokens signed before a key rotation must keep verifying as long as the old
// public key stays in the set.
func TestInvitationTokenSurvivesRotation(t *testing.T) {
	svc, dir := newTestTokenService(t)

	inv := &domain.Invitation{
		ResourceType: domain.ResourceTag,
		ResourceID:   "tag-xyz",
		Action:       domain.ActionWrite,
		ExpiresAt:    timePtr(time.Now().Add(24 * time.Hour)),
		CreatorID:    "user-owner",
	}
	inv.ID = "inv-rotated"

	oldToken, err := svc.GenerateInvitationToken(inv)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Rotate: new signing key, public half added alongside the old one.
	if err := os.Remove(filepath.Join(dir, signingKeyFile)); err != nil {
		t.Fatalf("remove signing key: %v", err)
	}
	newKey, err := LoadOrGenerateSigningKey(dir)
	if err != nil {
		t.Fatalf("rotate signing key: %v", err)
	}
	svc.signingKey = newKey
	if err := svc.keySet.Reload(); err != nil {
		t.Fatalf("reload key set: %v", err)
	}
	if got := len(svc.keySet.Keys()); got != 2 {
		t.Fatalf("key set size after rotation: got %d, want 2", got)
	}

	if _, err := svc.VerifyInvitationToken(oldToken); err != nil {
		t.Errorf("pre-rotation token should verify: %v", err)
	}

	newToken, err := svc.GenerateInvitationToken(inv)
	if err != nil {
		t.Fatalf("generate with new key: %v", err)
	}
	if _, err := svc.VerifyInvitationToken(newToken); err != nil {
		t.Errorf("post-rotation token should verify: %v", err)
	}
}

func TestInvitationTokenWrongKeyRejected(t *testing.T) {
	svc, _ := newTestTokenService(t)

	stranger := paseto.NewV4AsymmetricSecretKey()
	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetExpiration(time.Now().Add(time.Hour))
	//nolint:errcheck
	_ = token.Set("invitation_id", "inv-forged")

	forged := token.V4Sign(stranger, nil)
	if _, err := svc.VerifyInvitationToken(forged); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestLoadOrGenerateAccessKeyIsStable(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateAccessKey(dir)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := LoadOrGenerateAccessKey(dir)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if string(first) != string(second) {
		t.Error("access key should be stable across loads")
	}
	if len(first) != keyLength {
		t.Errorf("key length: got %d, want %d", len(first), keyLength)
	}
}
