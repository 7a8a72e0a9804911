package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/id"
)

const (
	tokenIssuer   = "chordseq-server"
	tokenAudience = "chordseq-client"
)

// ErrTokenInvalid is returned when a token fails parsing or any claim rule.
var ErrTokenInvalid = errors.New("invalid token")

// TokenService handles PASETO token generation and verification.
//
// Access tokens are v4.local (encrypted with a symmetric key held only by the
// server). Invitation tokens are v4.public: signed with the current Ed25519
// key and verified against the rotatable key set, so shared links survive a
// signing-key rotation for as long as the old public key stays in the set.
type TokenService struct {
	symmetricKey        paseto.V4SymmetricKey
	signingKey          paseto.V4AsymmetricSecretKey
	keySet              *KeySet
	accessTokenDuration time.Duration
	inviteTokenDuration time.Duration
}

// NewTokenService creates a new token service with the given keys.
func NewTokenService(accessKey []byte, signingKey paseto.V4AsymmetricSecretKey, keySet *KeySet, accessDuration, inviteDuration time.Duration) (*TokenService, error) {
	if len(accessKey) != keyLength {
		return nil, fmt.Errorf("access key must be exactly %d bytes, got %d", keyLength, len(accessKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(accessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{
		symmetricKey:        key,
		signingKey:          signingKey,
		keySet:              keySet,
		accessTokenDuration: accessDuration,
		inviteTokenDuration: inviteDuration,
	}, nil
}

// GenerateAccessToken creates a new PASETO v4.local access token for the user.
// The token is encrypted and contains user claims.
func (s *TokenService) GenerateAccessToken(user *domain.User) (string, error) {
	now := time.Now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(user.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.accessTokenDuration))

	tokenID, err := id.Generate("token")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("user_id", user.ID)
	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("email", user.Email)

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// VerifyAccessToken verifies and parses a PASETO access token.
// Returns the claims if valid, or ErrTokenInvalid if they're invalid or expired.
func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %w", ErrTokenInvalid, err)
	}

	return &claims, nil
}

// GenerateInvitationToken creates a signed v4.public token carrying the
// invitation's ID. The token's own expiry is its useful life as a link and
// is independent of the expiry of the policy it eventually materializes;
// an invitation row that expires sooner caps it.
func (s *TokenService) GenerateInvitationToken(inv *domain.Invitation) (string, error) {
	now := time.Now()

	expiry := now.Add(s.inviteTokenDuration)
	if inv.ExpiresAt != nil && inv.ExpiresAt.Before(expiry) {
		expiry = *inv.ExpiresAt
	}

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expiry)

	tokenID, err := id.Generate("token")
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	//nolint:errcheck // Token.Set only errors on invalid types, which we control
	_ = token.Set("invitation_id", inv.ID)

	return token.V4Sign(s.signingKey, nil), nil
}

// VerifyInvitationToken checks the signature against every key in the
// rotatable set and validates the standard claims. Returns ErrTokenInvalid
// when no key verifies the token or a claim rule fails.
func (s *TokenService) VerifyInvitationToken(tokenString string) (*InvitationClaims, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	var lastErr error
	for _, key := range s.keySet.Keys() {
		token, err := parser.ParseV4Public(key, tokenString, nil)
		if err != nil {
			lastErr = err
			continue
		}

		var claims InvitationClaims
		if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
			return nil, fmt.Errorf("%w: parse claims: %w", ErrTokenInvalid, err)
		}
		return &claims, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no verification keys available")
	}
	return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, lastErr)
}

// AccessTokenDuration returns the configured access token lifetime.
func (s *TokenService) AccessTokenDuration() time.Duration {
	return s.accessTokenDuration
}
