package providers

import (
	"context"
	"log/slog"

	"aidanwoods.dev/go-paseto"
	"github.com/samber/do/v2"

	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/config"
)

// AuthKeys bundles the token key material loaded from disk.
type AuthKeys struct {
	AccessKey  []byte
	SigningKey paseto.V4AsymmetricSecretKey
}

// ProvideAuthKeys loads or generates the access and invitation signing keys.
// The signing key's public half lands in the verification key directory as a
// side effect, so the key set below always has at least one key.
func ProvideAuthKeys(i do.Injector) (*AuthKeys, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	keyPath := cfg.Data.KeyPath()
	accessKey, err := auth.LoadOrGenerateAccessKey(keyPath)
	if err != nil {
		return nil, err
	}
	signingKey, err := auth.LoadOrGenerateSigningKey(keyPath)
	if err != nil {
		return nil, err
	}

	log.Info("token keys loaded",
		"key_path", keyPath,
		"access_token_duration", cfg.Auth.AccessTokenDuration,
		"invitation_token_duration", cfg.Auth.InvitationTokenDuration,
	)

	return &AuthKeys{AccessKey: accessKey, SigningKey: signingKey}, nil
}

// KeySetHandle wraps the verification key set with its watcher lifecycle.
type KeySetHandle struct {
	*auth.KeySet
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *KeySetHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideKeySet provides the invitation verification key set and starts the
// hot-reload watcher on its directory.
func ProvideKeySet(i do.Injector) (*KeySetHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	// Key generation must have happened first, or the directory is empty.
	_ = do.MustInvoke[*AuthKeys](i)

	keySet, err := auth.NewKeySet(cfg.Data.InvitePublicKeyPath(), log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := keySet.Watch(ctx); err != nil {
		cancel()
		return nil, err
	}

	return &KeySetHandle{KeySet: keySet, cancel: cancel}, nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	keys := do.MustInvoke[*AuthKeys](i)
	keySetHandle := do.MustInvoke[*KeySetHandle](i)

	return auth.NewTokenService(
		keys.AccessKey,
		keys.SigningKey,
		keySetHandle.KeySet,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.InvitationTokenDuration,
	)
}
