package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"aidanwoods.dev/go-paseto"
	"github.com/fsnotify/fsnotify"
)

// KeySet holds the public keys accepted for invitation-token verification.
//
// The set is loaded from a directory of hex-encoded .pub files and can be
// reloaded at runtime, so signing keys rotate without a restart: the new
// public key is dropped into the directory while the old ones stay behind
// until their outstanding tokens have expired.
type KeySet struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	keys []paseto.V4AsymmetricPublicKey
}

// NewKeySet loads the public keys from dir.
func NewKeySet(dir string, logger *slog.Logger) (*KeySet, error) {
	ks := &KeySet{dir: dir, logger: logger}
	if err := ks.Reload(); err != nil {
		return nil, err
	}
	return ks, nil
}

// Reload re-reads every .pub file in the directory.
func (ks *KeySet) Reload() error {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return fmt.Errorf("read key directory: %w", err)
	}

	var keys []paseto.V4AsymmetricPublicKey
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pub") {
			continue
		}
		//#nosec G304 -- reading from the configured key directory
		raw, err := os.ReadFile(filepath.Join(ks.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read public key %s: %w", entry.Name(), err)
		}
		key, err := paseto.NewV4AsymmetricPublicKeyFromHex(strings.TrimSpace(string(raw)))
		if err != nil {
			return fmt.Errorf("parse public key %s: %w", entry.Name(), err)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return fmt.Errorf("no public keys in %s", ks.dir)
	}

	ks.mu.Lock()
	ks.keys = keys
	ks.mu.Unlock()

	if ks.logger != nil {
		ks.logger.Info("verification key set loaded", "dir", ks.dir, "keys", len(keys))
	}
	return nil
}

// Keys returns a snapshot of the current keys.
func (ks *KeySet) Keys() []paseto.V4AsymmetricPublicKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return append([]paseto.V4AsymmetricPublicKey{}, ks.keys...)
}

// Watch reloads the set whenever the key directory changes, until ctx is
// canceled. A failed reload keeps the previous set.
func (ks *KeySet) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(ks.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch key directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := ks.Reload(); err != nil && ks.logger != nil {
					ks.logger.Warn("key set reload failed, keeping previous keys", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if ks.logger != nil {
					ks.logger.Warn("key watcher error", "error", err)
				}
			}
		}
	}()
	return nil
}
