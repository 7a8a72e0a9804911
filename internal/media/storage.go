// Package media provides disk-backed storage for uploaded chart attachments.
package media

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Kind classifies an uploaded file.
type Kind string

// Supported media kinds.
const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// File is the stored metadata for one uploaded media file. It lives in a
// JSON sidecar next to the blob so the store needs no database table.
type File struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Kind        Kind      `json:"kind"`
	ContentType string    `json:"content_type"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	BlurHash    string    `json:"blur_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Storage manages media filesystem operations. Thread-safe for concurrent
// operations.
type Storage struct {
	basePath string
	mu       sync.RWMutex
}

// NewStorage creates a Storage rooted at basePath, creating the directory if
// needed.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return &Storage{basePath: basePath}, nil
}

// Save stores a blob and its metadata sidecar.
func (s *Storage) Save(meta *File, data []byte) error {
	if meta == nil || meta.ID == "" {
		return fmt.Errorf("media ID cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("media data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta.Size = int64(len(data))

	if err := os.WriteFile(s.blobPath(meta.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write media file: %w", err)
	}

	sidecar, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode media metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(meta.ID), sidecar, 0o644); err != nil {
		return fmt.Errorf("failed to write media metadata: %w", err)
	}

	return nil
}

// Stat returns the metadata for a media file, or os.ErrNotExist.
func (s *Storage) Stat(id string) (*File, error) {
	if id == "" {
		return nil, fmt.Errorf("media ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readMeta(id)
}

// Get retrieves a media file's metadata and contents.
func (s *Storage) Get(id string) (*File, []byte, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("media ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(s.blobPath(id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read media file: %w", err)
	}

	return meta, data, nil
}

// Exists checks whether a media file exists.
func (s *Storage) Exists(id string) bool {
	if id == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.metaPath(id))
	return err == nil
}

// Delete removes a media file and its sidecar. Deleting a missing file is
// not an error.
func (s *Storage) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("media ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.blobPath(id), s.metaPath(id)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete media file: %w", err)
		}
	}

	return nil
}

// Hash computes the SHA256 hash of a media file's contents. Hex-encoded, for
// ETag validation.
func (s *Storage) Hash(id string) (string, error) {
	_, data, err := s.Get(id)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

func (s *Storage) readMeta(id string) (*File, error) {
	raw, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return nil, err
	}

	var meta File
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode media metadata: %w", err)
	}
	return &meta, nil
}

func (s *Storage) blobPath(id string) string {
	return filepath.Join(s.basePath, id+".bin")
}

func (s *Storage) metaPath(id string) string {
	return filepath.Join(s.basePath, id+".json")
}
