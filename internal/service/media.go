package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/id"
	"github.com/chordseqapp/chordseq-server/internal/media"
)

// MediaService handles uploaded chart attachments: audio clips and images.
type MediaService struct {
	files  *media.Storage
	logger *slog.Logger
}

// NewMediaService creates a new media service.
func NewMediaService(files *media.Storage, logger *slog.Logger) *MediaService {
	return &MediaService{files: files, logger: logger}
}

// Upload stores an uploaded file for the caller. Images get a blurhash
// placeholder computed at upload time. Returns the stored metadata; the
// file's URL is derived from its ID by the API layer.
func (s *MediaService) Upload(ctx context.Context, callerID, filename, contentType string, data []byte) (*media.File, error) {
	if callerID == "" {
		return nil, errors.Unauthenticated("authentication required")
	}
	if len(data) == 0 {
		return nil, errors.Validation("file is empty")
	}

	var kind media.Kind
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		kind = media.KindAudio
	case strings.HasPrefix(contentType, "image/"):
		kind = media.KindImage
	default:
		return nil, errors.Validationf("unsupported content type %q", contentType)
	}

	meta := &media.File{
		ID:          id.MustGenerate("media"),
		OwnerID:     callerID,
		Kind:        kind,
		ContentType: contentType,
		Filename:    filename,
		CreatedAt:   time.Now().UTC(),
	}

	if kind == media.KindImage {
		hash, err := media.ComputeBlurHash(data)
		if err != nil {
			return nil, errors.Validation("image could not be decoded")
		}
		meta.BlurHash = hash
	}

	if err := s.files.Save(meta, data); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to save media file")
	}

	s.logger.Info("media uploaded",
		"media_id", meta.ID,
		"owner", callerID,
		"kind", meta.Kind,
		"size", meta.Size,
	)
	return meta, nil
}

// Get returns a media file's metadata and contents. Media IDs are
// unguessable, so any authenticated caller holding one may read it; charts
// gate discovery through their own visibility.
func (s *MediaService) Get(ctx context.Context, callerID, mediaID string) (*media.File, []byte, error) {
	if callerID == "" {
		return nil, nil, errors.Unauthenticated("authentication required")
	}

	if !s.files.Exists(mediaID) {
		return nil, nil, errors.NotFoundf("media %s not found", mediaID)
	}

	meta, data, err := s.files.Get(mediaID)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeInternal, "failed to read media file")
	}
	return meta, data, nil
}

// Delete removes a media file. Owner only.
func (s *MediaService) Delete(ctx context.Context, callerID, mediaID string) error {
	if callerID == "" {
		return errors.Unauthenticated("authentication required")
	}

	meta, err := s.files.Stat(mediaID)
	if err != nil {
		return errors.NotFoundf("media %s not found", mediaID)
	}
	if meta.OwnerID != callerID {
		return errors.ForbiddenResource("media", mediaID)
	}

	if err := s.files.Delete(mediaID); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to delete media file")
	}

	s.logger.Info("media deleted", "media_id", mediaID, "owner", callerID)
	return nil
}
