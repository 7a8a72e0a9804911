package api

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chordseqapp/chordseq-server/internal/errors"
	"github.com/chordseqapp/chordseq-server/internal/media"
)

func (s *Server) registerMediaRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "uploadMedia",
		Method:       http.MethodPost,
		Path:         "/api/v1/media",
		Summary:      "Upload media",
		Description:  "Stores one or more audio or image attachments owned by the caller",
		Tags:         []string{"Media"},
		Security:     []map[string][]string{{"bearer": {}}},
		MaxBodyBytes: s.opts.MaxUploadBytes,
	}, s.handleUploadMedia)

	huma.Register(s.api, huma.Operation{
		OperationID: "downloadMedia",
		Method:      http.MethodGet,
		Path:        "/api/v1/media/{id}",
		Summary:     "Download media",
		Description: "Streams a stored attachment back to an authenticated caller",
		Tags:        []string{"Media"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDownloadMedia)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteMedia",
		Method:      http.MethodDelete,
		Path:        "/api/v1/media/{id}",
		Summary:     "Delete media",
		Description: "Deletes an attachment the caller owns",
		Tags:        []string{"Media"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteMedia)
}

// === DTOs ===

type MediaResponse struct {
	ID          string    `json:"id" doc:"Media ID"`
	URL         string    `json:"url" doc:"Download URL"`
	Kind        string    `json:"kind" doc:"Media kind: audio or image"`
	ContentType string    `json:"content_type" doc:"MIME type"`
	Filename    string    `json:"filename,omitempty" doc:"Original filename"`
	Size        int64     `json:"size" doc:"Size in bytes"`
	BlurHash    string    `json:"blur_hash,omitempty" doc:"BlurHash placeholder for images"`
	CreatedAt   time.Time `json:"created_at" doc:"Upload time"`
}

// UploadMediaInput accepts a multipart form with one or more parts named
// "files". Each part carries its own filename and content type.
type UploadMediaInput struct {
	RawBody multipart.Form
}

type UploadMediaResponse struct {
	Files []MediaResponse `json:"files" doc:"Stored attachments, in upload order"`
}

type UploadMediaOutput struct {
	Body UploadMediaResponse
}

type DownloadMediaInput struct {
	ID string `path:"id" doc:"Media ID"`
}

type DownloadMediaOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// === Handlers ===

func (s *Server) handleUploadMedia(ctx context.Context, input *UploadMediaInput) (*UploadMediaOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	parts := input.RawBody.File["files"]
	if len(parts) == 0 {
		return nil, errors.Validation("no files uploaded; use one or more 'files' form parts")
	}

	stored := make([]MediaResponse, 0, len(parts))
	for _, part := range parts {
		data, err := readPart(part)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to read uploaded file")
		}

		file, err := s.services.Media.Upload(ctx, userID, part.Filename, part.Header.Get("Content-Type"), data)
		if err != nil {
			return nil, err
		}
		stored = append(stored, mapMediaResponse(file))
	}

	return &UploadMediaOutput{Body: UploadMediaResponse{Files: stored}}, nil
}

func readPart(part *multipart.FileHeader) ([]byte, error) {
	f, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleDownloadMedia(ctx context.Context, input *DownloadMediaInput) (*DownloadMediaOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	file, data, err := s.services.Media.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	return &DownloadMediaOutput{ContentType: file.ContentType, Body: data}, nil
}

func (s *Server) handleDeleteMedia(ctx context.Context, input *DownloadMediaInput) (*MessageOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Media.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}

	return &MessageOutput{Body: MessageResponse{Message: "Media deleted"}}, nil
}

// === Mappers ===

func mapMediaResponse(f *media.File) MediaResponse {
	return MediaResponse{
		ID:          f.ID,
		URL:         "/api/v1/media/" + f.ID,
		Kind:        string(f.Kind),
		ContentType: f.ContentType,
		Filename:    f.Filename,
		Size:        f.Size,
		BlurHash:    f.BlurHash,
		CreatedAt:   f.CreatedAt,
	}
}
