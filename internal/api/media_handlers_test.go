package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type uploadPart struct {
	filename    string
	contentType string
	data        []byte
}

// multipartBody builds a multipart/form-data body with one "files" part per
// upload, returning the body and its Content-Type header value.
func multipartBody(t *testing.T, parts ...uploadPart) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.filename+`"`)
		h.Set("Content-Type", p.contentType)
		fw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (ts *testServer) upload(t *testing.T, token string, parts ...uploadPart) []MediaResponse {
	t.Helper()

	body, contentType := multipartBody(t, parts...)
	resp := ts.api.Post("/api/v1/media", bearer(token), "Content-Type: "+contentType, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var uploaded UploadMediaResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &uploaded))
	return uploaded.Files
}

func TestMediaUploadDownload(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")

	data := pngBytes(t)
	files := ts.upload(t, token, uploadPart{filename: "cover.png", contentType: "image/png", data: data})
	require.Len(t, files, 1)

	uploaded := files[0]
	assert.Equal(t, "image", uploaded.Kind)
	assert.Equal(t, "image/png", uploaded.ContentType)
	assert.Equal(t, "cover.png", uploaded.Filename)
	assert.Equal(t, int64(len(data)), uploaded.Size)
	assert.NotEmpty(t, uploaded.BlurHash)
	assert.Equal(t, "/api/v1/media/"+uploaded.ID, uploaded.URL)

	resp := ts.api.Get(uploaded.URL, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, data, resp.Body.Bytes())
	assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))
}

func TestMediaMultiFileUpload(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")

	files := ts.upload(t, token,
		uploadPart{filename: "cover.png", contentType: "image/png", data: pngBytes(t)},
		uploadPart{filename: "riff.mp3", contentType: "audio/mpeg", data: []byte("not really mpeg frames")},
	)
	require.Len(t, files, 2)

	assert.Equal(t, "image", files[0].Kind)
	assert.NotEmpty(t, files[0].BlurHash)
	assert.Equal(t, "audio", files[1].Kind)
	assert.Empty(t, files[1].BlurHash)
	assert.NotEqual(t, files[0].ID, files[1].ID)
}

func TestMediaUploadRejectsUnknownType(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")

	body, contentType := multipartBody(t, uploadPart{
		filename:    "archive.zip",
		contentType: "application/zip",
		data:        []byte("zip zip"),
	})
	resp := ts.api.Post("/api/v1/media", bearer(token), "Content-Type: "+contentType, body)
	assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
}

func TestMediaUploadRequiresFiles(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")

	body, contentType := multipartBody(t)
	resp := ts.api.Post("/api/v1/media", bearer(token), "Content-Type: "+contentType, body)
	assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
}

func TestMediaDeleteOwnerOnly(t *testing.T) {
	ts := setupTestServer(t)
	aliceToken, _ := ts.registerUser(t, "alice@example.com")
	bobToken, _ := ts.registerUser(t, "bob@example.com")

	files := ts.upload(t, aliceToken, uploadPart{filename: "cover.png", contentType: "image/png", data: pngBytes(t)})
	require.Len(t, files, 1)
	uploaded := files[0]

	resp := ts.api.Delete(uploaded.URL, bearer(bobToken))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Delete(uploaded.URL, bearer(aliceToken))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get(uploaded.URL, bearer(aliceToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
