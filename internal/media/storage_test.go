package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	return storage
}

func testFile(id string) *File {
	return &File{
		ID:          id,
		OwnerID:     "user_1",
		Kind:        KindAudio,
		ContentType: "audio/mpeg",
		Filename:    "riff.mp3",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestStorage_SaveAndGet(t *testing.T) {
	storage := newTestStorage(t)

	data := []byte("fake audio bytes")
	require.NoError(t, storage.Save(testFile("media_1"), data))

	meta, got, err := storage.Get("media_1")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "user_1", meta.OwnerID)
	assert.Equal(t, KindAudio, meta.Kind)
	assert.Equal(t, int64(len(data)), meta.Size)
}

func TestStorage_Stat(t *testing.T) {
	storage := newTestStorage(t)
	require.NoError(t, storage.Save(testFile("media_1"), []byte("x")))

	meta, err := storage.Stat("media_1")
	require.NoError(t, err)
	assert.Equal(t, "media_1", meta.ID)

	_, err = storage.Stat("missing")
	assert.Error(t, err)
}

func TestStorage_Exists(t *testing.T) {
	storage := newTestStorage(t)

	assert.False(t, storage.Exists("media_1"))
	require.NoError(t, storage.Save(testFile("media_1"), []byte("x")))
	assert.True(t, storage.Exists("media_1"))
	assert.False(t, storage.Exists(""))
}

func TestStorage_Delete(t *testing.T) {
	storage := newTestStorage(t)
	require.NoError(t, storage.Save(testFile("media_1"), []byte("x")))

	require.NoError(t, storage.Delete("media_1"))
	assert.False(t, storage.Exists("media_1"))

	// Deleting again is not an error.
	assert.NoError(t, storage.Delete("media_1"))
}

func TestStorage_SaveValidation(t *testing.T) {
	storage := newTestStorage(t)

	assert.Error(t, storage.Save(nil, []byte("x")))
	assert.Error(t, storage.Save(&File{}, []byte("x")))
	assert.Error(t, storage.Save(testFile("media_1"), nil))
}

func TestStorage_Hash(t *testing.T) {
	storage := newTestStorage(t)
	require.NoError(t, storage.Save(testFile("media_1"), []byte("stable contents")))

	h1, err := storage.Hash("media_1")
	require.NoError(t, err)
	h2, err := storage.Hash("media_1")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestNewStorage_EmptyPath(t *testing.T) {
	_, err := NewStorage("")
	assert.Error(t, err)
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 11), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComputeBlurHash(t *testing.T) {
	hash, err := ComputeBlurHash(encodePNG(t, 32, 32))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestComputeBlurHash_ResizesLargeImages(t *testing.T) {
	hash, err := ComputeBlurHash(encodePNG(t, 400, 200))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestComputeBlurHash_RejectsGarbage(t *testing.T) {
	_, err := ComputeBlurHash([]byte("not an image"))
	assert.Error(t, err)
}
