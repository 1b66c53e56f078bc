package asset_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-authoring/internal/asset"
	"course-authoring/internal/domain"
	"course-authoring/internal/editor"
)

// pngHeader is enough for MIME sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type uploaderFunc func(ctx context.Context, courseID, mime string, data []byte) (string, error)

func (f uploaderFunc) UploadImage(ctx context.Context, courseID, mime string, data []byte) (string, error) {
	return f(ctx, courseID, mime, data)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		mime string
		ok   bool
	}{
		{"png", pngHeader, "image/png", true},
		{"jpeg", jpegHeader, "image/jpeg", true},
		{"pdf", []byte("%PDF-1.4\n"), "application/pdf", false},
		{"text", []byte("hello"), "text/plain; charset=utf-8", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, ok := asset.Sniff(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.mime, mime)
		})
	}
}

func TestIngestor_Select(t *testing.T) {
	fm := editor.New(editor.Options{UserID: "u1"})
	in := asset.New(nil, 0)

	require.NoError(t, in.Select(fm, bytes.NewReader(pngHeader)))
	cover := fm.Content().CoverImage
	assert.True(t, domain.IsDataURL(cover))
	mime, data, err := domain.DecodeDataURL(cover)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, pngHeader, data)
	assert.True(t, fm.Dirty())

	require.NoError(t, in.Remove(fm))
	assert.Empty(t, fm.Content().CoverImage)
}

func TestIngestor_SelectRejects(t *testing.T) {
	fm := editor.New(editor.Options{UserID: "u1"})
	in := asset.New(nil, 64)

	err := in.Select(fm, bytes.NewReader([]byte("%PDF-1.4\n")))
	assert.Equal(t, domain.CodeAssetBadType, asset.Code(err))

	big := append(append([]byte(nil), pngHeader...), make([]byte, 64)...)
	err = in.Select(fm, bytes.NewReader(big))
	assert.Equal(t, domain.CodeAssetTooLarge, asset.Code(err))

	assert.Empty(t, fm.Content().CoverImage)
	assert.False(t, fm.Dirty())
}

func TestIngestor_Resolve(t *testing.T) {
	var got []byte
	in := asset.New(uploaderFunc(func(ctx context.Context, courseID, mime string, data []byte) (string, error) {
		assert.Equal(t, "c1", courseID)
		assert.Equal(t, "image/png", mime)
		got = data
		return "handle-1", nil
	}), 0)

	handle, err := in.Resolve(context.Background(), "c1", domain.EncodeDataURL("image/png", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "handle-1", handle)
	assert.Equal(t, pngHeader, got)

	// Existing handles pass through without an upload.
	got = nil
	handle, err = in.Resolve(context.Background(), "c1", "handle-0")
	require.NoError(t, err)
	assert.Equal(t, "handle-0", handle)
	assert.Nil(t, got)
}

func TestIngestor_ResolveFailure(t *testing.T) {
	boom := errors.New("connection reset")
	in := asset.New(uploaderFunc(func(ctx context.Context, courseID, mime string, data []byte) (string, error) {
		return "", boom
	}), 0)

	_, err := in.Resolve(context.Background(), "c1", domain.EncodeDataURL("image/png", pngHeader))
	assert.Equal(t, domain.CodeAssetUploadFailed, asset.Code(err))
	assert.ErrorIs(t, err, boom)

	canceled := asset.New(uploaderFunc(func(ctx context.Context, courseID, mime string, data []byte) (string, error) {
		return "", context.Canceled
	}), 0)
	_, err = canceled.Resolve(context.Background(), "c1", domain.EncodeDataURL("image/png", pngHeader))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, asset.Code(err))
}
