// Package asset turns picked image files into cover image values and
// uploads them when the course is saved.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"course-authoring/internal/domain"
	"course-authoring/internal/editor"
	"course-authoring/internal/logger"
)

// Error is an asset selection or upload failure.
type Error struct {
	Code     domain.Code
	MimeType string
	Size     int
	Err      error
}

func (e *Error) Error() string {
	switch e.Code {
	case domain.CodeAssetBadType:
		return fmt.Sprintf("%s: %q is not an accepted image type", e.Code, e.MimeType)
	case domain.CodeAssetTooLarge:
		return fmt.Sprintf("%s: image exceeds %d bytes", e.Code, e.Size)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the asset code carried by err, or "".
func Code(err error) domain.Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Uploader stores image bytes on the server.
type Uploader interface {
	UploadImage(ctx context.Context, courseID, mimeType string, data []byte) (string, error)
}

// Ingestor validates picked files and resolves inline covers to handles.
type Ingestor struct {
	uploader Uploader
	maxBytes int
}

// New returns an Ingestor that uploads through uploader. maxBytes <= 0
// uses domain.MaxCoverImageBytes.
func New(uploader Uploader, maxBytes int) *Ingestor {
	if maxBytes <= 0 {
		maxBytes = domain.MaxCoverImageBytes
	}
	return &Ingestor{uploader: uploader, maxBytes: maxBytes}
}

// Read sniffs and size-checks an image and returns it as a data URL.
func (in *Ingestor) Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(in.maxBytes)+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > in.maxBytes {
		return "", &Error{Code: domain.CodeAssetTooLarge, Size: in.maxBytes}
	}
	mime, ok := Sniff(data)
	if !ok {
		return "", &Error{Code: domain.CodeAssetBadType, MimeType: mime}
	}
	return domain.EncodeDataURL(mime, data), nil
}

// Sniff detects the MIME type of data and reports whether it is an
// accepted cover image type.
func Sniff(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	for _, allowed := range domain.AllowedImageTypes {
		if mt.Is(allowed) {
			return allowed, true
		}
	}
	return mt.String(), false
}

// Select reads an image into the form's cover_image as an inline preview.
// On failure the current cover is left unchanged.
func (in *Ingestor) Select(fm *editor.FormModel, r io.Reader) error {
	dataURL, err := in.Read(r)
	if err != nil {
		return err
	}
	return fm.SetField(domain.FieldCoverImage, dataURL)
}

// Remove clears the cover image.
func (in *Ingestor) Remove(fm *editor.FormModel) error {
	return fm.SetField(domain.FieldCoverImage, "")
}

// Resolve uploads an inline cover and returns its handle. Values that are
// already handles are returned unchanged.
func (in *Ingestor) Resolve(ctx context.Context, courseID, cover string) (string, error) {
	if !domain.IsDataURL(cover) {
		return cover, nil
	}
	mime, data, err := domain.DecodeDataURL(cover)
	if err != nil {
		return "", &Error{Code: domain.CodeAssetUploadFailed, Err: err}
	}
	if in.uploader == nil {
		return "", &Error{Code: domain.CodeAssetUploadFailed, Err: errors.New("no uploader configured")}
	}

	handle, err := in.uploader.UploadImage(ctx, courseID, mime, data)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		logger.Warn("Cover image upload failed",
			slog.String("course_id", courseID),
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()))
		return "", &Error{Code: domain.CodeAssetUploadFailed, Err: err}
	}
	return handle, nil
}
