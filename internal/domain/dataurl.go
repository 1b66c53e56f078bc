package domain

import (
	"encoding/base64"
	"errors"
	"strings"
)

// AllowedImageTypes is the accepted cover image MIME set.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ErrMalformedDataURL is returned for strings that look like data URLs but
// cannot be decoded.
var ErrMalformedDataURL = errors.New("malformed data url")

const dataURLPrefix = "data:"

// IsAllowedImageType reports whether mime is an accepted cover image type.
func IsAllowedImageType(mime string) bool {
	for _, t := range AllowedImageTypes {
		if t == mime {
			return true
		}
	}
	return false
}

// IsDataURL reports whether s is an inline data URL rather than a handle.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, dataURLPrefix)
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return dataURLPrefix + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DataURLMeta returns the declared MIME type and decoded size without
// allocating the payload.
func DataURLMeta(s string) (mime string, size int, err error) {
	mime, payload, err := splitDataURL(s)
	if err != nil {
		return "", 0, err
	}
	size = base64.StdEncoding.DecodedLen(len(payload))
	switch {
	case strings.HasSuffix(payload, "=="):
		size -= 2
	case strings.HasSuffix(payload, "="):
		size--
	}
	return mime, size, nil
}

// DecodeDataURL returns the declared MIME type and payload bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	mime, payload, err := splitDataURL(s)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, ErrMalformedDataURL
	}
	return mime, data, nil
}

func splitDataURL(s string) (string, string, error) {
	if !IsDataURL(s) {
		return "", "", ErrMalformedDataURL
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, dataURLPrefix), ",")
	if !ok {
		return "", "", ErrMalformedDataURL
	}
	mime, encoding, ok := strings.Cut(header, ";")
	if !ok || encoding != "base64" || mime == "" {
		return "", "", ErrMalformedDataURL
	}
	if len(payload)%4 != 0 {
		return "", "", ErrMalformedDataURL
	}
	return mime, payload, nil
}
