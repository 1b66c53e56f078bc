package handler

import "time"

const (
	// maxJSONBodyBytes caps course payloads; descriptions are the largest field.
	maxJSONBodyBytes = 1 << 20

	// assetCacheControl applies to stored cover images, which never change
	// once written.
	assetCacheControl = "public, max-age=31536000, immutable"
)

// TimeFormat is the standard time format for API responses (RFC3339)
const TimeFormat = time.RFC3339
