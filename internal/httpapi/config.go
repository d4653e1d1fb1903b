package httpapi

import (
	"time"

	"modelzoo/internal/imgcodec"
)

const defaultMaxBodyBytes int64 = 32 << 20

// maxBodyBytes caps request bodies, including uploaded images.
var maxBodyBytes = defaultMaxBodyBytes

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// maxPixels caps the declared width × height of uploaded images.
var maxPixels = imgcodec.DefaultMaxPixels

// SetMaxPixels sets the decoded image limit; n <= 0 restores the default.
func SetMaxPixels(n int64) {
	if n <= 0 {
		n = imgcodec.DefaultMaxPixels
	}
	maxPixels = n
}

// inferTimeout bounds a single /infer request. Zero means no additional
// timeout beyond server/connection timeouts.
var inferTimeout time.Duration

// SetInferTimeout sets the infer timeout (0 disables).
func SetInferTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	inferTimeout = d
}

// encodeQuality is the JPEG/WebP quality for encoded /infer responses.
var encodeQuality = 90

// SetEncodeQuality sets the output quality; out-of-range values reset to the default.
func SetEncodeQuality(q int) {
	if q <= 0 || q > 100 {
		q = 90
	}
	encodeQuality = q
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
