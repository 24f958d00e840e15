// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Identity constants
const (
	// IdentityPrefix is the fixed prefix of generated identity ids (EMP001, EMP002, ...)
	IdentityPrefix = "EMP"

	// IdentityDigits is the minimum zero-padded width of the numeric suffix
	IdentityDigits = 3
)

// Image constants
const (
	// MaxImageWidth and MaxImageHeight bound every decoded frame before processing
	MaxImageWidth  = 1280
	MaxImageHeight = 720

	// MinImageWidth and MinImageHeight are the smallest frames accepted for identification
	MinImageWidth  = 160
	MinImageHeight = 120

	// ThumbnailSize is the maximum edge of a stored profile thumbnail
	ThumbnailSize = 300

	// StoredJPEGQuality is used for thumbnails written to the image directory
	StoredJPEGQuality = 75

	// CaptureJPEGQuality is used for the capture endpoint
	CaptureJPEGQuality = 85

	// StreamJPEGQuality is used for MJPEG stream frames
	StreamJPEGQuality = 80
)

// Matching constants
const (
	// DefaultTolerance is the maximum accepted Euclidean distance for a positive identification
	DefaultTolerance = 0.6
)

// Attendance constants
const (
	AttendanceIn  = "IN"
	AttendanceOut = "OUT"

	// DefaultRecentLimit is the default number of attendance records returned per query
	DefaultRecentLimit = 10
)

// HTTP constants
const (
	// MaxUploadSize is the maximum multipart body accepted for image uploads
	MaxUploadSize = 10 << 20

	// GuideUpdateIntervalMillis is how often the guidance websocket pushes an assessment
	GuideUpdateIntervalMillis = 200
)
