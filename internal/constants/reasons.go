package constants

// Reason is a machine-readable failure code returned in identification and
// enrollment results.
type Reason string

// Pipeline reason codes
const (
	ReasonCameraUnavailable Reason = "camera_unavailable"
	ReasonNoFace            Reason = "no_face"
	ReasonOutOfArea         Reason = "out_of_area"
	ReasonBadQuality        Reason = "bad_quality"
	ReasonUnknown           Reason = "unknown"
	ReasonMissingName       Reason = "missing_name"
	ReasonInternalError     Reason = "internal_error"
)

// Request-level reason codes used by the HTTP surface
const (
	ReasonAlreadyCheckedIn  Reason = "already_checked_in"
	ReasonAlreadyCheckedOut Reason = "already_checked_out"
	ReasonInvalidFormat     Reason = "invalid_format"
	ReasonEmptyFile         Reason = "empty_file"
	ReasonInvalidRequest    Reason = "invalid_request"
)

// Messages returned alongside reason codes.
var reasonMessages = map[Reason]string{
	ReasonCameraUnavailable: "camera is not available",
	ReasonNoFace:            "no face detected",
	ReasonOutOfArea:         "please position your face inside the guide area",
	ReasonBadQuality:        "image quality is too low",
	ReasonUnknown:           "face not recognized",
	ReasonMissingName:       "a name is required for new identities",
	ReasonInternalError:     "an internal error occurred",
	ReasonAlreadyCheckedIn:  "already checked in today",
	ReasonAlreadyCheckedOut: "already checked out today",
	ReasonInvalidFormat:     "unsupported image format, use JPG, PNG, BMP or WEBP",
	ReasonEmptyFile:         "image file is empty",
	ReasonInvalidRequest:    "provide either a JSON body or a multipart form with image and type",
}

// Message returns the default human-readable message for a reason code.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}
