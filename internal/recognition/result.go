package recognition

import "github.com/kozaktomas/face-attendance/internal/constants"

// IdentifyResult is the outcome of one identification.
// On failure Distance carries the minimum distance when a match was compared.
type IdentifyResult struct {
	Success    bool
	IdentityID string
	Name       string
	Distance   *float64
	Threshold  float64
	Reason     constants.Reason
	Message    string
}

func identifyFailure(reason constants.Reason) IdentifyResult {
	return IdentifyResult{Reason: reason, Message: reason.Message()}
}

// EnrollResult is the outcome of one enrollment.
type EnrollResult struct {
	Success         bool
	IdentityID      string
	Name            string
	EmbeddingLinked bool
	Reason          constants.Reason
	Message         string
}

func enrollFailure(reason constants.Reason) EnrollResult {
	return EnrollResult{Reason: reason, Message: reason.Message()}
}
