package domain

import "encoding/json"

// BundleStatus is the relay-reported state of a submitted bundle.
type BundleStatus string

const (
	BundlePending BundleStatus = "pending"
	BundleLanded  BundleStatus = "landed"
	BundleFailed  BundleStatus = "failed"
	BundleUnknown BundleStatus = "unknown"
)

// SubmissionResult tracks one submitted bundle. It changes only through
// status polling.
type SubmissionResult struct {
	BundleID           string          `json:"bundle_id"`
	Status             BundleStatus    `json:"status"`
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmation_status,omitempty"`
	Err                string          `json:"err,omitempty"`
	Attempts           int             `json:"attempts"`
	Raw                json.RawMessage `json:"raw,omitempty"`
}

// Terminal reports whether the status can no longer change.
func (r SubmissionResult) Terminal() bool {
	return r.Status == BundleLanded || r.Status == BundleFailed
}
