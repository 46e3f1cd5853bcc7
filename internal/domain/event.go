package domain

import "time"

// EventType names a loop event published to observers.
type EventType string

const (
	EventOpportunity     EventType = "opportunity"
	EventFetchFailed     EventType = "fetch_failed"
	EventNoRoute         EventType = "no_route"
	EventBundleSubmitted EventType = "bundle_submitted"
	EventBundleLanded    EventType = "bundle_landed"
	EventBundleFailed    EventType = "bundle_failed"
	EventBundleUnknown   EventType = "bundle_unknown"
	EventCycleError      EventType = "cycle_error"
)

// Event is the JSON payload published for every notable loop transition.
type Event struct {
	Type     EventType `json:"type"`
	CycleID  string    `json:"cycle_id"`
	AssetID  string    `json:"asset_id,omitempty"`
	BundleID string    `json:"bundle_id,omitempty"`
	Status   string    `json:"status,omitempty"`
	Spread   string    `json:"spread,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}
