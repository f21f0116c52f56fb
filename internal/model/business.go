// Package model defines the core data types shared across the sync pipeline.
package model

import "time"

// MaxImageSlots is the number of image-attachment positions on an Account record.
const MaxImageSlots = 3

// LocatorKind discriminates the ImageLocator union.
type LocatorKind string

const (
	LocatorAbsent LocatorKind = "absent"
	LocatorRemote LocatorKind = "remote"
	LocatorInline LocatorKind = "inline"
)

// ImageLocator points at one candidate image for a slot. Exactly one of URL
// or Data is meaningful depending on Kind.
type ImageLocator struct {
	Kind LocatorKind `json:"kind"`
	URL  string      `json:"url,omitempty"`
	MIME string      `json:"mime,omitempty"`
	Data []byte      `json:"data,omitempty"`
}

// RemoteLocator returns a locator for an image fetched over HTTP.
func RemoteLocator(url string) ImageLocator {
	return ImageLocator{Kind: LocatorRemote, URL: url}
}

// InlineLocator returns a locator for image bytes the extractor already holds
// (e.g. decoded from a data: URI in a src attribute).
func InlineLocator(mime string, data []byte) ImageLocator {
	return ImageLocator{Kind: LocatorInline, MIME: mime, Data: data}
}

// AbsentLocator marks a slot with no candidate image.
func AbsentLocator() ImageLocator {
	return ImageLocator{Kind: LocatorAbsent}
}

// IsAbsent reports whether the locator carries no image.
func (l ImageLocator) IsAbsent() bool {
	return l.Kind == LocatorAbsent || l.Kind == ""
}

// BusinessRecord holds the normalized attributes extracted for one address.
// It is produced once per address and immutable afterward. Images always has
// MaxImageSlots entries; slots without a candidate are Absent.
type BusinessRecord struct {
	Address string                        `json:"address"`
	Name    string                        `json:"name,omitempty"`
	Website string                        `json:"website,omitempty"`
	Phone   string                        `json:"phone,omitempty"`
	Images  [MaxImageSlots]ImageLocator   `json:"images"`
}

// ImageAsset is a locator materialized to a local file, ready for delivery.
type ImageAsset struct {
	Slot int    `json:"slot"`
	Path string `json:"path"`
	MIME string `json:"mime"`
}

// RecordRef identifies a CRM record and the layout needed to open its edit
// view. LayoutID is only known once the record exists, which is why image
// delivery always happens strictly after the upsert.
type RecordRef struct {
	RecordID string `json:"record_id"`
	LayoutID string `json:"layout_id"`
}

// Outcome is the terminal state of one address's reconciliation attempt.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCommitted Outcome = "committed"
	OutcomeFailed    Outcome = "failed"
)

// Attempt records one reconciliation attempt for the history store.
type Attempt struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	RecordID   string    `json:"record_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// PassReport aggregates the outcomes of one full pass over the input set.
type PassReport struct {
	Total     int `json:"total"`
	Skipped   int `json:"skipped"`
	Committed int `json:"committed"`
	Failed    int `json:"failed"`
}
