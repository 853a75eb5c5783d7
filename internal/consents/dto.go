package consents

import "time"

// UpsertInput carries one consent decision into the write path. IPAddress is
// resolved server-side from the request origin, never from the client payload.
type UpsertInput struct {
	UserID    string
	PurposeID int64
	Status    bool
	IPAddress string
}

// BulkItem is one entry of a bulk update. Pointer fields distinguish "absent"
// from falsy values; items with missing fields are skipped, not rejected.
type BulkItem struct {
	PurposeID *int64
	Status    *bool
}

// Stats aggregates granted vs. total consent counts, overall and per purpose.
type Stats struct {
	TotalConsents    int64
	ActiveConsents   int64
	InactiveConsents int64
	ConsentRate      float64
	ByPurpose        []PurposeStats
}

// PurposeStats is one per-purpose row of the aggregate breakdown.
type PurposeStats struct {
	PurposeName string
	Total       int64
	Active      int64
	Rate        float64
}

// HistoryEntry is one consent state observation in a user's per-purpose history.
type HistoryEntry struct {
	Status    bool
	IPAddress string
	UpdatedAt time.Time
}

// CheckResult reports whether a user holds a consent record for one purpose.
// Status and LastUpdated are nil when no record exists.
type CheckResult struct {
	HasConsent  bool
	Status      *bool
	LastUpdated *time.Time
}
