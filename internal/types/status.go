package types

// Status tracks the lifecycle of a stored record. Soft-removed records keep
// their row but are excluded from counts and lookups.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)
