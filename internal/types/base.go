package types

import "time"

// Status represents the lifecycle status of a persisted record.
type Status string

const (
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
	StatusArchived  Status = "archived"
)

// BaseModel carries the bookkeeping columns shared by all persisted records.
type BaseModel struct {
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetDefaultBaseModel returns a BaseModel initialized for a new record.
func GetDefaultBaseModel(now time.Time) BaseModel {
	return BaseModel{
		Status:    StatusPublished,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}
