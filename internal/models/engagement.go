package models

import "time"

// Rating is an upserted score keyed by (resource, user); at most one row per
// pair, last write wins.
type Rating struct {
	ResourceID string    `db:"resource_id" json:"resource_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Value      int       `db:"value" json:"value"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RatingSummary is the derived aggregate over a resource's rating rows.
// Average is 0 and Count is 0 when no ratings exist.
type RatingSummary struct {
	Average float64 `json:"average_rating"`
	Count   int     `json:"rating_count"`
}

// Comment is an append-only ledger entry against a resource.
type Comment struct {
	ID         string    `db:"id" json:"id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	AuthorID   string    `db:"author_id" json:"author_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Text       string    `db:"text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Save is a membership row between a user and a resource. Toggled, never
// duplicated.
type Save struct {
	UserID     string    `db:"user_id" json:"user_id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// OwnerStats aggregates publication totals over a user's approved resources,
// shown on public profiles.
type OwnerStats struct {
	PublishedCount int   `db:"published_count" json:"published_count"`
	TotalViews     int64 `db:"total_views" json:"total_views"`
	TotalDownloads int64 `db:"total_downloads" json:"total_downloads"`
}
