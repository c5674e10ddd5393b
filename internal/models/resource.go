package models

import "time"

// ResourceStatus is the moderation state of a resource. PENDING may move to
// APPROVED or REJECTED exactly once; there is no path back (resubmission
// means creating a new resource).
type ResourceStatus string

const (
	ResourcePending  ResourceStatus = "PENDING"
	ResourceApproved ResourceStatus = "APPROVED"
	ResourceRejected ResourceStatus = "REJECTED"
)

// Resource is a user-submitted catalog entry. FileRef is an opaque blob-store
// token; the engine never opens the bytes behind it.
type Resource struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	FileRef        *string        `db:"file_ref" json:"file_ref,omitempty"`
	OwnerID        string         `db:"owner_id" json:"owner_id"`
	OwnerName      string         `db:"owner_name" json:"owner_name"`
	Status         ResourceStatus `db:"status" json:"status"`
	Hidden         bool           `db:"hidden" json:"hidden"`
	Problematic    bool           `db:"problematic" json:"problematic"`
	ViewsCount     int64          `db:"views_count" json:"views_count"`
	DownloadsCount int64          `db:"downloads_count" json:"downloads_count"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`

	Tags []Tag `db:"-" json:"tags"`
}

// PubliclyListable reports whether the resource appears in the public catalog.
func (r *Resource) PubliclyListable() bool {
	return r.Status == ResourceApproved && !r.Hidden
}

// ResourceFilter captures the query-boundary filters for listing resources.
type ResourceFilter struct {
	Search    string
	TagName   string
	Author    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// ResourceDetail decorates a resource with derived engagement figures for
// detail responses.
type ResourceDetail struct {
	Resource
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
	UserRating    *int    `json:"user_rating,omitempty"`
	Saved         bool    `json:"saved"`
}
