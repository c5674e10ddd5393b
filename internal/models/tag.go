package models

import "time"

// Tag is a controlled-vocabulary label referenced by resources. Names are
// unique case-insensitively; rename and delete are not supported once a tag
// is referenced.
type Tag struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TagCount is a tag together with the number of publicly listed resources
// referencing it.
type TagCount struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Count int    `db:"count" json:"count"`
}
