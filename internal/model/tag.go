package model

import "time"

// Tag is a catalog label that enrichment may attach to messages. Messages
// refer to tags by slug only.
type Tag struct {
	Slug        string    `json:"slug" db:"slug"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Color       string    `json:"color" db:"color"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
