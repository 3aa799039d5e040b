package model

import "time"

// Holder is a person or location that can currently have a piece of equipment.
type Holder struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Holder types.
const (
	HolderTypePerson   = "person"
	HolderTypeLocation = "location"
)
