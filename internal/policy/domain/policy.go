package domain

import "time"

// Policy represents a class-level classification policy written in Rego.
type Policy struct {
	ID        string
	ClassID   string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
