package domain

import (
	"time"
)

// Enrollment links a user to a class with a role.
type Enrollment struct {
	ID        string
	UserID    string
	ClassID   string
	Role      Role
	CreatedAt time.Time
}

type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)
