package domain

import "time"

// User is an internal staff member (admin, attendant or technician).
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
