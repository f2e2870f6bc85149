package domain

import "time"

// Company is a customer tenant that opens tickets.
type Company struct {
	ID           int64
	Name         string
	Document     string
	Email        string
	Phone        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
