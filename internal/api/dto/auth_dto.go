package dto

import "time"

// LoginRequest is shared by the staff and company login endpoints.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

// AuthResponse contains issued token details.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateUserRequest is used by admins to add staff.
type CreateUserRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=120"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" form:"role" validate:"required,oneof=admin attendant technician"`
}

// CreateCompanyRequest is used by admins to add a customer tenant.
type CreateCompanyRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=160"`
	Document string `json:"document" form:"document" validate:"max=32"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Phone    string `json:"phone" form:"phone" validate:"max=32"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
}

// UserResponse is the public view of a staff member.
type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CompanyResponse is the public view of a company.
type CompanyResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
