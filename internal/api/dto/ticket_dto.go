package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload. Length rules are enforced again on the sanitised text.
type CreateTicketRequest struct {
	Title       string `json:"title" form:"title" validate:"required,max=255"`
	Description string `json:"description" form:"description" validate:"required,max=5000"`
	Category    string `json:"category" form:"category" validate:"required"`
	Priority    string `json:"priority" form:"priority" validate:"omitempty,max=20"`
	Address     string `json:"address" form:"address" validate:"max=500"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Comment string `json:"comment" form:"comment" validate:"required,max=5000"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	ID             int64                 `json:"id"`
	CompanyID      int64                 `json:"company_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Category       domain.TicketCategory `json:"category"`
	Priority       domain.TicketPriority `json:"priority"`
	Address        string                `json:"address"`
	Status         domain.TicketStatus   `json:"status"`
	AssignedUserID *int64                `json:"assigned_user_id"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	ResolvedAt     *time.Time            `json:"resolved_at"`
	ClosedAt       *time.Time            `json:"closed_at"`
}

// TicketLogResponse is one audit entry.
type TicketLogResponse struct {
	ID          int64                `json:"id"`
	UserID      *int64               `json:"user_id"`
	Action      domain.LogAction     `json:"action"`
	OldStatus   *domain.TicketStatus `json:"old_status"`
	NewStatus   *domain.TicketStatus `json:"new_status"`
	Description string               `json:"description"`
	CreatedAt   time.Time            `json:"created_at"`
}

// PaginationResponse describes a page of a list.
type PaginationResponse struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}

// TransitionResponse is returned by create and every lifecycle action.
type TransitionResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    TicketResponse `json:"data"`
}

// TicketDetailResponse is returned by GET /tickets/:id.
type TicketDetailResponse struct {
	Success          bool                `json:"success"`
	Ticket           TicketResponse      `json:"ticket"`
	Logs             []TicketLogResponse `json:"logs"`
	AvailableActions []string            `json:"available_actions"`
}

// TicketListResponse is returned by GET /tickets.
type TicketListResponse struct {
	Success    bool               `json:"success"`
	Tickets    []TicketResponse   `json:"tickets"`
	Pagination PaginationResponse `json:"pagination"`
}
