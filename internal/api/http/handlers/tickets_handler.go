package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler exposes ticket endpoints to companies and staff.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.service.Create(c.UserContext(), actor, service.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Address:     req.Address,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(transitionResponse(res))
}

// Transition returns the handler for POST /tickets/:id/<action>.
func (h *TicketsHandler) Transition(t lifecycle.Transition) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentActor(c)
		if err != nil {
			return err
		}
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}
		res, err := h.service.Apply(c.UserContext(), id, t, actor)
		if err != nil {
			return err
		}
		return c.JSON(transitionResponse(res))
	}
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	details, err := h.service.GetDetails(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	logs := make([]dto.TicketLogResponse, 0, len(details.Logs))
	for _, entry := range details.Logs {
		logs = append(logs, logResponse(entry))
	}
	actions := make([]string, 0, len(details.Available))
	for _, t := range details.Available {
		actions = append(actions, string(t))
	}
	return c.JSON(dto.TicketDetailResponse{
		Success:          true,
		Ticket:           ticketResponse(details.Ticket),
		Logs:             logs,
		AvailableActions: actions,
	})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	input, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(page.Tickets))
	for i := range page.Tickets {
		items = append(items, ticketResponse(&page.Tickets[i]))
	}
	return c.JSON(dto.TicketListResponse{
		Success: true,
		Tickets: items,
		Pagination: dto.PaginationResponse{
			CurrentPage:  page.Pagination.CurrentPage,
			TotalPages:   page.Pagination.TotalPages,
			TotalItems:   page.Pagination.TotalItems,
			ItemsPerPage: page.Pagination.ItemsPerPage,
		},
	})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.service.AddComment(c.UserContext(), actor, id, req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "message": res.Message})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListInput, error) {
	input := service.TicketListInput{
		Search: c.Query("search"),
		Page:   parseInt(c.Query("page"), 1),
	}
	for _, s := range splitList(c.Query("status")) {
		status := domain.TicketStatus(s)
		if !status.IsValid() {
			return input, apperrors.NewValidationError("invalid status filter", map[string]any{"status": s})
		}
		input.Statuses = append(input.Statuses, status)
	}
	for _, p := range splitList(c.Query("priority")) {
		priority := domain.TicketPriority(p)
		if !priority.IsValid() {
			return input, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": p})
		}
		input.Priorities = append(input.Priorities, priority)
	}
	for _, cat := range splitList(c.Query("category")) {
		category := domain.TicketCategory(cat)
		if !category.IsValid() {
			return input, apperrors.NewValidationError("invalid category filter", map[string]any{"category": cat})
		}
		input.Categories = append(input.Categories, category)
	}

	var err error
	if input.AssignedUserID, err = optionalID(c, "assigned_user_id"); err != nil {
		return input, err
	}
	if input.CompanyID, err = optionalID(c, "company_id"); err != nil {
		return input, err
	}
	return input, nil
}

func transitionResponse(res *service.Result) dto.TransitionResponse {
	return dto.TransitionResponse{
		Success: res.Success,
		Message: res.Message,
		Data:    ticketResponse(res.Ticket),
	}
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:             ticket.ID,
		CompanyID:      ticket.CompanyID,
		Title:          ticket.Title,
		Description:    ticket.Description,
		Category:       ticket.Category,
		Priority:       ticket.Priority,
		Address:        ticket.Address,
		Status:         ticket.Status,
		AssignedUserID: ticket.AssignedUserID,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
		ResolvedAt:     ticket.ResolvedAt,
		ClosedAt:       ticket.ClosedAt,
	}
}

func logResponse(entry domain.TicketLogEntry) dto.TicketLogResponse {
	return dto.TicketLogResponse{
		ID:          entry.ID,
		UserID:      entry.UserID,
		Action:      entry.Action,
		OldStatus:   entry.OldStatus,
		NewStatus:   entry.NewStatus,
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt,
	}
}
