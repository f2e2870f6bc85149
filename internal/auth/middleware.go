package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and resolves the acting party once per request.
type AuthMiddleware struct {
	tokens    *TokenManager
	users     repository.UserRepository
	companies repository.CompanyRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, companies repository.CompanyRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, companies: companies}
}

// Handle enforces authentication for protected routes. The stored role is
// authoritative; the role claim in the token is informational.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	var actor domain.Actor
	switch claims.Subject {
	case domain.SubjectTypeCompany:
		company, err := m.companies.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("company not found")
			}
			return apperrors.MapError(err)
		}
		if !company.Active {
			return apperrors.NewUnauthorized("company inactive")
		}
		actor = domain.CompanyActor(company.ID)
	case domain.SubjectTypeStaff:
		user, err := m.users.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("user not found")
			}
			return apperrors.MapError(err)
		}
		if !user.Active {
			return apperrors.NewUnauthorized("user inactive")
		}
		actor = domain.StaffActor(user.ID, user.Role)
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated party.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return domain.Actor{}, false
	}
	actor, ok := val.(domain.Actor)
	return actor, ok && actor.IsAuthenticated()
}

// WithActor stores an actor on the request; used by tests and internal callers.
func WithActor(c *fiber.Ctx, actor domain.Actor) {
	c.Locals(actorKey, actor)
}
