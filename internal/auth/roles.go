package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// RequireCompany ensures a company is authenticated.
func RequireCompany() fiber.Handler {
	return requireActor(func(a domain.Actor) bool { return a.IsCompany() })
}

// RequireStaff ensures a staff member with a known role is authenticated.
func RequireStaff() fiber.Handler {
	return requireActor(func(a domain.Actor) bool { return a.IsStaff() })
}

// RequireAdmin ensures the caller is an admin.
func RequireAdmin() fiber.Handler {
	return requireActor(func(a domain.Actor) bool { return a.IsAdmin() })
}

// RequireAuthenticated ensures caller is authenticated (company or staff).
func RequireAuthenticated() fiber.Handler {
	return requireActor(func(domain.Actor) bool { return true })
}

func requireActor(allowed func(domain.Actor) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !allowed(actor) {
			return apperrors.NewForbidden()
		}
		return c.Next()
	}
}
