package portal

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"parish-portal/internal/authz"
)

// SimulationHandler lets administrators act under a different role set for
// debugging. The directive lives in a short-lived cookie and never persists
// beyond it.
type SimulationHandler struct {
	adminRole string
}

func NewSimulationHandler(adminRole string) *SimulationHandler {
	return &SimulationHandler{adminRole: adminRole}
}

const overrideCookieTTL = time.Hour

// Set handles PUT /api/simulation.
func (h *SimulationHandler) Set(c *fiber.Ctx) error {
	id := CurrentIdentity(c)
	if id == nil {
		return UnauthorizedError("Missing or invalid session")
	}
	if !id.HasRole(h.adminRole) {
		return ForbiddenError("Role simulation requires the administrator role")
	}

	var body authz.Override
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	switch body.Kind {
	case authz.OverrideRoles:
	case authz.OverrideImpersonate:
		if body.TargetID <= 0 {
			return NewAppError("INVALID_PAYLOAD", 400, "Impersonation requires a target contact id")
		}
	default:
		return NewAppError("INVALID_PAYLOAD", 400, "Unknown simulation kind")
	}

	encoded, err := body.Encode()
	if err != nil {
		return NewAppError("INTERNAL_ERROR", 500, "Failed to encode simulation directive")
	}

	c.Cookie(&fiber.Cookie{
		Name:     authz.OverrideCookie,
		Value:    encoded,
		Expires:  time.Now().Add(overrideCookieTTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"data": body})
}

// Clear handles DELETE /api/simulation.
func (h *SimulationHandler) Clear(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     authz.OverrideCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"message": "Simulation cleared"})
}
