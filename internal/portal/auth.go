package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"parish-portal/internal/authz"
	"parish-portal/internal/platform"
	"parish-portal/internal/session"
)

// AuthHandler signs portal users in and out. Credentials are verified by the
// upstream platform's delegated OAuth grant — the portal stores no passwords.
type AuthHandler struct {
	client        *platform.Client
	cred          platform.Credential
	sessionSecret string
}

func NewAuthHandler(client *platform.Client, cred platform.Credential, sessionSecret string) *AuthHandler {
	return &AuthHandler{client: client, cred: cred, sessionSecret: sessionSecret}
}

const userContextProcedure = "api_Portal_GetUserContext"

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return UnauthorizedError("Email and password are required")
	}

	ctx := c.Context()

	// Verify the credentials against the upstream. A rejected grant is an
	// ordinary wrong-password outcome here, not an operator error.
	if _, err := platform.PasswordGrant(ctx, nil, h.cred, body.Email, body.Password); err != nil {
		return UnauthorizedError("Invalid email or password")
	}

	userID, roles, err := h.userContext(ctx, body.Email)
	if err != nil {
		return err
	}

	token, err := session.Mint(body.Email, roles, userID, h.sessionSecret)
	if err != nil {
		return NewAppError("INTERNAL_ERROR", 500, "Failed to create session")
	}

	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Expires:  time.Now().Add(session.TTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{"data": fiber.Map{
		"email":   body.Email,
		"roles":   roles,
		"user_id": userID,
	}})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	c.Cookie(&fiber.Cookie{
		Name:    authz.OverrideCookie,
		Value:   "",
		Expires: time.Now().Add(-time.Hour),
	})
	return c.JSON(fiber.Map{"message": "Signed out"})
}

// userContext loads the user's contact id and role memberships from the
// platform.
func (h *AuthHandler) userContext(ctx context.Context, email string) (int, []string, error) {
	payload, err := h.client.CallAndUnwrap(ctx, userContextProcedure, map[string]any{
		"@Email": email,
	})
	if err != nil {
		return 0, nil, err
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, nil, fmt.Errorf("unexpected user context payload %T", payload)
	}

	userID := 0
	if v, ok := m["Contact_ID"].(float64); ok {
		userID = int(v)
	}

	var roles []string
	if items, ok := m["Roles"].([]any); ok {
		for _, item := range items {
			switch v := item.(type) {
			case string:
				roles = append(roles, v)
			case map[string]any:
				if name, ok := v["Role_Name"].(string); ok {
					roles = append(roles, name)
				}
			}
		}
	}

	return userID, roles, nil
}

// RegisterAuthRoutes registers the sign-in/out endpoints (no auth required).
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	auth := app.Group("/api/auth")
	auth.Post("/login", h.Login)
	auth.Post("/logout", h.Logout)
}
