package portal

import (
	"log"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"parish-portal/internal/authz"
	"parish-portal/internal/session"
)

// Authorizer gates inbound requests: identity extraction from the session
// token, the administrator-only role-simulation override, and the permission
// decision for the application that owns the path.
type Authorizer struct {
	cache     *authz.AppCache
	resolver  *authz.Resolver
	roles     authz.RoleSource
	secret    string
	adminRole string

	publicPrefixes []string
	signInPath     string
	deniedPath     string
}

// defaultPublicPrefixes bypass all checks: the API does its own per-operation
// gating, and the sign-in/denied/infra endpoints must stay reachable.
var defaultPublicPrefixes = []string{
	"/api/",
	"/sign-in",
	"/access-denied",
	"/health",
	"/metrics",
	"/embed/",
}

func NewAuthorizer(cache *authz.AppCache, resolver *authz.Resolver, roles authz.RoleSource, secret, adminRole string, extraPublic []string) *Authorizer {
	return &Authorizer{
		cache:          cache,
		resolver:       resolver,
		roles:          roles,
		secret:         secret,
		adminRole:      adminRole,
		publicPrefixes: append(append([]string{}, defaultPublicPrefixes...), extraPublic...),
		signInPath:     "/sign-in",
		deniedPath:     "/access-denied",
	}
}

// Pages returns the middleware for browser-facing routes: denial is a
// redirect, with the attempted path preserved for diagnostics.
func (a *Authorizer) Pages() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/" || a.isPublic(path) {
			return c.Next()
		}

		c.Locals("request_id", uuid.New().String())
		c.Set("X-Request-ID", c.Locals("request_id").(string))

		id, ok := a.identify(c)
		if !ok {
			return c.Redirect(a.signInPath+"?from="+url.QueryEscape(path), fiber.StatusFound)
		}

		app, err := a.cache.ByPath(c.Context(), path)
		if err != nil {
			return err
		}
		if app == nil {
			// Not a gated application; fail open for unmapped routes.
			c.Locals("identity", id)
			return c.Next()
		}

		eff, err := a.resolver.Resolve(c.Context(), *id, app.Key)
		if err != nil {
			return err
		}
		if !eff.HasAccess {
			return c.Redirect(a.deniedPath+"?path="+url.QueryEscape(path), fiber.StatusFound)
		}

		c.Locals("identity", id)
		c.Locals("permissions", eff)
		return c.Next()
	}
}

// RequireIdentity returns the middleware for the JSON API: same identity
// extraction and simulation handling as Pages, but denial is a 401 instead
// of a redirect. Permission checks happen per operation in the handlers.
func (a *Authorizer) RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("request_id", uuid.New().String())
		c.Set("X-Request-ID", c.Locals("request_id").(string))

		id, ok := a.identify(c)
		if !ok {
			return UnauthorizedError("Missing or invalid session")
		}
		c.Locals("identity", id)
		return c.Next()
	}
}

// identify decodes the session and applies any simulation override. The
// returned identity's role set is the effective one for this request.
func (a *Authorizer) identify(c *fiber.Ctx) (*authz.Identity, bool) {
	tokenStr := c.Cookies(session.CookieName)
	if tokenStr == "" {
		header := c.Get("Authorization")
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenStr = parts[1]
		}
	}
	if tokenStr == "" {
		return nil, false
	}

	claims, err := session.Parse(tokenStr, a.secret)
	if err != nil {
		return nil, false
	}

	id := &authz.Identity{
		Email:  claims.Email,
		Roles:  claims.Roles,
		UserID: claims.UserID,
	}

	// Simulation override: administrators only, validated before branching.
	raw := c.Cookies(authz.OverrideCookie)
	if raw == "" || !id.HasRole(a.adminRole) {
		return id, true
	}

	override, err := authz.ParseOverride(raw)
	if err != nil {
		log.Printf("WARN: ignoring malformed simulation cookie: %v", err)
		return id, true
	}

	switch override.Kind {
	case authz.OverrideRoles:
		id.Roles = override.Roles
	case authz.OverrideImpersonate:
		roles, err := a.roles.RolesFor(c.Context(), override.TargetID)
		if err != nil {
			// Fail closed: the impersonated identity gets no roles. The
			// administrator's own roles must never leak into an
			// impersonation context on error.
			log.Printf("WARN: impersonation lookup for contact %d: %v", override.TargetID, err)
			roles = nil
		}
		id.Roles = roles
	}
	return id, true
}

// CurrentIdentity returns the effective identity set by the middleware.
func CurrentIdentity(c *fiber.Ctx) *authz.Identity {
	id, _ := c.Locals("identity").(*authz.Identity)
	return id
}

func (a *Authorizer) isPublic(path string) bool {
	for _, prefix := range a.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
