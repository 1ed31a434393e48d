package portal

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"parish-portal/internal/authz"
	"parish-portal/internal/platform"
)

// RecordsHandler is the sanctioned HTTP surface between app pages and the
// upstream platform: generic table CRUD and procedure invocation, each call
// gated by the caller's effective permission on the owning application.
type RecordsHandler struct {
	client   *platform.Client
	resolver *authz.Resolver
}

func NewRecordsHandler(client *platform.Client, resolver *authz.Resolver) *RecordsHandler {
	return &RecordsHandler{client: client, resolver: resolver}
}

// List handles GET /api/apps/:app/tables/:table.
func (h *RecordsHandler) List(c *fiber.Ctx) error {
	eff, err := h.permissions(c)
	if err != nil {
		return err
	}
	if !eff.HasAccess {
		return ForbiddenError("No access to this application")
	}

	q := platform.Query{
		Filter:  c.Query("filter"),
		OrderBy: c.Query("order"),
	}
	if sel := c.Query("select"); sel != "" {
		q.Select = splitList(sel)
	}
	if top := c.Query("top"); top != "" {
		if v, err := strconv.Atoi(top); err == nil && v > 0 {
			q.Top = v
		}
	}
	if skip := c.Query("skip"); skip != "" {
		if v, err := strconv.Atoi(skip); err == nil && v > 0 {
			q.Skip = v
		}
	}

	rows, err := h.client.Read(c.Context(), c.Params("table"), q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rows})
}

// Create handles POST /api/apps/:app/tables/:table.
func (h *RecordsHandler) Create(c *fiber.Ctx) error {
	eff, err := h.permissions(c)
	if err != nil {
		return err
	}
	if !eff.CanEdit {
		return ForbiddenError("No edit access to this application")
	}

	records, err := parseRecords(c)
	if err != nil {
		return err
	}

	created, err := h.client.Create(c.Context(), c.Params("table"), records, h.writeOptions(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": created})
}

// Update handles PUT /api/apps/:app/tables/:table.
func (h *RecordsHandler) Update(c *fiber.Ctx) error {
	eff, err := h.permissions(c)
	if err != nil {
		return err
	}
	if !eff.CanEdit {
		return ForbiddenError("No edit access to this application")
	}

	records, err := parseRecords(c)
	if err != nil {
		return err
	}

	updated, err := h.client.Update(c.Context(), c.Params("table"), records, h.writeOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

// Delete handles DELETE /api/apps/:app/tables/:table?id=1&id=2.
func (h *RecordsHandler) Delete(c *fiber.Ctx) error {
	eff, err := h.permissions(c)
	if err != nil {
		return err
	}
	if !eff.CanDelete {
		return ForbiddenError("No delete access to this application")
	}

	var ids []any
	c.Context().QueryArgs().VisitAll(func(key, val []byte) {
		if string(key) == "id" {
			ids = append(ids, string(val))
		}
	})
	if len(ids) == 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "At least one id is required")
	}

	if err := h.client.Delete(c.Context(), c.Params("table"), ids, h.writeOptions(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Deleted"})
}

// Procedure handles POST /api/apps/:app/procs/:proc.
func (h *RecordsHandler) Procedure(c *fiber.Ctx) error {
	eff, err := h.permissions(c)
	if err != nil {
		return err
	}
	if !eff.HasAccess {
		return ForbiddenError("No access to this application")
	}

	params := map[string]any{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&params); err != nil {
			return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
		}
	}

	payload, err := h.client.CallAndUnwrap(c.Context(), c.Params("proc"), params)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": payload})
}

// permissions resolves the caller's effective permission on the application
// named in the path.
func (h *RecordsHandler) permissions(c *fiber.Ctx) (authz.Effective, error) {
	id := CurrentIdentity(c)
	if id == nil {
		return authz.Effective{}, UnauthorizedError("Missing or invalid session")
	}
	return h.resolver.Resolve(c.Context(), *id, c.Params("app"))
}

// writeOptions attributes the upstream audit trail to the signed-in user.
func (h *RecordsHandler) writeOptions(c *fiber.Ctx) platform.WriteOptions {
	opts := platform.WriteOptions{}
	if id := CurrentIdentity(c); id != nil {
		opts.UserID = id.UserID
	}
	if sel := c.Query("select"); sel != "" {
		opts.Select = splitList(sel)
	}
	return opts
}

func parseRecords(c *fiber.Ctx) ([]platform.Record, error) {
	var records []platform.Record
	if err := c.BodyParser(&records); err != nil {
		// A single object is accepted as a batch of one.
		var one platform.Record
		if err := c.BodyParser(&one); err != nil {
			return nil, NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
		}
		records = []platform.Record{one}
	}
	if len(records) == 0 {
		return nil, NewAppError("INVALID_PAYLOAD", 400, "At least one record is required")
	}
	return records, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
