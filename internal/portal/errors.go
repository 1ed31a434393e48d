package portal

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"parish-portal/internal/platform"
)

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func NotFoundError(resource string) *AppError {
	return &AppError{Code: "NOT_FOUND", Status: 404, Message: fmt.Sprintf("%s not found", resource)}
}

// ErrorHandler is the central Fiber error handler. It maps the gateway's
// typed errors onto user-facing responses; upstream credential problems are
// an operator concern and surface as an opaque 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
	}

	var reqErr *platform.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.NotFound():
			return c.Status(404).JSON(ErrorResponse{Error: &AppError{
				Code: "NOT_FOUND", Message: fmt.Sprintf("%s not found", reqErr.Resource),
			}})
		case reqErr.StatusCode == 403:
			return c.Status(403).JSON(ErrorResponse{Error: &AppError{
				Code: "FORBIDDEN", Message: "Upstream refused the request",
			}})
		default:
			log.Printf("ERROR: %v", reqErr)
			return c.Status(502).JSON(ErrorResponse{Error: &AppError{
				Code: "UPSTREAM_ERROR", Message: "Upstream request failed",
			}})
		}
	}

	var malformed *platform.MalformedPayloadError
	if errors.As(err, &malformed) {
		log.Printf("ERROR: %v", malformed)
		return c.Status(502).JSON(ErrorResponse{Error: &AppError{
			Code: "UPSTREAM_ERROR", Message: "Upstream returned a malformed response",
		}})
	}

	var authErr *platform.AuthError
	if errors.As(err, &authErr) {
		log.Printf("ERROR: %v", authErr)
		return c.Status(500).JSON(ErrorResponse{Error: &AppError{
			Code: "INTERNAL_ERROR", Message: "Internal server error",
		}})
	}

	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(ErrorResponse{
		Error: &AppError{Code: "INTERNAL_ERROR", Message: "Internal server error"},
	})
}
