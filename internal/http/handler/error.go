package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"refman/internal/http/middleware"
	"refman/internal/logger"
	"refman/internal/model"
	"refman/internal/repository"
	"refman/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func requestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}

// writeError writes a standardized JSON error response. message must be safe to show to clients.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	})
}

func notFound(c *fiber.Ctx, what string) error {
	return writeError(c, fiber.StatusNotFound, "NOT_FOUND", what+" not found")
}

// serviceError maps service and repository errors onto HTTP responses.
// Validation messages are passed through; anything unexpected becomes a bare 500.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrIDRequired), errors.Is(err, model.ErrTitleRequired):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrInvalidImportMode):
		return writeError(c, fiber.StatusBadRequest, "INVALID_MODE", err.Error())
	case errors.Is(err, model.ErrMalformedSource):
		return writeError(c, fiber.StatusBadRequest, "MALFORMED_SOURCE", err.Error())
	case errors.Is(err, service.ErrInvalidBackupKey):
		return writeError(c, fiber.StatusBadRequest, "INVALID_KEY", err.Error())
	case errors.Is(err, repository.ErrDuplicateID):
		return writeError(c, fiber.StatusConflict, "DUPLICATE_ID", "a reference with this id already exists")
	case errors.Is(err, service.ErrBackupNotFound):
		return notFound(c, "backup")
	case errors.Is(err, service.ErrBackupsDisabled):
		return writeError(c, fiber.StatusNotImplemented, "BACKUPS_DISABLED", err.Error())
	case errors.Is(err, repository.ErrStorageUnavailable):
		logRequestError(c, err)
		return writeError(c, fiber.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable")
	default:
		logRequestError(c, err)
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func logRequestError(c *fiber.Ctx, err error) {
	logger.WithComponent("http").ErrorContext(c.UserContext(), "request failed",
		slog.String("request_id", requestIDFromCtx(c)),
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Any("err", err),
	)
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "BODY_TOO_LARGE", "request body too large")
		default:
			logRequestError(c, err)
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
