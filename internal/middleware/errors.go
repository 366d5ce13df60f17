package middleware

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v3"

	apperrors "github.com/Taichi-iskw/yt-rank/internal/errors"
)

// ErrorResponse writes the standard API error body
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// StatusFor maps an AppError code to an HTTP status
func StatusFor(code string) int {
	switch code {
	case apperrors.CodeInvalidArg:
		return fiber.StatusBadRequest
	case apperrors.CodeNotFound:
		return fiber.StatusNotFound
	case apperrors.CodeConflict:
		return fiber.StatusConflict
	case apperrors.CodeQuotaExceeded:
		return fiber.StatusTooManyRequests
	case apperrors.CodeExternal, apperrors.CodeTransport, apperrors.CodeInvalidCredential:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// AppErrorResponse writes err using its AppError code; internal details are not exposed
func AppErrorResponse(c fiber.Ctx, err error) error {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = apperrors.CodeInternal
	}
	status := StatusFor(code)

	message := "internal error"
	var appErr *apperrors.AppError
	if status < fiber.StatusInternalServerError && stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	return ErrorResponse(c, status, code, message)
}
