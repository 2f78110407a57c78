package apperrors

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/linkbio/internal/models"
)

// ErrorHandler renders errors returned by handlers and middleware. With
// detailed set, 5xx responses include the underlying error text.
func ErrorHandler(logger *slog.Logger, detailed bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		resp, status := render(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("Request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"code", resp.Code,
				"error", err,
			)
			if detailed {
				resp.Detail = err.Error()
			}
		}
		return c.Status(status).JSON(resp)
	}
}

func render(err error) (models.ErrorResponse, int) {
	if appErr, ok := As(err); ok {
		return models.ErrorResponse{Message: appErr.Message, Code: appErr.Code}, appErr.Kind.HTTPStatus()
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := CodeInternal
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			code = CodeNotFound
		case fiberErr.Code < fiber.StatusInternalServerError:
			code = CodeValidation
		}
		return models.ErrorResponse{Message: fiberErr.Message, Code: code}, fiberErr.Code
	}

	return models.ErrorResponse{Message: "Internal server error", Code: CodeInternal}, fiber.StatusInternalServerError
}
