package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"brokerdesk/apperror"
	"brokerdesk/logger"
)

func JsonResponse(c *fiber.Ctx, statusCode int, success bool, message string, data interface{}) error {
	body := fiber.Map{"success": success}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(statusCode).JSON(body)
}

// ListResponse writes a page of items with the total count of matches.
func ListResponse(c *fiber.Ctx, data interface{}, totalCount int64) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":    true,
		"data":       data,
		"totalCount": totalCount,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, fields map[string]string) error {
	message := "Validation failed!"
	for _, msg := range fields {
		message = msg
		break
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
		"errors":  fields,
	})
}

// ErrorResponse writes err with the status of its kind. Partially applied
// cascades also report which steps were committed.
func ErrorResponse(c *fiber.Ctx, err error) error {
	status := apperror.StatusOf(err)
	body := fiber.Map{"success": false}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		body["message"] = appErr.Message
		if len(appErr.Fields) > 0 {
			body["errors"] = appErr.Fields
		}
	} else {
		body["message"] = "Something went wrong!"
	}

	var cascadeErr *apperror.CascadeError
	if errors.As(err, &cascadeErr) {
		body["message"] = cascadeErr.Error()
		if apperror.KindOf(cascadeErr.Err) == apperror.KindInternal {
			body["message"] = cascadeErr.Summary()
		}
		body["completedSteps"] = cascadeErr.Completed
		body["failedStep"] = cascadeErr.Failed
	}

	if status >= fiber.StatusInternalServerError || cascadeErr != nil {
		logger.FromFiber(c).Error("Request failed", zap.Error(err))
	}
	return c.Status(status).JSON(body)
}
