package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"brokerdesk/apperror"
	"brokerdesk/logger"
	"brokerdesk/models"
	"brokerdesk/utils"
)

// UploadedFileKey is the locals key holding the *models.File produced by
// FileUpload.
const UploadedFileKey = "uploadedFile"

// FileUpload stores the multipart file in field under destDir and hands the
// unsaved file record to the next handler. Requests without the field pass
// through untouched.
func FileUpload(field, destDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header, err := c.FormFile(field)
		if err != nil || header == nil {
			return c.Next()
		}

		path, err := utils.SaveUploadedFile(header, destDir)
		if err != nil {
			logger.FromFiber(c).Error("Failed to store upload", zap.Error(err))
			return JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to upload file!", nil)
		}

		c.Locals(UploadedFileKey, &models.File{
			ID:          models.NewID(),
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Path:        path,
			Metadata: datatypes.JSONMap{
				"field": field,
				"url":   utils.GetFileURL(path),
			},
		})

		return c.Next()
	}
}

// DiscardUpload deletes the stored copy of an upload whose request failed
// before anything was written. After a partially applied cascade the file
// record may exist, so the copy is kept.
func DiscardUpload(c *fiber.Ctx, cause error) {
	file := UploadedFile(c)
	if file == nil {
		return
	}
	var cascadeErr *apperror.CascadeError
	if errors.As(cause, &cascadeErr) {
		return
	}
	if err := utils.RemoveUploadedFile(file.Path); err != nil {
		logger.FromFiber(c).Warn("Failed to remove upload", zap.Error(err))
	}
}

// UploadedFile returns the file stored by FileUpload, if any.
func UploadedFile(c *fiber.Ctx) *models.File {
	file, _ := c.Locals(UploadedFileKey).(*models.File)
	return file
}
