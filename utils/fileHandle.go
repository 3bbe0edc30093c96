package utils

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SaveUploadedFile copies an uploaded file into destDir under a fresh name
// and returns the stored path.
func SaveUploadedFile(file *multipart.FileHeader, destDir string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer src.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errors.Wrap(err, "create upload dir")
	}

	filePath := filepath.Join(destDir, uuid.NewString()+filepath.Ext(file.Filename))
	dst, err := os.Create(filePath)
	if err != nil {
		return "", errors.Wrap(err, "create upload")
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", errors.Wrap(err, "write upload")
	}
	return filePath, nil
}

// RemoveUploadedFile deletes a stored upload. A missing file is not an error.
func RemoveUploadedFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove upload")
	}
	return nil
}

func GetFileURL(filePath string) string {
	if filePath == "" {
		return ""
	}
	return "/uploads/" + filepath.Base(filePath)
}
