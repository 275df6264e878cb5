// utils/file_utils.go
package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	// Base directory for storing uploaded files
	uploadBaseDir = "uploads"
	// Base URL for serving files
	baseURL = "/uploads"
	// Maximum avatar size (5MB)
	maxAvatarSize = 5 * 1024 * 1024
	// Avatars are downscaled to this width
	avatarMaxWidth = 512
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// InitializeStorage creates the directories for uploaded files
func InitializeStorage() error {
	for _, dir := range []string{uploadBaseDir, filepath.Join(uploadBaseDir, "avatars")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %v", dir, err)
		}
	}
	return nil
}

// ValidateAvatarFile checks size and extension of an uploaded avatar
func ValidateAvatarFile(file *multipart.FileHeader) error {
	if file.Size > maxAvatarSize {
		return errors.New("file too large! Maximum size is 5MB")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		return errors.New("only image files are allowed")
	}

	return nil
}

// SaveAvatarFile stores an uploaded avatar under a random filename and
// returns its public URL. GIFs are stored as uploaded; other formats are
// decoded and downscaled before saving.
func SaveAvatarFile(file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %v", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	filename := uuid.New().String() + ext
	destPath := filepath.Join(uploadBaseDir, "avatars", filename)

	if ext == ".gif" {
		dst, err := os.Create(destPath)
		if err != nil {
			return "", fmt.Errorf("failed to create file: %v", err)
		}
		defer dst.Close()

		if _, err := io.Copy(dst, src); err != nil {
			return "", fmt.Errorf("failed to save file: %v", err)
		}
		return baseURL + "/avatars/" + filename, nil
	}

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %v", err)
	}

	if img.Bounds().Dx() > avatarMaxWidth {
		img = imaging.Resize(img, avatarMaxWidth, 0, imaging.Lanczos)
	}

	if err := imaging.Save(img, destPath, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to save image: %v", err)
	}

	return baseURL + "/avatars/" + filename, nil
}

// RemoveUploadedFile deletes a previously stored upload given its public URL.
// Missing files are ignored.
func RemoveUploadedFile(publicURL string) {
	if !strings.HasPrefix(publicURL, baseURL+"/") {
		return
	}
	local := filepath.Join(uploadBaseDir, strings.TrimPrefix(publicURL, baseURL+"/"))
	os.Remove(local)
}
