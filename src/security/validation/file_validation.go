package validation

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/tradejournal/backend/src/logger"
)

// AllowedImageContentTypes is a map for quick lookup of allowed client-declared MIME types.
var AllowedImageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateImageContentType checks the Content-Type header provided by the client.
func ValidateImageContentType(contentType string) error {
	normalized := strings.ToLower(strings.Split(contentType, ";")[0])
	if !AllowedImageContentTypes[normalized] {
		logger.L.Warn("Disallowed client-declared Content-Type for image upload", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for image upload", contentType)
	}
	return nil
}

// ValidateImageContentByMagicBytes checks the actual file content signature (magic bytes).
// It returns the detected content type and an error if validation fails.
func ValidateImageContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 512) // Read first 512 bytes for MIME detection
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// Reset the read pointer so the uploader can read the full file.
	_, seekErr := file.Seek(0, io.SeekStart)
	if seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detectedContentType := strings.ToLower(strings.Split(http.DetectContentType(buffer[:n]), ";")[0])
	if !AllowedImageContentTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("detected file content type '%s' is not an allowed image type", detectedContentType)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}
