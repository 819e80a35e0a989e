package errors

import (
	"os"
	"strings"
	"unicode"
)

// ValidateFolder checks that path names an existing, readable directory.
// The role ("source", "destination") is used in the message only.
func ValidateFolder(role, path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidFolder, "%s folder is not set", role)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidFolder, "%s folder contains invalid characters", role)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(ErrCodeInvalidFolder, "%s folder %q does not exist", role, path)
		}
		return Wrap(ErrCodeInvalidFolder, err, "%s folder %q is not accessible", role, path)
	}
	if !info.IsDir() {
		return New(ErrCodeInvalidFolder, "%s folder %q is not a directory", role, path)
	}
	return nil
}

// maxDimension bounds canvas sizes to something a JPEG encoder accepts.
const maxDimension = 65535

// ValidateDimensions checks a canvas size and grid shape.
func ValidateDimensions(width, height, rows, cols int) error {
	if width <= 0 || height <= 0 {
		return New(ErrCodeInvalidDimensions, "canvas size must be positive, got %dx%d", width, height)
	}
	if width > maxDimension || height > maxDimension {
		return New(ErrCodeInvalidDimensions, "canvas size %dx%d exceeds %d pixels", width, height, maxDimension)
	}
	if rows < 1 || cols < 1 {
		return New(ErrCodeInvalidDimensions, "grid must have at least one row and column, got %dx%d", rows, cols)
	}
	if rows > height || cols > width {
		return New(ErrCodeInvalidDimensions, "grid %dx%d does not fit a %dx%d canvas", rows, cols, width, height)
	}
	return nil
}

// ValidateInterval checks a refresh interval range in seconds.
func ValidateInterval(minSeconds, maxSeconds int) error {
	if minSeconds < 1 {
		return New(ErrCodeInvalidInterval, "minimum interval must be at least 1 second, got %d", minSeconds)
	}
	if maxSeconds < minSeconds {
		return New(ErrCodeInvalidInterval, "maximum interval %d is below minimum %d", maxSeconds, minSeconds)
	}
	return nil
}
