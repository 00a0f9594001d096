package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/tradeledger/src/logger"
)

var ErrNotText = errors.New("file content is not text")

// allowedDetectedTypes are the sniffed MIME types a broker CSV export can
// legitimately produce. Binary fallbacks (application/octet-stream) are
// rejected: every supported broker exports plain text.
var allowedDetectedTypes = map[string]bool{
	"text/plain":      true,
	"text/csv":        true,
	"application/csv": true,
}

// ValidateFileContentByMagicBytes checks the actual file content signature (magic bytes).
// It returns the detected content type and an error if validation fails.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// Reset so the parser can read the full file.
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detected := DetectContentType(buffer[:n])
	if !allowedDetectedTypes[detected] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detected)
		return detected, fmt.Errorf("%w: detected '%s'", ErrNotText, detected)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detected)
	return detected, nil
}

// DetectContentType sniffs data and returns the normalized MIME type
// without parameters (e.g. "text/plain").
func DetectContentType(data []byte) string {
	ct := http.DetectContentType(data)
	return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
}
