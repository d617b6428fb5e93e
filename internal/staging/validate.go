package staging

import (
	"path/filepath"
	"strings"

	"github.com/promptstudio/promptstudio/internal/failure"
)

// Policy holds the upload acceptance rules.
type Policy struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// Extension returns the lower-cased extension of filename if it is allowed.
func (p Policy) Extension(filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", failure.New(failure.BadRequest, "No file selected")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range p.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return ext, nil
		}
	}
	return "", failure.New(failure.BadRequest, "Invalid file type. Allowed: "+strings.Join(p.AllowedExtensions, ", "))
}

// Check validates the content of an upload with extension ext.
func (p Policy) Check(ext string, data []byte) error {
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return failure.New(failure.BadRequest, "File too large")
	}
	if ext == ".wav" {
		if msg := ValidateWAVHeader(data); msg != "" {
			return failure.New(failure.BadRequest, msg)
		}
	}
	return nil
}

// ValidateWAVHeader performs a basic RIFF/WAVE check and returns a message
// describing the problem, or "" if the header looks valid.
func ValidateWAVHeader(data []byte) string {
	if len(data) < 12 {
		return "file too small to be a valid WAV"
	}
	if string(data[0:4]) != "RIFF" {
		return "invalid WAV file: missing RIFF header"
	}
	if string(data[8:12]) != "WAVE" {
		return "invalid WAV file: missing WAVE format identifier"
	}
	return ""
}
