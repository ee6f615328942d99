package firmware

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/drc-tools/drcflash/pkg/errors"
)

var (
	// ErrInvalidName means the image name is not a plain file name
	ErrInvalidName = errors.New("firmware: invalid image name")
	// ErrImageSize means the image is empty or over the size limit
	ErrImageSize = errors.New("firmware: invalid image size")
	// ErrInvalidHeader means the header is inconsistent with itself or the file
	ErrInvalidHeader = errors.New("firmware: invalid header")
)

// Validator checks images before they are handed to the DRC
type Validator struct {
	maxImageSize int64
}

// NewValidator creates a validator rejecting images larger than maxImageSize
func NewValidator(maxImageSize int64) *Validator {
	slog.Info("firmware_validator_init", "max_image_size_kb", maxImageSize/1024)
	return &Validator{maxImageSize: maxImageSize}
}

// ValidateName rejects image names that would escape the staging directory
func (v *Validator) ValidateName(name string) error {
	if name == "" || filepath.IsAbs(name) {
		slog.Error("firmware_name_validation_failed", "name", name, "reason", "absolute_or_empty")
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if clean := filepath.Clean(name); strings.HasPrefix(clean, "..") || strings.ContainsRune(clean, filepath.Separator) {
		slog.Error("firmware_name_validation_failed", "name", name, "reason", "path_traversal")
		return errors.Wrapf(ErrInvalidName, "%q is not a plain file name", name)
	}
	return nil
}

// ValidateSize checks the image is non-empty and within the size limit
func (v *Validator) ValidateSize(size int64) error {
	if size <= 0 {
		return errors.Wrap(ErrImageSize, "empty image")
	}
	if size > v.maxImageSize {
		slog.Error("firmware_size_exceeded", "size", size, "max_size", v.maxImageSize)
		return errors.Wrapf(ErrImageSize, "%d bytes exceeds max %d", size, v.maxImageSize)
	}
	return nil
}

// ValidateHeader checks a header against the size of the file carrying it
func (v *Validator) ValidateHeader(h Header, fileSize int64) error {
	if h.BlockSize == 0 {
		return errors.Wrap(ErrInvalidHeader, "block size is zero")
	}
	if h.SequencePerSession == 0 {
		return errors.Wrap(ErrInvalidHeader, "sequence per session is zero")
	}
	if payload := fileSize - HeaderSize; int64(h.ImageSize) > payload {
		slog.Error("firmware_image_truncated", "image_size", h.ImageSize, "payload", payload)
		return errors.Wrapf(ErrInvalidHeader, "header declares %d bytes, file carries %d", h.ImageSize, payload)
	}
	return nil
}

// ValidateFile checks the image at path; withHeader also parses and checks its header
func (v *Validator) ValidateFile(path string, withHeader bool) (*Header, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat image")
	}
	if err := v.ValidateSize(info.Size()); err != nil {
		return nil, err
	}
	if !withHeader {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()

	h, err := ReadHeader(f)
	if err != nil {
		return nil, err
	}
	if err := v.ValidateHeader(h, info.Size()); err != nil {
		return nil, err
	}

	slog.Info("firmware_header_validated",
		"version", h.VersionString(),
		"block_size", h.BlockSize,
		"sequence_per_session", h.SequencePerSession,
		"image_size", h.ImageSize)
	return &h, nil
}
