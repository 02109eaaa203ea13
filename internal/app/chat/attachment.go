package chat

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"skymessage/internal/pkg/errs"
)

const (
	// MaxAttachmentSizeMB is the attachment size cap in megabytes.
	MaxAttachmentSizeMB = 5

	// MaxAttachmentSize is the attachment size cap in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024

	// PresignedURLDuration is how long a presigned upload or download
	// URL stays valid.
	PresignedURLDuration = 5 * time.Minute
)

// AllowedMIMETypes is the set of permitted attachment MIME types.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ExtToMIME maps permitted file extensions to their MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// AttachmentKeyPrefix returns the storage key prefix that every
// attachment of the given chat must carry. Send requests referencing a
// key outside their chat's prefix are rejected.
func AttachmentKeyPrefix(chatID int64) string {
	return fmt.Sprintf("chats/%d/", chatID)
}

// ValidateFileSize checks the declared size against the cap.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// ValidateFileType checks that the extension and MIME type are allowed
// and agree with each other.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok || expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	return nil
}
