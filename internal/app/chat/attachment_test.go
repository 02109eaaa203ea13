package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"skymessage/internal/pkg/errs"
)

func TestValidateFileSize(t *testing.T) {
	cases := []struct {
		name     string
		size     int64
		wantCode int
	}{
		{"zero", 0, errs.ErrInvalidParams},
		{"negative", -1, errs.ErrInvalidParams},
		{"one byte", 1, 0},
		{"exactly the cap", MaxAttachmentSize, 0},
		{"over the cap", MaxAttachmentSize + 1, errs.ErrFileSizeTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFileSize(tc.size)
			if tc.wantCode == 0 {
				require.Nil(t, err)
			} else {
				require.NotNil(t, err)
				require.Equal(t, tc.wantCode, err.Code)
			}
		})
	}
}

func TestValidateFileType(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		mimeType string
		ok       bool
	}{
		{"jpeg", "photo.jpg", "image/jpeg", true},
		{"jpeg long ext", "photo.jpeg", "image/jpeg", true},
		{"png uppercase mime", "icon.png", "IMAGE/PNG", true},
		{"webp", "sticker.webp", "image/webp", true},
		{"gif", "loop.gif", "image/gif", true},
		{"disallowed mime", "doc.pdf", "application/pdf", false},
		{"mime and extension disagree", "photo.png", "image/jpeg", false},
		{"missing extension", "photo", "image/jpeg", false},
		{"bare dot", "photo.", "image/jpeg", false},
		{"svg not allowed", "vector.svg", "image/svg+xml", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFileType(tc.fileName, tc.mimeType)
			if tc.ok {
				require.Nil(t, err)
			} else {
				require.NotNil(t, err)
				require.Equal(t, errs.ErrFileTypeInvalid, err.Code)
			}
		})
	}
}

func TestAttachmentKeyPrefix(t *testing.T) {
	require.Equal(t, "chats/7/", AttachmentKeyPrefix(7))
}
