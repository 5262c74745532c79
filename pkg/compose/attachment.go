package compose

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/parley/pkg/llm"
)

// MaxAttachmentBytes is the largest file accepted as an attachment.
const MaxAttachmentBytes = 5 * 1024 * 1024

var (
	// ErrAttachmentTooLarge is returned for files above MaxAttachmentBytes.
	ErrAttachmentTooLarge = errors.New("attachment exceeds 5 MB")

	// ErrUnsupportedAttachment is returned for binary files that are not images.
	ErrUnsupportedAttachment = errors.New("attachment is neither text nor an image")
)

// LoadAttachment reads the file at path into an attachment.
func LoadAttachment(path string) (llm.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return llm.Attachment{}, fmt.Errorf("stat attachment: %w", err)
	}
	if info.Size() > MaxAttachmentBytes {
		return llm.Attachment{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrAttachmentTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	return NewAttachment(filepath.Base(path), data)
}

// NewAttachment classifies data as an image (kept as a data URL) or text.
func NewAttachment(name string, data []byte) (llm.Attachment, error) {
	if len(data) > MaxAttachmentBytes {
		return llm.Attachment{}, fmt.Errorf("%s: %w", name, ErrAttachmentTooLarge)
	}

	mimeType := detectMIME(name, data)
	if strings.HasPrefix(mimeType, "image/") {
		return llm.Attachment{
			Name:    name,
			Kind:    llm.AttachmentImage,
			DataURL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
		}, nil
	}

	if !utf8.Valid(data) {
		return llm.Attachment{}, fmt.Errorf("%s (%s): %w", name, mimeType, ErrUnsupportedAttachment)
	}
	return llm.Attachment{
		Name:    name,
		Kind:    llm.AttachmentText,
		Content: string(data),
	}, nil
}

func detectMIME(name string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		mediaType, _, err := mime.ParseMediaType(byExt)
		if err == nil {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(sniffed)
	return mediaType
}
