package object

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
)

// ErrInvalidKey is returned for storage keys escaping the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ErrNotFound is returned when no object is stored under a key.
var ErrNotFound = errors.New("object not found")

// Object describes a stored object.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Store defines the contract for saving and retrieving binary objects such as CV photos.
type Store interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, Object, error)
}

// Sniff reads up to 512 bytes from r and returns them with the detected content type.
func Sniff(r io.Reader) ([]byte, string, error) {
	var buf [512]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", err
	}
	return buf[:n], http.DetectContentType(buf[:n]), nil
}

// ContentTypeForKey guesses the content type of a key from its extension.
func ContentTypeForKey(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ExtensionFor returns a file extension for common image content types.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ""
}
