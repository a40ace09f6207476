package object

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for upload names that cannot be stored.
var ErrInvalidName = errors.New("invalid file name")

const maxNameLength = 64

// OwnerPrefix is the key segment of an owner. It hides the raw user id,
// which may contain characters such as ':'.
func OwnerPrefix(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:16])
}

// CleanFileName keeps letters, digits, '.', '-' and '_' of name, folding
// separators and spaces to '_'. Traversal patterns are rejected.
func CleanFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == '/', r == '\\', r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "", ErrInvalidName
	}
	if len(out) > maxNameLength {
		ext := path.Ext(out)
		out = out[:maxNameLength-len(ext)] + ext
	}
	return out, nil
}

// NewKey builds a unique storage key for an upload of ownerID. The extension
// follows the sniffed content type when it is a known image type.
func NewKey(ownerID, fileName, contentType string) (string, error) {
	clean, err := CleanFileName(fileName)
	if err != nil {
		return "", err
	}
	ext := ExtensionFor(contentType)
	if ext == "" {
		ext = path.Ext(clean)
	}
	base := strings.TrimSuffix(clean, path.Ext(clean))
	if base == "" {
		base = "file"
	}
	return path.Join(OwnerPrefix(ownerID), uuid.NewString()+"_"+base+ext), nil
}
