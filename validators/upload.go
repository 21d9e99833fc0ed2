package validators

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/viper"
)

var (
	ErrFileNameEmpty       = errors.New("no file name provided")
	ErrFileNameTooLong     = errors.New("file name is too long")
	ErrFileTypeUnsupported = errors.New("unsupported file type")
)

// UploadValidator checks the name and declared type of a file a client is
// about to upload. The type must be one of upload.allowed_types, aliases
// known to mimetype are accepted.
func UploadValidator(filename, contentType string) error {
	name := strings.TrimSpace(filepath.Base(filename))
	if name == "" || name == "." || name == "/" {
		return ErrFileNameEmpty
	}

	if len(name) > viper.GetInt("upload.max_name_length") {
		return ErrFileNameTooLong
	}

	if !TypeAllowed(contentType) {
		return ErrFileTypeUnsupported
	}

	return nil
}

// TypeAllowed reports whether a MIME type is in upload.allowed_types
func TypeAllowed(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	if contentType == "" {
		return false
	}

	allowed := viper.GetStringSlice("upload.allowed_types")
	if slices.Contains(allowed, contentType) {
		return true
	}

	m := mimetype.Lookup(contentType)
	if m == nil {
		return false
	}

	return slices.ContainsFunc(allowed, m.Is)
}
