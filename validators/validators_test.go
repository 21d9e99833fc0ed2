package validators

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	e, err := NormalizeEmail("  User@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", e)

	_, err = NormalizeEmail("")
	assert.ErrorIs(t, err, ErrEmailEmpty)

	_, err = NormalizeEmail("not-an-email")
	assert.ErrorIs(t, err, ErrEmailInvalid)

	_, err = NormalizeEmail("Name <user@example.com>")
	assert.ErrorIs(t, err, ErrEmailInvalid)
}

func TestPasswordValidator(t *testing.T) {
	assert.ErrorIs(t, PasswordValidator(""), ErrPasswordEmpty)
	assert.ErrorIs(t, PasswordValidator("short"), ErrPasswordTooShort)
	assert.ErrorIs(t, PasswordValidator(strings.Repeat("a", 256)), ErrPasswordTooLong)
	assert.NoError(t, PasswordValidator("long enough"))
}

func TestUploadValidator(t *testing.T) {
	viper.Set("upload.allowed_types", []string{"video/mp4"})
	viper.Set("upload.max_name_length", 20)
	t.Cleanup(viper.Reset)

	assert.NoError(t, UploadValidator("episode.mp4", "video/mp4"))
	assert.NoError(t, UploadValidator("episode.mp4", "Video/MP4; codecs=avc1"))
	assert.ErrorIs(t, UploadValidator("episode.mov", "video/quicktime"), ErrFileTypeUnsupported)
	assert.ErrorIs(t, UploadValidator("episode.mp4", ""), ErrFileTypeUnsupported)
	assert.ErrorIs(t, UploadValidator("", "video/mp4"), ErrFileNameEmpty)
	assert.ErrorIs(t, UploadValidator(strings.Repeat("a", 21), "video/mp4"), ErrFileNameTooLong)
}
