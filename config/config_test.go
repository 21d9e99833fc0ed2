package config

import (
	"os"
	"path/filepath"
	"testing"

	v "github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired() {
	SetDefaults()

	v.Set("aws.bucket", "clips")
	v.Set("aws.region", "eu-central-1")
	v.Set("processing.endpoint", "https://example.modal.run")
	v.Set("processing.token", "token")
	v.Set("stripe.secret_key", "sk_test")
	v.Set("stripe.webhook_secret", "whsec_test")
	v.Set("stripe.packs.small.price_id", "price_small")
	v.Set("stripe.packs.medium.price_id", "price_medium")
	v.Set("stripe.packs.large.price_id", "price_large")
}

func TestValidate(t *testing.T) {
	t.Cleanup(v.Reset)

	setRequired()
	require.NoError(t, Validate())

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"bad mode", "app.mode", "both"},
		{"bad log level", "app.log_level", "verbose"},
		{"bad driver", "database.driver", "mysql"},
		{"no endpoint", "processing.endpoint", ""},
		{"negative retries", "workflow.retries", -1},
		{"no concurrency", "workflow.concurrency", 0},
		{"no pack price", "stripe.packs.large.price_id", ""},
		{"bad storage", "storage.type", "gcs"},
		{"mail without host", "mail.enabled", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v.Reset()
			setRequired()
			v.Set(tt.key, tt.value)

			assert.Error(t, Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	t.Cleanup(v.Reset)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[workflow]
retries = 3

[credits]
signup_bonus = 25
`), 0o644))

	require.NoError(t, Load(path))
	assert.Equal(t, 3, v.GetInt("workflow.retries"))
	assert.Equal(t, 25, v.GetInt("credits.signup_bonus"))
	assert.Equal(t, 10, v.GetInt("workflow.concurrency"))
}
