// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configPath = pflag.String("config", "", "Path to a config.toml file")
	_          = pflag.String("mode", "all", "What to run: all, api or worker")

	validLogLevels     = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes  = []string{"s3", "r2"}
	validDatabaseTypes = []string{"postgres", "sqlite"}
	validModes         = []string{"all", "api", "worker"}
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlag("app.mode", pflag.Lookup("mode"))

	if err := Load(*configPath); err != nil {
		return err
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	return Validate()
}

// Load reads the config file at path, or config.toml in the working
// directory when path is empty, on top of the defaults. Environment
// variables override both, e.g. STRIPE_SECRET_KEY for stripe.secret_key.
func Load(path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	return nil
}

// SetDefaults registers every default value. Split out of Setup so tests
// can get a usable configuration without a config file.
func SetDefaults() {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.mode", "all")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost")
	v.SetDefault("host.ssl", false)
	v.SetDefault("host.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("jwt.ttl", 30*24*time.Hour)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.url_ttl", time.Hour)
	v.SetDefault("storage.upload_url_ttl", 15*time.Minute)

	v.SetDefault("upload.allowed_types", []string{"video/mp4"})
	v.SetDefault("upload.max_name_length", 245)

	v.SetDefault("processing.timeout", 15*time.Minute)

	v.SetDefault("workflow.retries", 1)
	v.SetDefault("workflow.concurrency", 10)
	v.SetDefault("workflow.lock_ttl", 30*time.Minute)
	v.SetDefault("workflow.step_retention", 30*24*time.Hour)
	v.SetDefault("workflow.cleanup_schedule", "@daily")

	v.SetDefault("credits.signup_bonus", 10)

	v.SetDefault("stripe.packs.small.credits", 50)
	v.SetDefault("stripe.packs.medium.credits", 150)
	v.SetDefault("stripe.packs.large.credits", 450)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.port", 587)

	v.SetDefault("security.rate_limit", 20)

	v.SetDefault("cloudflare.turnstile.enabled", false)
}

// Validate checks the loaded values. Everything that would make the
// app fail later at runtime should be caught here instead.
func Validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validModes, v.GetString("app.mode")) {
		return errors.New("invalid mode provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDatabaseTypes, v.GetString("database.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("database.dsn") == "" {
		return errors.New("database dsn can't be empty")
	}

	switch v.GetString("storage.type") {
	case "s3":
		if v.GetString("aws.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
		if v.GetString("aws.region") == "" {
			return errors.New("aws region can't be empty")
		}
	case "r2":
		if v.GetString("cloudflare.account_id") == "" {
			return errors.New("account id can't be empty")
		}
		if v.GetString("cloudflare.access_key_id") == "" {
			return errors.New("account access id can't be empty")
		}
		if v.GetString("cloudflare.secret_access_key") == "" {
			return errors.New("secret access key can't be empty")
		}
		if v.GetString("cloudflare.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return errors.New("invalid storage type provided")
	}

	if v.GetDuration("jwt.ttl") <= 0 {
		return errors.New("jwt.ttl must be bigger than 0")
	}

	if v.GetDuration("storage.url_ttl") <= 0 {
		return errors.New("storage.url_ttl must be bigger than 0")
	}

	if len(v.GetStringSlice("upload.allowed_types")) == 0 {
		zap.L().Warn("No upload.allowed_types specified, falling back to video/mp4")
		v.Set("upload.allowed_types", []string{"video/mp4"})
	}

	if v.GetString("processing.endpoint") == "" {
		return errors.New("processing endpoint can't be empty")
	}

	if v.GetString("processing.token") == "" {
		return errors.New("processing token can't be empty")
	}

	if v.GetInt("workflow.retries") < 0 {
		return errors.New("workflow.retries can't be negative")
	}

	if v.GetInt("workflow.concurrency") <= 0 {
		return errors.New("workflow.concurrency must be bigger than 0")
	}

	if v.GetInt("credits.signup_bonus") < 0 {
		return errors.New("credits.signup_bonus can't be negative")
	}

	if v.GetString("stripe.secret_key") == "" {
		return errors.New("stripe secret key can't be empty")
	}

	if v.GetString("stripe.webhook_secret") == "" {
		return errors.New("stripe webhook secret can't be empty")
	}

	for _, pack := range []string{"small", "medium", "large"} {
		if v.GetString("stripe.packs."+pack+".price_id") == "" {
			return fmt.Errorf("stripe.packs.%s.price_id can't be empty", pack)
		}
		if v.GetInt("stripe.packs."+pack+".credits") <= 0 {
			return fmt.Errorf("stripe.packs.%s.credits must be bigger than 0", pack)
		}
	}

	if v.GetBool("mail.enabled") {
		if v.GetString("mail.host") == "" || v.GetString("mail.sender") == "" {
			return errors.New("mail host and sender are required when mail is enabled")
		}
	}

	if !v.GetBool("cloudflare.turnstile.enabled") {
		fmt.Println("[WARNING]: Cloudflare's turnstile is disabled. Signups won't be guarded against bots")
	} else {
		if v.GetString("cloudflare.turnstile.secret_token") == "" {
			return errors.New("turnstile secret token is missing")
		}
	}

	return nil
}
