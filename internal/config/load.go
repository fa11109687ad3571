package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Shared validator for config struct tags.
var validate = validator.New()

// Load reads configuration from environment variables and, when present,
// a config file. Environment variables take precedence and use the
// STRATA_ prefix with underscores for nesting, e.g. STRATA_API_ETAG=true
// or STRATA_SERVER_PORT=8080.
func Load() (*Config, error) {
	return load(viper.New())
}

// LoadFromFile reads a specific config file plus the environment.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment plus defaults
		// must still produce a valid configuration.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// AutomaticEnv alone does not surface env-only keys through
	// Unmarshal, so bind every known key explicitly.
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %q: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var configKeys = []string{
	"server.port",
	"server.log_level",
	"database.url",
	"auth.jwt_secret",
	"api.debug",
	"api.propogate_error",
	"api.etag",
	"api.soft_delete",
	"api.dasherize_api",
	"api.max_page_size",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("api.debug", false)
	v.SetDefault("api.propogate_error", false)
	v.SetDefault("api.etag", false)
	v.SetDefault("api.soft_delete", true)
	v.SetDefault("api.dasherize_api", false)
	v.SetDefault("api.max_page_size", 100)
}
