// Package config defines the process-wide configuration consumed by the
// server and the resource layer. The API flags are passed explicitly to
// the dispatch core and translator at construction; nothing reads global
// state ad hoc.
package config

// Config holds all application configuration, organized into logical
// groups.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	API      APIConfig      `mapstructure:"api" validate:"required"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the storage backend settings. An empty URL runs
// the server on the in-memory layer with seed data.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig contains the optional bearer-token settings. An empty secret
// disables the auth middleware.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
}

// APIConfig enumerates the behavior flags of the resource layer.
type APIConfig struct {
	// Debug surfaces unexpected error detail instead of the generic
	// message.
	Debug bool `mapstructure:"debug"`

	// PropagateError surfaces the stringified error text on unexpected
	// failures even outside debug mode. The key spelling is part of the
	// inherited wire contract.
	PropagateError bool `mapstructure:"propogate_error"`

	// ETag enables the conditional-request protocol.
	ETag bool `mapstructure:"etag"`

	// SoftDelete turns deletes of soft-delete capable resources into
	// updates of their deleted_at field.
	SoftDelete bool `mapstructure:"soft_delete"`

	// DasherizeAPI translates dashed relationship URL segments to
	// underscored field names.
	DasherizeAPI bool `mapstructure:"dasherize_api"`

	// MaxPageSize clamps client-requested page sizes. Zero disables the
	// clamp.
	MaxPageSize int `mapstructure:"max_page_size" validate:"gte=0"`
}
