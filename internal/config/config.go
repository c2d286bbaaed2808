package config

import "time"

// Config holds server configuration values.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxSessions     int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Storage         Storage       `mapstructure:"storage" yaml:"storage"`
	Admin           Admin         `mapstructure:"admin" yaml:"admin"`
}

// Storage selects and locates the account persistence backend.
type Storage struct {
	// Driver is "flatfile" or "sqlite".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path is the account file (flatfile) or database file (sqlite).
	Path string `mapstructure:"path" yaml:"path"`
}

// Admin configures the optional operational HTTP surface.
type Admin struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Storage driver names.
const (
	DriverFlatfile = "flatfile"
	DriverSQLite   = "sqlite"
)

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ListenAddr:      ":59001",
		MaxSessions:     500,
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
		Storage: Storage{
			Driver: DriverFlatfile,
			Path:   "users.db",
		},
		Admin: Admin{
			Enabled: false,
			Addr:    ":8080",
		},
	}
}
