package postgres

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/delphix/dlpxdbprofiler/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string // "disable", "require", "verify-ca", "verify-full"
	ConnectTimeout int    // seconds
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// FromDatabase extracts the PostgreSQL settings from the engine-tagged configuration.
func FromDatabase(db *config.Database) *Config {
	pg := db.Postgres
	cfg := &Config{
		Host:           pg.Host,
		Port:           pg.Port,
		User:           pg.User,
		Password:       pg.Password,
		Database:       pg.Database,
		SSLMode:        pg.SSLMode,
		ConnectTimeout: pg.ConnectTimeout,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	return cfg
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// do not break URL parsing. When running in Docker, localhost is resolved to
// the host alias so databases on the host machine stay reachable.
func buildConnectionString(cfg *Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	host := config.ResolveHostForDocker(cfg.Host)

	query := url.Values{}
	query.Set("sslmode", sslMode)
	if cfg.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(cfg.ConnectTimeout))
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		url.PathEscape(cfg.Database),
		query.Encode(),
	)
}
