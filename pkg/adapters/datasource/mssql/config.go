package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/delphix/dlpxdbprofiler/pkg/config"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Encrypt is passed through to the driver: "disable", "false", "true" or "strict".
	Encrypt           string
	ConnectionTimeout int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromDatabase extracts the SQL Server settings from the engine-tagged configuration.
func FromDatabase(db *config.Database) *Config {
	ms := db.MSSQL
	cfg := &Config{
		Host:              ms.Host,
		Port:              ms.Port,
		Database:          ms.Database,
		Username:          ms.User,
		Password:          ms.Password,
		Encrypt:           ms.Encrypt,
		ConnectionTimeout: ms.ConnectTimeout,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout()
	}
	return cfg
}

// Validate checks the fields a SQL authentication login needs.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Username == "" {
		return fmt.Errorf("username is required for SQL authentication")
	}
	return nil
}

// connectionString builds a sqlserver:// URL for SQL authentication.
func connectionString(cfg *Config) string {
	query := url.Values{}
	query.Add("database", cfg.Database)

	encrypt := cfg.Encrypt
	if encrypt == "" {
		encrypt = "disable"
	}
	query.Add("encrypt", encrypt)

	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		config.ResolveHostForDocker(cfg.Host),
		cfg.Port,
		query.Encode(),
	)
}
