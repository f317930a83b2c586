package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/delphix/dlpxdbprofiler/pkg/config"
)

// Config contains MySQL-specific connection options.
// The database is also the only schema the inspector reports.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	ConnectTimeout int // seconds
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// FromDatabase extracts the MySQL settings from the engine-tagged configuration.
func FromDatabase(db *config.Database) *Config {
	my := db.MySQL
	cfg := &Config{
		Host:           my.Host,
		Port:           my.Port,
		User:           my.User,
		Password:       my.Password,
		Database:       my.Database,
		ConnectTimeout: my.ConnectTimeout,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	return cfg
}

// Validate checks the fields the driver needs.
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
	return nil
}

// dsn renders a go-sql-driver DSN. The driver's Config handles escaping.
func dsn(cfg *Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(config.ResolveHostForDocker(cfg.Host), strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	if cfg.ConnectTimeout > 0 {
		mc.Timeout = time.Duration(cfg.ConnectTimeout) * time.Second
	}
	return mc.FormatDSN()
}
