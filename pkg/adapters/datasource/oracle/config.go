package oracle

import (
	"fmt"
	"strings"

	"github.com/delphix/dlpxdbprofiler/pkg/config"
)

// Driver modes.
const (
	ModeThin  = "thin"
	ModeThick = "thick"
)

// Config contains Oracle-specific connection options.
// Exactly one of SID and ServiceName is set.
type Config struct {
	Host           string
	Port           int
	SID            string
	ServiceName    string
	User           string
	Password       string
	DriverMode     string
	ClientLibDir   string // thick mode only
	ConnectTimeout int    // seconds
}

// DefaultPort returns the default listener port.
func DefaultPort() int {
	return 1521
}

// FromDatabase extracts the Oracle settings from the engine-tagged configuration.
func FromDatabase(db *config.Database) *Config {
	ora := db.Oracle
	cfg := &Config{
		Host:           ora.Host,
		Port:           ora.Port,
		SID:            ora.SID,
		ServiceName:    ora.ServiceName,
		User:           ora.User,
		Password:       ora.Password,
		DriverMode:     ora.DriverMode,
		ClientLibDir:   ora.ClientLibDir,
		ConnectTimeout: ora.ConnectTimeout,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.DriverMode == "" {
		cfg.DriverMode = ModeThin
	}
	return cfg
}

// Validate checks the listener address and the SID/service choice.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	switch {
	case c.SID != "" && c.ServiceName != "":
		return fmt.Errorf("SID and service name are mutually exclusive")
	case c.SID == "" && c.ServiceName == "":
		return fmt.Errorf("one of SID or service name is required")
	}
	switch c.DriverMode {
	case ModeThin, ModeThick:
	default:
		return fmt.Errorf("invalid driver mode: %s (must be thin or thick)", c.DriverMode)
	}
	return nil
}

// connectDescriptor renders the address for the thick client. A service name
// uses easy connect; a SID needs a full descriptor.
func (c *Config) connectDescriptor() string {
	host := config.ResolveHostForDocker(c.Host)
	if c.ServiceName != "" {
		return fmt.Sprintf("%s:%d/%s", host, c.Port, c.ServiceName)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "(DESCRIPTION=(ADDRESS=(PROTOCOL=TCP)(HOST=%s)(PORT=%d))", host, c.Port)
	if c.ConnectTimeout > 0 {
		fmt.Fprintf(&b, "(CONNECT_TIMEOUT=%d)", c.ConnectTimeout)
	}
	fmt.Fprintf(&b, "(CONNECT_DATA=(SID=%s)))", c.SID)
	return b.String()
}
