package oracle

import (
	"database/sql"
	"strconv"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/delphix/dlpxdbprofiler/pkg/config"
)

// thinURL renders a go-ora URL. The SID travels as an option because the
// URL path only carries a service name.
func thinURL(cfg *Config) string {
	options := map[string]string{}
	if cfg.SID != "" {
		options["SID"] = cfg.SID
	}
	if cfg.ConnectTimeout > 0 {
		options["CONNECTION TIMEOUT"] = strconv.Itoa(cfg.ConnectTimeout)
	}
	return go_ora.BuildUrl(
		config.ResolveHostForDocker(cfg.Host),
		cfg.Port,
		cfg.ServiceName,
		cfg.User,
		cfg.Password,
		options,
	)
}

// openThin uses the pure-Go driver; no Oracle client installation is needed.
func openThin(cfg *Config) (*sql.DB, error) {
	return sql.Open("oracle", thinURL(cfg))
}
