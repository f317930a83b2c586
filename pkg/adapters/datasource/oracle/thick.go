//go:build godror

package oracle

import (
	"database/sql"

	"github.com/godror/godror"
)

// ThickAvailable reports whether the Instant Client driver is compiled in.
const ThickAvailable = true

// openThick uses godror, which loads the Oracle Instant Client at runtime.
func openThick(cfg *Config) (*sql.DB, error) {
	var params godror.ConnectionParams
	params.Username = cfg.User
	params.Password = godror.NewPassword(cfg.Password)
	params.ConnectString = cfg.connectDescriptor()
	params.LibDir = cfg.ClientLibDir
	return sql.OpenDB(godror.NewConnector(params)), nil
}
