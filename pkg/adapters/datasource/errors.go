package datasource

import (
	"fmt"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/logging"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// Endpoint identifies a source database in error messages.
type Endpoint struct {
	Engine models.EngineType
	User   string
	Host   string
	Port   int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s %s@%s:%d", e.Engine.DisplayName(), e.User, e.Host, e.Port)
}

// ConnectError reports a source database that could not be reached. The
// driver error is sanitized because drivers echo DSNs that embed passwords.
func ConnectError(engine models.EngineType, user, host string, port int, err error) error {
	ep := Endpoint{Engine: engine, User: user, Host: host, Port: port}
	return &apperrors.Error{
		Kind:    apperrors.KindRemoteUnavailable,
		Op:      "datasource.Connect",
		Message: "failed to connect to " + ep.String(),
		Detail:  logging.SanitizeError(err),
		Hint:    fmt.Sprintf("check the DBP_%s_* settings and that the database accepts connections", envPrefix(engine)),
		Err:     err,
	}
}

// QueryError reports a discovery query that failed after the connection was
// established, e.g. because the database went away mid-discovery.
func QueryError(ep Endpoint, what string, err error) error {
	return &apperrors.Error{
		Kind:    apperrors.KindRemoteUnavailable,
		Op:      "datasource.Query",
		Message: fmt.Sprintf("failed to %s on %s", what, ep),
		Detail:  logging.SanitizeError(err),
		Hint:    fmt.Sprintf("check that the database is still reachable and that DBP_%s_USER can read the catalog", envPrefix(ep.Engine)),
		Err:     err,
	}
}

func envPrefix(engine models.EngineType) string {
	switch engine {
	case models.EngineOracle:
		return "ORACLE"
	case models.EngineMSSQL:
		return "MSSQL"
	case models.EnginePostgres:
		return "POSTGRES"
	case models.EngineMySQL:
		return "MYSQL"
	}
	return "DB"
}
