package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

var errConnReset = errors.New("read tcp 10.0.0.5:51234->10.0.0.9:3306: connection reset by peer")

// droppedDriver accepts connections whose every statement fails, as when the
// server goes away after the initial ping.
type droppedDriver struct{}

func (droppedDriver) Open(string) (driver.Conn, error) { return droppedConn{}, nil }

type droppedConn struct{}

func (droppedConn) Prepare(string) (driver.Stmt, error) { return nil, errConnReset }
func (droppedConn) Close() error                        { return nil }
func (droppedConn) Begin() (driver.Tx, error)           { return nil, errConnReset }

func init() {
	sql.Register("dlpxdbprofiler-dropped", droppedDriver{})
}

func newDroppedInspector(t *testing.T) *SQLInspector {
	t.Helper()
	db, err := sql.Open("dlpxdbprofiler-dropped", "")
	require.NoError(t, err)
	endpoint := Endpoint{Engine: models.EngineMySQL, User: "profiler", Host: "db02", Port: 3306}
	insp := NewSQLInspector(db, Queries{Schemas: "SELECT 1", Tables: "SELECT ?"}, endpoint, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = insp.Close() })
	return insp
}

func TestSQLInspector_ListSchemasFailureIsRemoteUnavailable(t *testing.T) {
	insp := newDroppedInspector(t)

	_, err := insp.ListSchemas(context.Background())

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindRemoteUnavailable, appErr.Kind)
	assert.Equal(t, "datasource.Query", appErr.Op)
	assert.Equal(t, "failed to list schemas on MySQL profiler@db02:3306", appErr.Message)
	assert.Contains(t, appErr.Hint, "DBP_MYSQL_USER")
	assert.ErrorIs(t, err, errConnReset)
}

func TestSQLInspector_ListTablesFailureNamesSchema(t *testing.T) {
	insp := newDroppedInspector(t)

	_, err := insp.ListTables(context.Background(), "SALES")

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindRemoteUnavailable, appErr.Kind)
	assert.Contains(t, appErr.Message, "list tables of SALES")
	assert.Contains(t, appErr.Message, "profiler@db02:3306")
	assert.ErrorIs(t, err, errConnReset)
}

func TestQueryError_NotInternal(t *testing.T) {
	err := QueryError(Endpoint{Engine: models.EnginePostgres, User: "app", Host: "db01", Port: 5432}, "list schemas", assert.AnError)

	assert.NotEqual(t, apperrors.KindInternal, apperrors.From("discover", err).Kind)
	assert.Contains(t, err.Error(), "PostgreSQL app@db01:5432")
}
