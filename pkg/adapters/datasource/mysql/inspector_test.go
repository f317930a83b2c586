//go:build integration

package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/delphix/dlpxdbprofiler/pkg/testhelpers"
)

func TestInspector_DatabaseIsTheOnlySchema(t *testing.T) {
	testDB := testhelpers.GetMySQLDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inspector, err := NewInspector(ctx, &Config{
		Host:     testDB.Host,
		Port:     testDB.Port,
		User:     testhelpers.TestUser,
		Password: testhelpers.TestPassword,
		Database: testhelpers.TestDatabase,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer inspector.Close()

	schemas, err := inspector.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testhelpers.TestDatabase}, schemas)

	tables, err := inspector.ListTables(ctx, testhelpers.TestDatabase)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, tables)
}
