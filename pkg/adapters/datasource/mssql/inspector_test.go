//go:build integration

package mssql

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// configFromEnv reads an existing SQL Server from MSSQL_* variables.
// There is no container image small enough to start per run.
func configFromEnv(t *testing.T) *Config {
	t.Helper()

	host := os.Getenv("MSSQL_HOST")
	user := os.Getenv("MSSQL_USER")
	password := os.Getenv("MSSQL_PASSWORD")
	database := os.Getenv("MSSQL_DATABASE")
	if host == "" || user == "" || password == "" || database == "" {
		t.Skip("skipping integration test: MSSQL_HOST, MSSQL_USER, MSSQL_PASSWORD, or MSSQL_DATABASE not set")
	}

	port := DefaultPort()
	if p := os.Getenv("MSSQL_PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		require.NoError(t, err, "invalid MSSQL_PORT")
	}

	return &Config{
		Host:              host,
		Port:              port,
		Database:          database,
		Username:          user,
		Password:          password,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}
}

func TestInspector_ListSchemasAndTables(t *testing.T) {
	cfg := configFromEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inspector, err := NewInspector(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer inspector.Close()

	schemas, err := inspector.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Contains(t, schemas, "dbo")
	assert.NotContains(t, schemas, "sys")
	assert.NotContains(t, schemas, "INFORMATION_SCHEMA")

	_, err = inspector.ListTables(ctx, "dbo")
	require.NoError(t, err)
}

func TestInspector_WrongDatabaseFails(t *testing.T) {
	cfg := configFromEnv(t)
	cfg.Database = "nonexistent_database_12345"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := NewInspector(ctx, cfg, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), cfg.Password)
}
