package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// queries lists user schemas of the connected database and their base tables.
var queries = datasource.Queries{
	Schemas: `
		SELECT name
		FROM sys.schemas
		WHERE name NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY name`,
	Tables: `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		  AND TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME`,
}

// NewInspector opens a SQL Server connection and verifies it.
func NewInspector(ctx context.Context, cfg *Config, logger *zap.Logger) (*datasource.SQLInspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Configuration("mssql.NewInspector", "invalid SQL Server settings: %v", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlserver", connectionString(cfg))
	if err != nil {
		return nil, datasource.ConnectError(models.EngineMSSQL, cfg.Username, cfg.Host, cfg.Port, fmt.Errorf("open: %w", err))
	}

	endpoint := datasource.Endpoint{Engine: models.EngineMSSQL, User: cfg.Username, Host: cfg.Host, Port: cfg.Port}
	insp := datasource.NewSQLInspector(db, queries, endpoint, logger)
	if err := insp.TestConnection(ctx); err != nil {
		db.Close()
		return nil, datasource.ConnectError(models.EngineMSSQL, cfg.Username, cfg.Host, cfg.Port, err)
	}

	logger.Info("Connected to SQL Server",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))
	return insp, nil
}
