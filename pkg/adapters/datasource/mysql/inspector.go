package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// queries: MySQL schemas are databases, so discovery is pinned to the
// configured one. The schemas query echoes it back only when it exists.
var queries = datasource.Queries{
	Schemas: `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name = DATABASE()`,
	Tables: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
}

// NewInspector opens a MySQL connection and verifies it.
func NewInspector(ctx context.Context, cfg *Config, logger *zap.Logger) (*datasource.SQLInspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Configuration("mysql.NewInspector", "invalid MySQL settings: %v", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("mysql", dsn(cfg))
	if err != nil {
		return nil, datasource.ConnectError(models.EngineMySQL, cfg.User, cfg.Host, cfg.Port, fmt.Errorf("open: %w", err))
	}

	endpoint := datasource.Endpoint{Engine: models.EngineMySQL, User: cfg.User, Host: cfg.Host, Port: cfg.Port}
	insp := datasource.NewSQLInspector(db, queries, endpoint, logger)
	if err := insp.TestConnection(ctx); err != nil {
		db.Close()
		return nil, datasource.ConnectError(models.EngineMySQL, cfg.User, cfg.Host, cfg.Port, err)
	}

	logger.Info("Connected to MySQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))
	return insp, nil
}
