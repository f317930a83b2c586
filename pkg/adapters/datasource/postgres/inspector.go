package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

const (
	listSchemasQuery = `
		SELECT nspname
		FROM pg_catalog.pg_namespace
		WHERE nspname NOT LIKE 'pg\_%'
		  AND nspname <> 'information_schema'
		ORDER BY nspname`

	listTablesQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`
)

// Inspector implements datasource.SchemaInspector for PostgreSQL.
type Inspector struct {
	config *Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var (
	_ datasource.SchemaInspector  = (*Inspector)(nil)
	_ datasource.ConnectionTester = (*Inspector)(nil)
)

// NewInspector opens a pool and verifies connectivity.
func NewInspector(ctx context.Context, cfg *Config, logger *zap.Logger) (*Inspector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	if err != nil {
		return nil, datasource.ConnectError(models.EnginePostgres, cfg.User, cfg.Host, cfg.Port, err)
	}

	insp := &Inspector{config: cfg, pool: pool, logger: logger}
	if err := insp.TestConnection(ctx); err != nil {
		pool.Close()
		return nil, datasource.ConnectError(models.EnginePostgres, cfg.User, cfg.Host, cfg.Port, err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))
	return insp, nil
}

// TestConnection verifies the database is reachable with valid credentials.
func (i *Inspector) TestConnection(ctx context.Context) error {
	if err := i.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (i *Inspector) ListSchemas(ctx context.Context) ([]string, error) {
	i.logger.Info("Discovering schemas")
	schemas, err := i.queryStrings(ctx, listSchemasQuery)
	if err != nil {
		return nil, datasource.QueryError(i.endpoint(), "list schemas", err)
	}
	i.logger.Info("Schemas found", zap.Int("count", len(schemas)), zap.Strings("schemas", schemas))
	return schemas, nil
}

func (i *Inspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	tables, err := i.queryStrings(ctx, listTablesQuery, schema)
	if err != nil {
		return nil, datasource.QueryError(i.endpoint(), "list tables of "+schema, err)
	}
	i.logger.Info("Tables found", zap.String("schema", schema), zap.Int("count", len(tables)))
	return tables, nil
}

func (i *Inspector) endpoint() datasource.Endpoint {
	return datasource.Endpoint{Engine: models.EnginePostgres, User: i.config.User, Host: i.config.Host, Port: i.config.Port}
}

func (i *Inspector) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := i.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (i *Inspector) Close() error {
	if i.pool != nil {
		i.pool.Close()
	}
	return nil
}
