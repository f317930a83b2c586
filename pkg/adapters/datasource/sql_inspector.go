package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Queries are the engine-specific discovery statements for a database/sql driver.
// Schemas returns one string column. Tables returns one string column and takes
// the schema as its only bind parameter, in the driver's placeholder syntax.
type Queries struct {
	Schemas string
	Tables  string
}

// SQLInspector implements SchemaInspector over database/sql for drivers that
// share the query-per-call shape (SQL Server, MySQL, Oracle).
type SQLInspector struct {
	db       *sql.DB
	queries  Queries
	endpoint Endpoint
	// Filter drops schema names (e.g. system schemas the query cannot exclude).
	Filter func(schema string) bool
	logger  *zap.Logger
}

var (
	_ SchemaInspector  = (*SQLInspector)(nil)
	_ ConnectionTester = (*SQLInspector)(nil)
)

// NewSQLInspector wraps an open database. The inspector owns db; endpoint
// names it in query errors.
func NewSQLInspector(db *sql.DB, queries Queries, endpoint Endpoint, logger *zap.Logger) *SQLInspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLInspector{db: db, queries: queries, endpoint: endpoint, logger: logger}
}

// TestConnection verifies the database is reachable with valid credentials.
func (s *SQLInspector) TestConnection(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (s *SQLInspector) ListSchemas(ctx context.Context) ([]string, error) {
	s.logger.Info("Discovering schemas")
	schemas, err := QueryStrings(ctx, s.db, s.queries.Schemas)
	if err != nil {
		return nil, QueryError(s.endpoint, "list schemas", err)
	}
	if s.Filter != nil {
		kept := schemas[:0]
		for _, schema := range schemas {
			if s.Filter(schema) {
				kept = append(kept, schema)
			}
		}
		schemas = kept
	}
	s.logger.Info("Schemas found", zap.Int("count", len(schemas)), zap.Strings("schemas", schemas))
	return schemas, nil
}

func (s *SQLInspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	tables, err := QueryStrings(ctx, s.db, s.queries.Tables, schema)
	if err != nil {
		return nil, QueryError(s.endpoint, "list tables of "+schema, err)
	}
	s.logger.Info("Tables found", zap.String("schema", schema), zap.Int("count", len(tables)))
	return tables, nil
}

func (s *SQLInspector) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// QueryStrings runs a query returning a single string column.
func QueryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
