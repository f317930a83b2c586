package datasource

import "context"

// SchemaInspector discovers schemas and tables in a source database.
// Each implementation owns its connection and must be closed when done.
type SchemaInspector interface {
	// ListSchemas returns the user schemas (system schemas excluded), in the
	// order the database reports them.
	ListSchemas(ctx context.Context) ([]string, error)

	// ListTables returns the base tables of one schema, ordered by name.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// Close releases the database connection.
	Close() error
}

// ConnectionTester verifies connectivity before any discovery query runs.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}
