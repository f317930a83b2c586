// Package testhelpers starts throwaway source databases for integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql" // MySQL driver for seeding
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage = "postgres:16-alpine"
	MySQLImage    = "mysql:8.4"

	TestUser     = "profiler"
	TestPassword = "test_password"
	TestDatabase = "test_data"
)

// SourceDB is a running database container seeded with known schemas.
type SourceDB struct {
	Container testcontainers.Container
	Host      string
	Port      int
}

var (
	sharedPostgres     *SourceDB
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error

	sharedMySQL     *SourceDB
	sharedMySQLOnce sync.Once
	sharedMySQLErr  error
)

// postgresSeed creates two user schemas next to public.
var postgresSeed = []string{
	`CREATE SCHEMA IF NOT EXISTS crm`,
	`CREATE SCHEMA IF NOT EXISTS sales`,
	`CREATE TABLE IF NOT EXISTS crm.customers (id int PRIMARY KEY, name text)`,
	`CREATE TABLE IF NOT EXISTS crm.addresses (id int PRIMARY KEY, customer_id int)`,
	`CREATE TABLE IF NOT EXISTS sales.orders (id int PRIMARY KEY)`,
	`CREATE OR REPLACE VIEW sales.order_view AS SELECT id FROM sales.orders`,
}

// mysqlSeed creates tables in the configured database.
var mysqlSeed = []string{
	`CREATE TABLE IF NOT EXISTS customers (id int PRIMARY KEY, name varchar(64))`,
	`CREATE TABLE IF NOT EXISTS orders (id int PRIMARY KEY)`,
	`CREATE OR REPLACE VIEW order_view AS SELECT id FROM orders`,
}

// GetPostgresDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
// Schemas: crm (addresses, customers), sales (orders, plus a view), public (empty).
func GetPostgresDB(t *testing.T) *SourceDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = setupPostgres()
	})
	if sharedPostgresErr != nil {
		t.Fatalf("Failed to setup postgres container: %v", sharedPostgresErr)
	}
	return sharedPostgres
}

// GetMySQLDB returns a shared MySQL container for integration tests.
// Database test_data holds customers and orders, plus a view.
func GetMySQLDB(t *testing.T) *SourceDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMySQLOnce.Do(func() {
		sharedMySQL, sharedMySQLErr = setupMySQL()
	})
	if sharedMySQLErr != nil {
		t.Fatalf("Failed to setup mysql container: %v", sharedMySQLErr)
	}
	return sharedMySQL
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string) (*SourceDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &SourceDB{Container: container, Host: host, Port: mapped.Int()}, nil
}

func setupPostgres() (*SourceDB, error) {
	ctx := context.Background()

	db, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       TestDatabase,
			"POSTGRES_USER":     TestUser,
			"POSTGRES_PASSWORD": TestPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestUser, TestPassword, db.Host, db.Port, TestDatabase)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	for _, stmt := range postgresSeed {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("seed %q: %w", stmt, err)
		}
	}
	return db, nil
}

func setupMySQL() (*SourceDB, error) {
	ctx := context.Background()

	db, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        MySQLImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      TestDatabase,
			"MYSQL_USER":          TestUser,
			"MYSQL_PASSWORD":      TestPassword,
			"MYSQL_ROOT_PASSWORD": TestPassword,
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(120 * time.Second),
	}, "3306")
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", TestUser, TestPassword, db.Host, db.Port, TestDatabase)
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	defer sqlDB.Close()

	// The port opens before the server accepts logins
	for i := 0; i < 30; i++ {
		if err = sqlDB.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("mysql not ready: %w", err)
	}

	for _, stmt := range mysqlSeed {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("seed %q: %w", stmt, err)
		}
	}
	return db, nil
}
