package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

func TestDSN_RoundTripsThroughDriver(t *testing.T) {
	cfg := &Config{
		Host:           "db.example.com",
		Port:           3307,
		User:           "app",
		Password:       "p@ss:w/rd",
		Database:       "crm",
		ConnectTimeout: 10,
	}

	parsed, err := mysql.ParseDSN(dsn(cfg))
	require.NoError(t, err)

	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss:w/rd", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.example.com:3307", parsed.Addr)
	assert.Equal(t, "crm", parsed.DBName)
	assert.Equal(t, 10*time.Second, parsed.Timeout)
}

func TestFromDatabase_DefaultPort(t *testing.T) {
	cfg := FromDatabase(&config.Database{
		Engine: "mysql",
		MySQL:  config.MySQLConfig{Host: "h", Database: "sales", User: "u"},
	})
	assert.Equal(t, DefaultPort(), cfg.Port)
	assert.Equal(t, "sales", cfg.Database)
}

func TestNewInspector_MissingDatabase(t *testing.T) {
	_, err := NewInspector(context.Background(), &Config{Host: "h", Port: 3306}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
	assert.Contains(t, err.Error(), "database is required")
}

func TestRegistered(t *testing.T) {
	assert.True(t, datasource.IsRegistered(models.EngineMySQL))
}
