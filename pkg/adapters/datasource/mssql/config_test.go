package mssql

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

func TestConnectionString_EscapesCredentials(t *testing.T) {
	cfg := &Config{
		Host:              "db.example.com",
		Port:              1433,
		Database:          "Sales DB",
		Username:          "svc@corp",
		Password:          "p@ss/w#rd?",
		ConnectionTimeout: 15,
	}

	connStr := connectionString(cfg)

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "db.example.com:1433", u.Host)
	assert.Equal(t, "svc@corp", u.User.Username())
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss/w#rd?", pass)

	q := u.Query()
	assert.Equal(t, "Sales DB", q.Get("database"))
	assert.Equal(t, "disable", q.Get("encrypt"))
	assert.Equal(t, "15", q.Get("connection timeout"))
}

func TestConnectionString_Encrypt(t *testing.T) {
	u, err := url.Parse(connectionString(&Config{Host: "h", Port: 1433, Database: "d", Username: "u", Encrypt: "strict"}))
	require.NoError(t, err)
	assert.Equal(t, "strict", u.Query().Get("encrypt"))
	assert.Empty(t, u.Query().Get("connection timeout"))
}

func TestFromDatabase_Defaults(t *testing.T) {
	db := &config.Database{
		Engine: "mssql",
		MSSQL: config.MSSQLConfig{
			Host:     "sql01",
			Database: "CRM",
			User:     "sa",
			Password: "secret",
		},
	}

	cfg := FromDatabase(db)

	assert.Equal(t, "sql01", cfg.Host)
	assert.Equal(t, DefaultPort(), cfg.Port)
	assert.Equal(t, DefaultConnectionTimeout(), cfg.ConnectionTimeout)
	assert.Equal(t, "sa", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Host: "h", Port: 1433, Database: "d", Username: "u"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing host", func(c *Config) { c.Host = "" }, "host is required"},
		{"missing database", func(c *Config) { c.Database = "" }, "database is required"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"missing user", func(c *Config) { c.Username = "" }, "username is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewInspector_InvalidConfigIsConfigurationError(t *testing.T) {
	_, err := NewInspector(context.Background(), &Config{Port: 1433}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}

func TestRegistered(t *testing.T) {
	assert.True(t, datasource.IsRegistered(models.EngineMSSQL))
}
