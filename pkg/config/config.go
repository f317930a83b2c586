package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// DefaultConfigFile is read from the working directory when present.
const DefaultConfigFile = "dbprofiler.yaml"

// Config holds all configuration for dlpxdbprofiler.
// Configuration can come from a YAML file or DBP_* environment variables.
// Environment variables always override YAML values for fields that support both.
// Passwords must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	Compliance ComplianceConfig `yaml:"compliance"`

	ApplicationName string `yaml:"application_name" env:"DBP_APPLICATION_NAME"`
	EnvironmentName string `yaml:"environment_name" env:"DBP_ENVIRONMENT_NAME"`

	// Scope is "schema" (one connector for SchemaName) or "all" (one per discovered schema).
	Scope      string `yaml:"connector_scope" env:"DBP_CONNECTOR_SCOPE" env-default:"all" validate:"oneof=schema all"`
	SchemaName string `yaml:"schema_name" env:"DBP_SCHEMA_NAME"`

	// DriftPolicy decides what happens when an existing connector no longer matches: "warn" or "fail".
	DriftPolicy string `yaml:"drift_policy" env:"DBP_DRIFT_POLICY" env-default:"warn" validate:"oneof=warn fail"`

	Database Database      `yaml:"database"`
	Profile  ProfileConfig `yaml:"profile"`
	Log      LogConfig     `yaml:"log"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// ComplianceConfig locates and authenticates against the compliance engine.
type ComplianceConfig struct {
	BaseURL    string        `yaml:"base_url" env:"DBP_CE_BASE_URL" validate:"required,url"`
	Username   string        `yaml:"username" env:"DBP_CE_USERNAME" validate:"required"`
	Password   string        `yaml:"-" env:"DBP_CE_PASSWORD" validate:"required"` // Secret - not in YAML
	APIVersion string        `yaml:"api_version" env:"DBP_CE_API_VERSION" env-default:"v5.1.46" validate:"required"`
	VerifySSL  bool          `yaml:"verify_ssl" env:"DBP_CE_VERIFY_SSL" env-default:"false"`
	Timeout    time.Duration `yaml:"timeout" env:"DBP_CE_TIMEOUT" env-default:"60s" validate:"gt=0"`
}

// Database is the engine-tagged source database configuration.
// Only the sub-config selected by Engine is validated and used.
type Database struct {
	Engine   string         `yaml:"engine" env:"DBP_DB_ENGINE" env-default:"oracle"`
	Oracle   OracleConfig   `yaml:"oracle" validate:"-"`
	MSSQL    MSSQLConfig    `yaml:"mssql" validate:"-"`
	Postgres PostgresConfig `yaml:"postgres" validate:"-"`
	MySQL    MySQLConfig    `yaml:"mysql" validate:"-"`
}

// OracleConfig holds Oracle connection settings. SID and ServiceName are mutually exclusive.
type OracleConfig struct {
	Host           string `yaml:"host" env:"DBP_ORACLE_HOST" validate:"required"`
	Port           int    `yaml:"port" env:"DBP_ORACLE_PORT" env-default:"1521" validate:"min=1,max=65535"`
	SID            string `yaml:"sid" env:"DBP_ORACLE_SID"`
	ServiceName    string `yaml:"service_name" env:"DBP_ORACLE_SERVICE_NAME"`
	User           string `yaml:"user" env:"DBP_ORACLE_USER" validate:"required"`
	Password       string `yaml:"-" env:"DBP_ORACLE_PASSWORD"` // Secret - not in YAML
	DriverMode     string `yaml:"driver_mode" env:"DBP_ORACLE_DRIVER_MODE" env-default:"thin" validate:"oneof=thin thick"`
	ClientLibDir   string `yaml:"client_lib_dir" env:"DBP_ORACLE_CLIENT_LIB_DIR"`
	ConnectorType  string `yaml:"connector_type" env:"DBP_ORACLE_CONNECTOR_TYPE" env-default:"native" validate:"oneof=native jdbc"`
	ConnectTimeout int    `yaml:"connect_timeout" env:"DBP_ORACLE_CONNECT_TIMEOUT" env-default:"30" validate:"gt=0"`
}

// MSSQLConfig holds SQL Server connection settings.
type MSSQLConfig struct {
	Host           string `yaml:"host" env:"DBP_MSSQL_HOST" validate:"required"`
	Port           int    `yaml:"port" env:"DBP_MSSQL_PORT" env-default:"1433" validate:"min=1,max=65535"`
	Database       string `yaml:"database" env:"DBP_MSSQL_DATABASE" validate:"required"`
	User           string `yaml:"user" env:"DBP_MSSQL_USER" validate:"required"`
	Password       string `yaml:"-" env:"DBP_MSSQL_PASSWORD"` // Secret - not in YAML
	Encrypt        string `yaml:"encrypt" env:"DBP_MSSQL_ENCRYPT" env-default:"disable" validate:"oneof=disable false true strict"`
	ConnectTimeout int    `yaml:"connect_timeout" env:"DBP_MSSQL_CONNECT_TIMEOUT" env-default:"30" validate:"gt=0"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host           string `yaml:"host" env:"DBP_POSTGRES_HOST" validate:"required"`
	Port           int    `yaml:"port" env:"DBP_POSTGRES_PORT" env-default:"5432" validate:"min=1,max=65535"`
	Database       string `yaml:"database" env:"DBP_POSTGRES_DATABASE" validate:"required"`
	User           string `yaml:"user" env:"DBP_POSTGRES_USER" validate:"required"`
	Password       string `yaml:"-" env:"DBP_POSTGRES_PASSWORD"` // Secret - not in YAML
	SSLMode        string `yaml:"ssl_mode" env:"DBP_POSTGRES_SSLMODE" env-default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	ConnectTimeout int    `yaml:"connect_timeout" env:"DBP_POSTGRES_CONNECT_TIMEOUT" env-default:"30" validate:"gt=0"`
}

// MySQLConfig holds MySQL connection settings. The database doubles as the only schema.
type MySQLConfig struct {
	Host           string `yaml:"host" env:"DBP_MYSQL_HOST" validate:"required"`
	Port           int    `yaml:"port" env:"DBP_MYSQL_PORT" env-default:"3306" validate:"min=1,max=65535"`
	Database       string `yaml:"database" env:"DBP_MYSQL_DATABASE" validate:"required"`
	User           string `yaml:"user" env:"DBP_MYSQL_USER" validate:"required"`
	Password       string `yaml:"-" env:"DBP_MYSQL_PASSWORD"` // Secret - not in YAML
	ConnectTimeout int    `yaml:"connect_timeout" env:"DBP_MYSQL_CONNECT_TIMEOUT" env-default:"30" validate:"gt=0"`
}

// ProfileConfig controls profile job creation and execution.
type ProfileConfig struct {
	SetID        int           `yaml:"set_id" env:"DBP_PROFILE_SET_ID" env-default:"20" validate:"gt=0"`
	MaxParallel  int           `yaml:"max_parallel" env:"DBP_PROFILE_MAX_PARALLEL" env-default:"1" validate:"min=1"`
	PollInterval time.Duration `yaml:"poll_interval" env:"DBP_PROFILE_POLL_INTERVAL" env-default:"5s" validate:"gt=0"`
	// Deadline bounds a whole job run. Zero means no deadline.
	Deadline time.Duration `yaml:"deadline" env:"DBP_PROFILE_DEADLINE" env-default:"0s" validate:"gte=0"`
}

// LogConfig controls the console and file loggers.
type LogConfig struct {
	Level string `yaml:"level" env:"DBP_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	File  string `yaml:"file" env:"DBP_LOG_FILE" env-default:"dlpxdbprofiler.log"`
}

// MetricsConfig controls the optional Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"DBP_METRICS_TEXTFILE"`
}

// Load reads configuration from path (or DefaultConfigFile when path is empty)
// with environment variable overrides. A missing default file is not an error:
// configuration then comes from the environment alone. Load does not validate;
// each operation validates the part it needs.
func Load(version, path string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize applies the canonical casing the compliance engine and Oracle expect.
func (c *Config) normalize() {
	c.Scope = strings.ToLower(strings.TrimSpace(c.Scope))
	c.DriftPolicy = strings.ToLower(strings.TrimSpace(c.DriftPolicy))
	if engine, ok := models.ParseEngine(c.Database.Engine); ok {
		c.Database.Engine = string(engine)
	}
	c.Database.Oracle.User = strings.ToUpper(c.Database.Oracle.User)
	c.Database.Oracle.DriverMode = strings.ToLower(c.Database.Oracle.DriverMode)
	c.Database.Oracle.ConnectorType = strings.ToLower(c.Database.Oracle.ConnectorType)
	if c.Database.Engine == string(models.EngineOracle) {
		c.SchemaName = strings.ToUpper(c.SchemaName)
	}
}

// EngineType returns the selected engine. Call after validation.
func (d *Database) EngineType() models.EngineType {
	engine, _ := models.ParseEngine(d.Engine)
	return engine
}

// ConnectorScope returns the configured scope.
func (c *Config) ConnectorScope() models.Scope {
	return models.Scope(c.Scope)
}

// ConnectorSpec builds the desired connector for schema from the selected engine settings.
func (d *Database) ConnectorSpec(schema string) models.ConnectorSpec {
	spec := models.ConnectorSpec{
		Name:   models.ConnectorName(schema),
		Engine: d.EngineType(),
		Kind:   models.ConnectorNative,
		Schema: schema,
	}
	switch spec.Engine {
	case models.EngineOracle:
		spec.Host, spec.Port = d.Oracle.Host, d.Oracle.Port
		spec.SID, spec.ServiceName = d.Oracle.SID, d.Oracle.ServiceName
		spec.Username, spec.Password = d.Oracle.User, d.Oracle.Password
		spec.Kind = models.ConnectorKind(d.Oracle.ConnectorType)
		if spec.Kind == models.ConnectorJDBC {
			spec.JDBC = spec.JDBCURL()
		}
	case models.EngineMSSQL:
		spec.Host, spec.Port, spec.Database = d.MSSQL.Host, d.MSSQL.Port, d.MSSQL.Database
		spec.Username, spec.Password = d.MSSQL.User, d.MSSQL.Password
	case models.EnginePostgres:
		spec.Host, spec.Port, spec.Database = d.Postgres.Host, d.Postgres.Port, d.Postgres.Database
		spec.Username, spec.Password = d.Postgres.User, d.Postgres.Password
	case models.EngineMySQL:
		spec.Host, spec.Port, spec.Database = d.MySQL.Host, d.MySQL.Port, d.MySQL.Database
		spec.Username, spec.Password = d.MySQL.User, d.MySQL.Password
	}
	return spec
}
