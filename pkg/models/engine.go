package models

import "strings"

// EngineType identifies the source database engine a connector points at.
type EngineType string

const (
	EngineOracle   EngineType = "oracle"
	EngineMSSQL    EngineType = "mssql"
	EnginePostgres EngineType = "postgres"
	EngineMySQL    EngineType = "mysql"
)

// AllEngines lists the supported engines in display order.
var AllEngines = []EngineType{EngineOracle, EngineMSSQL, EnginePostgres, EngineMySQL}

// ParseEngine normalizes a user-supplied engine name. "sqlserver" and
// "postgresql" are accepted as aliases.
func ParseEngine(s string) (EngineType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oracle":
		return EngineOracle, true
	case "mssql", "sqlserver":
		return EngineMSSQL, true
	case "postgres", "postgresql":
		return EnginePostgres, true
	case "mysql":
		return EngineMySQL, true
	}
	return "", false
}

// DisplayName returns the human-readable engine name.
func (e EngineType) DisplayName() string {
	switch e {
	case EngineOracle:
		return "Oracle"
	case EngineMSSQL:
		return "Microsoft SQL Server"
	case EnginePostgres:
		return "PostgreSQL"
	case EngineMySQL:
		return "MySQL"
	}
	return string(e)
}

// RemoteType is the databaseType value the compliance engine expects.
func (e EngineType) RemoteType() string {
	return strings.ToUpper(string(e))
}

// Scope selects how many connectors a provisioning run creates.
type Scope string

const (
	// ScopeSchema provisions a single named schema.
	ScopeSchema Scope = "schema"
	// ScopeAll provisions every schema the inspector discovers.
	ScopeAll Scope = "all"
)
