package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ConnectorKind selects how an Oracle connector is registered remotely.
type ConnectorKind string

const (
	ConnectorNative ConnectorKind = "native"
	ConnectorJDBC   ConnectorKind = "jdbc"
)

// ConnectorSpec is the desired (or remotely reported) definition of a connector.
type ConnectorSpec struct {
	Name        string        `json:"name" yaml:"name"`
	Engine      EngineType    `json:"engine" yaml:"engine"`
	Kind        ConnectorKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Host        string        `json:"host,omitempty" yaml:"host,omitempty"`
	Port        int           `json:"port,omitempty" yaml:"port,omitempty"`
	SID         string        `json:"sid,omitempty" yaml:"sid,omitempty"`
	ServiceName string        `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Database    string        `json:"database,omitempty" yaml:"database,omitempty"`
	Schema      string        `json:"schema" yaml:"schema"`
	Username    string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password    string        `json:"-" yaml:"-"`
	JDBC        string        `json:"jdbc,omitempty" yaml:"jdbc,omitempty"`
}

// ConnectorKey is the identity of a connector within its environment.
type ConnectorKey struct {
	Engine   EngineType
	Host     string
	Port     int
	Instance string
	Schema   string
}

func (k ConnectorKey) String() string {
	return fmt.Sprintf("%s://%s:%d/%s/%s", k.Engine, k.Host, k.Port, k.Instance, k.Schema)
}

// Instance is the SID or service name for Oracle and the database name elsewhere.
func (s ConnectorSpec) Instance() string {
	if s.Engine == EngineOracle {
		if s.SID != "" {
			return s.SID
		}
		return s.ServiceName
	}
	return s.Database
}

// Key derives the connector identity. For specs that only carry a JDBC URL
// (connectors read back from the remote side), host, port and instance are
// recovered from the URL.
func (s ConnectorSpec) Key() ConnectorKey {
	key := ConnectorKey{
		Engine:   s.Engine,
		Host:     s.Host,
		Port:     s.Port,
		Instance: s.Instance(),
		Schema:   s.Schema,
	}
	if key.Host == "" && s.JDBC != "" {
		if host, port, inst, ok := parseJDBC(s.JDBC); ok {
			key.Host, key.Port = host, port
			if key.Instance == "" {
				key.Instance = inst
			}
		}
	}
	return key
}

// JDBCURL renders the thin JDBC URL for the spec.
func (s ConnectorSpec) JDBCURL() string {
	switch s.Engine {
	case EngineOracle:
		return fmt.Sprintf("jdbc:oracle:thin:@//%s:%d/%s", s.Host, s.Port, s.Instance())
	case EngineMSSQL:
		return fmt.Sprintf("jdbc:sqlserver://%s:%d;databaseName=%s", s.Host, s.Port, s.Database)
	case EnginePostgres:
		return fmt.Sprintf("jdbc:postgresql://%s:%d/%s", s.Host, s.Port, s.Database)
	case EngineMySQL:
		return fmt.Sprintf("jdbc:mysql://%s:%d/%s", s.Host, s.Port, s.Database)
	}
	return ""
}

// Drift lists the identity attributes where observed differs from k.
// Attributes the remote side did not report are not counted.
func (k ConnectorKey) Drift(observed ConnectorKey) []string {
	var diffs []string
	cmp := func(field, want, got string) {
		if got != "" && !strings.EqualFold(want, got) {
			diffs = append(diffs, fmt.Sprintf("%s: want %q, found %q", field, want, got))
		}
	}
	if observed.Engine != "" && observed.Engine != k.Engine {
		diffs = append(diffs, fmt.Sprintf("engine: want %q, found %q", k.Engine, observed.Engine))
	}
	cmp("host", k.Host, observed.Host)
	if observed.Port != 0 && observed.Port != k.Port {
		diffs = append(diffs, fmt.Sprintf("port: want %d, found %d", k.Port, observed.Port))
	}
	cmp("instance", k.Instance, observed.Instance)
	cmp("schema", k.Schema, observed.Schema)
	return diffs
}

// parseJDBC extracts host, port and instance from the JDBC URL forms JDBCURL produces.
func parseJDBC(u string) (host string, port int, instance string, ok bool) {
	rest := u
	switch {
	case strings.HasPrefix(rest, "jdbc:oracle:thin:@//"):
		rest = strings.TrimPrefix(rest, "jdbc:oracle:thin:@//")
	case strings.HasPrefix(rest, "jdbc:sqlserver://"):
		rest = strings.TrimPrefix(rest, "jdbc:sqlserver://")
		hostPort, params, _ := strings.Cut(rest, ";")
		for _, p := range strings.Split(params, ";") {
			if k, v, found := strings.Cut(p, "="); found && strings.EqualFold(k, "databaseName") {
				instance = v
			}
		}
		rest = hostPort + "/" + instance
	case strings.HasPrefix(rest, "jdbc:postgresql://"):
		rest = strings.TrimPrefix(rest, "jdbc:postgresql://")
	case strings.HasPrefix(rest, "jdbc:mysql://"):
		rest = strings.TrimPrefix(rest, "jdbc:mysql://")
	default:
		return "", 0, "", false
	}

	hostPort, inst, _ := strings.Cut(rest, "/")
	inst, _, _ = strings.Cut(inst, "?")
	h, p, found := strings.Cut(hostPort, ":")
	if !found {
		return h, 0, inst, h != ""
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, "", false
	}
	return h, n, inst, true
}
