package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectorSpec_KeyUsesSIDBeforeServiceName(t *testing.T) {
	spec := ConnectorSpec{Engine: EngineOracle, Host: "db1", Port: 1521, SID: "ORCL", Schema: "CRM"}
	assert.Equal(t, ConnectorKey{Engine: EngineOracle, Host: "db1", Port: 1521, Instance: "ORCL", Schema: "CRM"}, spec.Key())

	spec.SID = ""
	spec.ServiceName = "orclpdb"
	assert.Equal(t, "orclpdb", spec.Key().Instance)
}

func TestConnectorSpec_KeyFromJDBC(t *testing.T) {
	tests := []struct {
		name     string
		spec     ConnectorSpec
		expected ConnectorKey
	}{
		{
			name:     "oracle thin",
			spec:     ConnectorSpec{Engine: EngineOracle, JDBC: "jdbc:oracle:thin:@//db1:1521/ORCL", Schema: "CRM"},
			expected: ConnectorKey{Engine: EngineOracle, Host: "db1", Port: 1521, Instance: "ORCL", Schema: "CRM"},
		},
		{
			name:     "sql server",
			spec:     ConnectorSpec{Engine: EngineMSSQL, JDBC: "jdbc:sqlserver://sql1:1433;databaseName=sales", Schema: "dbo"},
			expected: ConnectorKey{Engine: EngineMSSQL, Host: "sql1", Port: 1433, Instance: "sales", Schema: "dbo"},
		},
		{
			name:     "postgres with params",
			spec:     ConnectorSpec{Engine: EnginePostgres, JDBC: "jdbc:postgresql://pg:5432/app?ssl=true", Schema: "public"},
			expected: ConnectorKey{Engine: EnginePostgres, Host: "pg", Port: 5432, Instance: "app", Schema: "public"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.spec.Key())
		})
	}
}

func TestConnectorSpec_JDBCURLRoundTripsThroughKey(t *testing.T) {
	spec := ConnectorSpec{Engine: EngineOracle, Host: "db1", Port: 1521, ServiceName: "orclpdb", Schema: "HR"}
	readBack := ConnectorSpec{Engine: EngineOracle, JDBC: spec.JDBCURL(), Schema: "HR"}

	assert.Equal(t, "jdbc:oracle:thin:@//db1:1521/orclpdb", spec.JDBCURL())
	assert.Empty(t, spec.Key().Drift(readBack.Key()))
}

func TestConnectorKey_Drift(t *testing.T) {
	want := ConnectorKey{Engine: EngineOracle, Host: "db1", Port: 1521, Instance: "ORCL", Schema: "CRM"}

	assert.Empty(t, want.Drift(want))
	assert.Empty(t, want.Drift(ConnectorKey{Schema: "crm"}), "case differences and unreported fields are not drift")

	diffs := want.Drift(ConnectorKey{Engine: EngineOracle, Host: "db2", Port: 1522, Instance: "ORCL", Schema: "CRM"})
	assert.Equal(t, []string{`host: want "db1", found "db2"`, "port: want 1521, found 1522"}, diffs)
}

func TestNormalizeTables(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, NormalizeTables([]string{"A", " B", "", "A", "C", "B"}))
	assert.Empty(t, NormalizeTables(nil))
}

func TestMapRemoteStatus(t *testing.T) {
	assert.Equal(t, JobStatusSucceeded, MapRemoteStatus("SUCCEEDED"))
	assert.Equal(t, JobStatusSucceeded, MapRemoteStatus("warning"))
	assert.Equal(t, JobStatusFailed, MapRemoteStatus("FAILED"))
	assert.Equal(t, JobStatusFailed, MapRemoteStatus("ERROR"))
	assert.Equal(t, JobStatusCancelled, MapRemoteStatus("CANCELLED"))
	assert.Equal(t, JobStatusRunning, MapRemoteStatus("QUEUED"))
	assert.Equal(t, JobStatusRunning, MapRemoteStatus("CANCELLING"))
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
}

func TestParseEngine(t *testing.T) {
	e, ok := ParseEngine("SQLServer")
	assert.True(t, ok)
	assert.Equal(t, EngineMSSQL, e)

	_, ok = ParseEngine("db2")
	assert.False(t, ok)
	assert.Equal(t, "POSTGRES", EnginePostgres.RemoteType())
}
