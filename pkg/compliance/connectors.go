package compliance

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/jsonutil"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// JDBC driver ids registered on a stock engine.
const (
	jdbcDriverOracle   = 1
	jdbcDriverMSSQL    = 2
	jdbcDriverPostgres = 5
)

type connectorDTO struct {
	DatabaseConnectorID jsonutil.FlexInt `json:"databaseConnectorId,omitempty"`
	ConnectorName       string           `json:"connectorName"`
	DatabaseType        string           `json:"databaseType"`
	EnvironmentID       jsonutil.FlexInt `json:"environmentId"`
	Host                string           `json:"host,omitempty"`
	Port                jsonutil.FlexInt `json:"port,omitempty"`
	SID                 string           `json:"sid,omitempty"`
	DatabaseName        string           `json:"databaseName,omitempty"`
	SchemaName          string           `json:"schemaName,omitempty"`
	JDBC                string           `json:"jdbc,omitempty"`
	Username            string           `json:"username,omitempty"`
}

func (d connectorDTO) model() models.Connector {
	engine, _ := models.ParseEngine(d.DatabaseType)
	spec := models.ConnectorSpec{
		Name:     d.ConnectorName,
		Engine:   engine,
		Host:     d.Host,
		Port:     int(d.Port),
		SID:      d.SID,
		Database: d.DatabaseName,
		Schema:   d.SchemaName,
		Username: d.Username,
		JDBC:     d.JDBC,
	}
	if d.JDBC != "" {
		spec.Kind = models.ConnectorJDBC
	} else if engine == models.EngineOracle {
		spec.Kind = models.ConnectorNative
	}
	return models.Connector{
		ID:            int(d.DatabaseConnectorID),
		Name:          d.ConnectorName,
		EnvironmentID: int(d.EnvironmentID),
		Spec:          spec,
	}
}

// ListConnectors returns the database connectors of an environment.
func (c *Client) ListConnectors(ctx context.Context, envID int) ([]models.Connector, error) {
	query := url.Values{"environment_id": {itoa(envID)}}
	dtos, err := listAll[connectorDTO](ctx, c, "compliance.ListConnectors", query, "database-connectors")
	if err != nil {
		return nil, err
	}
	conns := make([]models.Connector, 0, len(dtos))
	for _, d := range dtos {
		conn := d.model()
		if conn.EnvironmentID != 0 && conn.EnvironmentID != envID {
			continue
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// FindConnector returns the named connector of an environment, or nil.
func (c *Client) FindConnector(ctx context.Context, envID int, name string) (*models.Connector, error) {
	conns, err := c.ListConnectors(ctx, envID)
	if err != nil {
		return nil, err
	}
	for i := range conns {
		if conns[i].Name == name {
			return &conns[i], nil
		}
	}
	return nil, nil
}

// CreateConnector creates a database connector in an environment.
func (c *Client) CreateConnector(ctx context.Context, envID int, spec models.ConnectorSpec) (*models.Connector, error) {
	const op = "compliance.CreateConnector"
	payload, err := connectorPayload(envID, spec)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Creating connector",
		zap.String("name", spec.Name),
		zap.String("engine", string(spec.Engine)),
		zap.String("kind", string(spec.Kind)),
		zap.Int("environment_id", envID))

	var resp connectorDTO
	if err := c.do(ctx, op, http.MethodPost, []string{"database-connectors"}, nil, payload, &resp); err != nil {
		return nil, err
	}
	if resp.DatabaseConnectorID == 0 {
		return nil, missingID(op, "databaseConnectorId")
	}

	created := spec
	created.Password = ""
	if created.Kind == models.ConnectorJDBC && created.JDBC == "" {
		created.JDBC = spec.JDBCURL()
	}
	conn := &models.Connector{
		ID:            int(resp.DatabaseConnectorID),
		Name:          spec.Name,
		EnvironmentID: envID,
		Spec:          created,
	}
	c.logger.Info("Connector created", zap.Int("id", conn.ID), zap.String("name", conn.Name))
	return conn, nil
}

// connectorPayload renders the engine-specific create body.
func connectorPayload(envID int, spec models.ConnectorSpec) (map[string]any, error) {
	payload := map[string]any{
		"connectorName": spec.Name,
		"databaseType":  spec.Engine.RemoteType(),
		"environmentId": envID,
		"schemaName":    spec.Schema,
		"username":      spec.Username,
		"password":      spec.Password,
	}
	jdbcExtras := func(driverID int) {
		payload["kerberosAuth"] = false
		payload["jdbcDriverId"] = driverID
		payload["enableLogger"] = false
		payload["passwordVaultAuth"] = false
	}

	switch spec.Engine {
	case models.EngineOracle:
		if spec.Kind == models.ConnectorJDBC {
			jdbc := spec.JDBC
			if jdbc == "" {
				jdbc = spec.JDBCURL()
			}
			payload["jdbc"] = jdbc
			jdbcExtras(jdbcDriverOracle)
			return payload, nil
		}
		if strings.TrimSpace(spec.SID) == "" {
			return nil, apperrors.Configuration("compliance.CreateConnector",
				"native Oracle connector %s requires a SID", spec.Name)
		}
		payload["host"] = spec.Host
		payload["port"] = spec.Port
		payload["sid"] = spec.SID
	case models.EngineMSSQL:
		payload["host"] = spec.Host
		payload["port"] = spec.Port
		payload["databaseName"] = spec.Database
		jdbcExtras(jdbcDriverMSSQL)
	case models.EnginePostgres:
		payload["host"] = spec.Host
		payload["port"] = spec.Port
		payload["databaseName"] = spec.Database
		jdbcExtras(jdbcDriverPostgres)
	case models.EngineMySQL:
		payload["host"] = spec.Host
		payload["port"] = spec.Port
		payload["databaseName"] = spec.Database
	default:
		return nil, apperrors.Configuration("compliance.CreateConnector", "unsupported engine %q", spec.Engine)
	}
	return payload, nil
}
