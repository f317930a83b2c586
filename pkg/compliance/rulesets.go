package compliance

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/jsonutil"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

type rulesetDTO struct {
	DatabaseRulesetID   jsonutil.FlexInt `json:"databaseRulesetId,omitempty"`
	RulesetName         string           `json:"rulesetName"`
	DatabaseConnectorID jsonutil.FlexInt `json:"databaseConnectorId"`
}

type tableMetadataDTO struct {
	TableName string           `json:"tableName"`
	RulesetID jsonutil.FlexInt `json:"rulesetId"`
}

// FindRuleset returns the ruleset bound to a connector, or nil.
func (c *Client) FindRuleset(ctx context.Context, envID, connectorID int) (*models.Ruleset, error) {
	query := url.Values{"environment_id": {itoa(envID)}}
	dtos, err := listAll[rulesetDTO](ctx, c, "compliance.FindRuleset", query, "database-rulesets")
	if err != nil {
		return nil, err
	}
	for _, d := range dtos {
		if int(d.DatabaseConnectorID) == connectorID {
			return &models.Ruleset{
				ID:          int(d.DatabaseRulesetID),
				Name:        d.RulesetName,
				ConnectorID: connectorID,
			}, nil
		}
	}
	return nil, nil
}

// CreateRuleset creates an empty ruleset for a connector.
func (c *Client) CreateRuleset(ctx context.Context, connectorID int, name string) (*models.Ruleset, error) {
	const op = "compliance.CreateRuleset"
	c.logger.Info("Creating ruleset", zap.String("name", name), zap.Int("connector_id", connectorID))

	payload := rulesetDTO{RulesetName: name, DatabaseConnectorID: jsonutil.FlexInt(connectorID)}
	var resp rulesetDTO
	if err := c.do(ctx, op, http.MethodPost, []string{"database-rulesets"}, nil, payload, &resp); err != nil {
		return nil, err
	}
	if resp.DatabaseRulesetID == 0 {
		return nil, missingID(op, "databaseRulesetId")
	}
	c.logger.Info("Ruleset created", zap.Int("id", int(resp.DatabaseRulesetID)), zap.String("name", name))
	return &models.Ruleset{ID: int(resp.DatabaseRulesetID), Name: name, ConnectorID: connectorID}, nil
}

// AddTables submits the ruleset's full table list. The engine replaces the
// existing list, so tables must include everything that should remain.
func (c *Client) AddTables(ctx context.Context, rulesetID int, tables []string) error {
	if len(tables) == 0 {
		c.logger.Debug("No tables to submit", zap.Int("ruleset_id", rulesetID))
		return nil
	}
	metadata := make([]tableMetadataDTO, 0, len(tables))
	for _, t := range tables {
		metadata = append(metadata, tableMetadataDTO{TableName: t, RulesetID: jsonutil.FlexInt(rulesetID)})
	}

	c.logger.Info("Submitting ruleset tables",
		zap.Int("ruleset_id", rulesetID),
		zap.Int("tables", len(tables)))

	var resp struct {
		AsyncTaskID jsonutil.FlexInt `json:"asyncTaskId"`
	}
	body := map[string]any{"tableMetadata": metadata}
	segments := []string{"database-rulesets", itoa(rulesetID), "bulk-table-update"}
	if err := c.do(ctx, "compliance.AddTables", http.MethodPut, segments, nil, body, &resp); err != nil {
		return err
	}
	c.logger.Debug("Bulk table update submitted",
		zap.Int("ruleset_id", rulesetID),
		zap.Int("async_task_id", int(resp.AsyncTaskID)))
	return nil
}

// GetRulesetTables returns the table names currently in a ruleset.
func (c *Client) GetRulesetTables(ctx context.Context, rulesetID int) ([]string, error) {
	query := url.Values{"ruleset_id": {itoa(rulesetID)}}
	dtos, err := listAll[tableMetadataDTO](ctx, c, "compliance.GetRulesetTables", query, "table-metadata")
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(dtos))
	for _, d := range dtos {
		tables = append(tables, d.TableName)
	}
	return tables, nil
}
