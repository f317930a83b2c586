package compliance

import (
	"context"

	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// Remote is the typed capability over the compliance engine that the
// reconciler, pipeline and scheduler consume. Find methods return (nil, nil)
// when the object does not exist. Implementations never retry; callers decide.
type Remote interface {
	FindApplication(ctx context.Context, name string) (*models.Application, error)
	CreateApplication(ctx context.Context, name string) (*models.Application, error)
	DeleteApplication(ctx context.Context, id int) error
	ListApplications(ctx context.Context) ([]models.Application, error)

	FindEnvironment(ctx context.Context, appID int, name string) (*models.Environment, error)
	CreateEnvironment(ctx context.Context, appID int, name string) (*models.Environment, error)
	DeleteEnvironment(ctx context.Context, id int) error
	// ListEnvironments lists the environments of one application, or of all applications when appID is nil.
	ListEnvironments(ctx context.Context, appID *int) ([]models.Environment, error)

	FindConnector(ctx context.Context, envID int, name string) (*models.Connector, error)
	CreateConnector(ctx context.Context, envID int, spec models.ConnectorSpec) (*models.Connector, error)

	FindRuleset(ctx context.Context, envID, connectorID int) (*models.Ruleset, error)
	CreateRuleset(ctx context.Context, connectorID int, name string) (*models.Ruleset, error)
	// AddTables replaces the ruleset's table list with tables.
	AddTables(ctx context.Context, rulesetID int, tables []string) error
	GetRulesetTables(ctx context.Context, rulesetID int) ([]string, error)

	FindProfileJob(ctx context.Context, envID, rulesetID, profileSetID int) (*models.ProfileJob, error)
	ListProfileJobs(ctx context.Context, envID int) ([]models.ProfileJob, error)
	CreateProfileJob(ctx context.Context, rulesetID, profileSetID int, name, description string) (*models.ProfileJob, error)
	StartProfileJob(ctx context.Context, jobID int) (*models.Execution, error)
	GetExecution(ctx context.Context, executionID int) (*models.Execution, error)

	ListProfileSets(ctx context.Context) ([]models.ProfileSet, error)
}

var _ Remote = (*Client)(nil)
