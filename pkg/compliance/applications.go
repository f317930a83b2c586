package compliance

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/jsonutil"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

type applicationDTO struct {
	ApplicationID   jsonutil.FlexInt `json:"applicationId,omitempty"`
	ApplicationName string           `json:"applicationName"`
}

func (d applicationDTO) model() models.Application {
	return models.Application{ID: int(d.ApplicationID), Name: d.ApplicationName}
}

type environmentDTO struct {
	EnvironmentID   jsonutil.FlexInt `json:"environmentId,omitempty"`
	EnvironmentName string           `json:"environmentName"`
	ApplicationID   jsonutil.FlexInt `json:"applicationId"`
	Purpose         string           `json:"purpose,omitempty"`
}

func (d environmentDTO) model() models.Environment {
	return models.Environment{
		ID:            int(d.EnvironmentID),
		Name:          d.EnvironmentName,
		ApplicationID: int(d.ApplicationID),
		Purpose:       d.Purpose,
	}
}

// ListApplications returns every application.
func (c *Client) ListApplications(ctx context.Context) ([]models.Application, error) {
	dtos, err := listAll[applicationDTO](ctx, c, "compliance.ListApplications", nil, "applications")
	if err != nil {
		return nil, err
	}
	apps := make([]models.Application, 0, len(dtos))
	for _, d := range dtos {
		apps = append(apps, d.model())
	}
	return apps, nil
}

// FindApplication returns the application with the given name, or nil.
func (c *Client) FindApplication(ctx context.Context, name string) (*models.Application, error) {
	apps, err := c.ListApplications(ctx)
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].Name == name {
			return &apps[i], nil
		}
	}
	return nil, nil
}

// CreateApplication creates an application.
func (c *Client) CreateApplication(ctx context.Context, name string) (*models.Application, error) {
	const op = "compliance.CreateApplication"
	c.logger.Info("Creating application", zap.String("name", name))

	var resp applicationDTO
	if err := c.do(ctx, op, http.MethodPost, []string{"applications"}, nil, applicationDTO{ApplicationName: name}, &resp); err != nil {
		return nil, err
	}
	if resp.ApplicationID == 0 {
		return nil, missingID(op, "applicationId")
	}
	app := resp.model()
	if app.Name == "" {
		app.Name = name
	}
	c.logger.Info("Application created", zap.Int("id", app.ID), zap.String("name", app.Name))
	return &app, nil
}

// DeleteApplication deletes an application by id.
func (c *Client) DeleteApplication(ctx context.Context, id int) error {
	c.logger.Info("Deleting application", zap.Int("id", id))
	return c.do(ctx, "compliance.DeleteApplication", http.MethodDelete, []string{"applications", itoa(id)}, nil, nil, nil)
}

// ListEnvironments returns the environments of one application, or all when appID is nil.
func (c *Client) ListEnvironments(ctx context.Context, appID *int) ([]models.Environment, error) {
	var query url.Values
	if appID != nil {
		query = url.Values{"application_id": {itoa(*appID)}}
	}
	dtos, err := listAll[environmentDTO](ctx, c, "compliance.ListEnvironments", query, "environments")
	if err != nil {
		return nil, err
	}
	envs := make([]models.Environment, 0, len(dtos))
	for _, d := range dtos {
		envs = append(envs, d.model())
	}
	return envs, nil
}

// FindEnvironment returns the named environment of an application, or nil.
func (c *Client) FindEnvironment(ctx context.Context, appID int, name string) (*models.Environment, error) {
	envs, err := c.ListEnvironments(ctx, &appID)
	if err != nil {
		return nil, err
	}
	for i := range envs {
		// Older engines ignore the application_id filter.
		if envs[i].Name == name && (envs[i].ApplicationID == 0 || envs[i].ApplicationID == appID) {
			return &envs[i], nil
		}
	}
	return nil, nil
}

// CreateEnvironment creates a MASK environment in an application.
func (c *Client) CreateEnvironment(ctx context.Context, appID int, name string) (*models.Environment, error) {
	const op = "compliance.CreateEnvironment"
	c.logger.Info("Creating environment", zap.String("name", name), zap.Int("application_id", appID))

	payload := environmentDTO{
		EnvironmentName: name,
		ApplicationID:   jsonutil.FlexInt(appID),
		Purpose:         models.EnvironmentPurposeMask,
	}
	var resp environmentDTO
	if err := c.do(ctx, op, http.MethodPost, []string{"environments"}, nil, payload, &resp); err != nil {
		return nil, err
	}
	if resp.EnvironmentID == 0 {
		return nil, missingID(op, "environmentId")
	}
	env := resp.model()
	if env.Name == "" {
		env.Name = name
	}
	if env.ApplicationID == 0 {
		env.ApplicationID = appID
	}
	if env.Purpose == "" {
		env.Purpose = models.EnvironmentPurposeMask
	}
	c.logger.Info("Environment created", zap.Int("id", env.ID), zap.String("name", env.Name))
	return &env, nil
}

// DeleteEnvironment deletes an environment by id.
func (c *Client) DeleteEnvironment(ctx context.Context, id int) error {
	c.logger.Info("Deleting environment", zap.Int("id", id))
	return c.do(ctx, "compliance.DeleteEnvironment", http.MethodDelete, []string{"environments", itoa(id)}, nil, nil, nil)
}

// ListProfileSets returns every profile set.
func (c *Client) ListProfileSets(ctx context.Context) ([]models.ProfileSet, error) {
	type profileSetDTO struct {
		ProfileSetID   jsonutil.FlexInt `json:"profileSetId"`
		ProfileSetName string           `json:"profileSetName"`
		CreatedBy      string           `json:"createdBy"`
	}
	dtos, err := listAll[profileSetDTO](ctx, c, "compliance.ListProfileSets", nil, "profile-sets")
	if err != nil {
		return nil, err
	}
	sets := make([]models.ProfileSet, 0, len(dtos))
	for _, d := range dtos {
		sets = append(sets, models.ProfileSet{ID: int(d.ProfileSetID), Name: d.ProfileSetName, CreatedBy: d.CreatedBy})
	}
	return sets, nil
}

func missingID(op, field string) error {
	return &apperrors.Error{
		Kind:    apperrors.KindRemoteUnavailable,
		Op:      op,
		Message: "create response did not include " + field,
	}
}
