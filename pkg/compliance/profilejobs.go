package compliance

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/jsonutil"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

type profileJobDTO struct {
	ProfileJobID   jsonutil.FlexInt `json:"profileJobId,omitempty"`
	JobName        string           `json:"jobName"`
	ProfileSetID   jsonutil.FlexInt `json:"profileSetId"`
	RulesetID      jsonutil.FlexInt `json:"rulesetId"`
	JobDescription string           `json:"jobDescription,omitempty"`
}

func (d profileJobDTO) model(envID int) models.ProfileJob {
	return models.ProfileJob{
		ID:            int(d.ProfileJobID),
		Name:          d.JobName,
		RulesetID:     int(d.RulesetID),
		ProfileSetID:  int(d.ProfileSetID),
		EnvironmentID: envID,
		Description:   d.JobDescription,
	}
}

type executionDTO struct {
	ExecutionID jsonutil.FlexInt `json:"executionId"`
	JobID       jsonutil.FlexInt `json:"jobId"`
	Status      string           `json:"status"`
	StartTime   string           `json:"startTime,omitempty"`
	EndTime     string           `json:"endTime,omitempty"`
}

func (d executionDTO) model() *models.Execution {
	exec := &models.Execution{
		ID:           int(d.ExecutionID),
		JobID:        int(d.JobID),
		Status:       models.MapRemoteStatus(d.Status),
		RemoteStatus: d.Status,
		StartTime:    parseTime(d.StartTime),
		EndTime:      parseTime(d.EndTime),
	}
	if d.Status == "WARNING" {
		exec.Detail = "completed with warnings"
	}
	return exec
}

// ListProfileJobs returns the profile jobs of an environment.
func (c *Client) ListProfileJobs(ctx context.Context, envID int) ([]models.ProfileJob, error) {
	query := url.Values{"environment_id": {itoa(envID)}}
	dtos, err := listAll[profileJobDTO](ctx, c, "compliance.ListProfileJobs", query, "profile-jobs")
	if err != nil {
		return nil, err
	}
	jobs := make([]models.ProfileJob, 0, len(dtos))
	for _, d := range dtos {
		jobs = append(jobs, d.model(envID))
	}
	return jobs, nil
}

// FindProfileJob returns the job profiling a ruleset with a profile set, or nil.
func (c *Client) FindProfileJob(ctx context.Context, envID, rulesetID, profileSetID int) (*models.ProfileJob, error) {
	jobs, err := c.ListProfileJobs(ctx, envID)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].RulesetID == rulesetID && jobs[i].ProfileSetID == profileSetID {
			return &jobs[i], nil
		}
	}
	return nil, nil
}

// CreateProfileJob creates a profile job.
func (c *Client) CreateProfileJob(ctx context.Context, rulesetID, profileSetID int, name, description string) (*models.ProfileJob, error) {
	const op = "compliance.CreateProfileJob"
	c.logger.Info("Creating profile job",
		zap.String("name", name),
		zap.Int("ruleset_id", rulesetID),
		zap.Int("profile_set_id", profileSetID))

	payload := profileJobDTO{
		JobName:        name,
		ProfileSetID:   jsonutil.FlexInt(profileSetID),
		RulesetID:      jsonutil.FlexInt(rulesetID),
		JobDescription: description,
	}
	var resp profileJobDTO
	if err := c.do(ctx, op, http.MethodPost, []string{"profile-jobs"}, nil, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ProfileJobID == 0 {
		return nil, missingID(op, "profileJobId")
	}
	job := &models.ProfileJob{
		ID:           int(resp.ProfileJobID),
		Name:         name,
		RulesetID:    rulesetID,
		ProfileSetID: profileSetID,
		Description:  description,
	}
	c.logger.Info("Profile job created", zap.Int("id", job.ID), zap.String("name", name))
	return job, nil
}

// StartProfileJob starts an execution of a profile job.
func (c *Client) StartProfileJob(ctx context.Context, jobID int) (*models.Execution, error) {
	const op = "compliance.StartProfileJob"
	c.logger.Info("Starting profile job", zap.Int("job_id", jobID))

	var resp executionDTO
	body := map[string]int{"jobId": jobID}
	if err := c.do(ctx, op, http.MethodPost, []string{"executions"}, nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.ExecutionID == 0 {
		return nil, missingID(op, "executionId")
	}
	exec := resp.model()
	if exec.JobID == 0 {
		exec.JobID = jobID
	}
	c.logger.Info("Execution started",
		zap.Int("job_id", jobID),
		zap.Int("execution_id", exec.ID),
		zap.String("status", resp.Status))
	return exec, nil
}

// GetExecution reads the current state of an execution.
func (c *Client) GetExecution(ctx context.Context, executionID int) (*models.Execution, error) {
	var resp executionDTO
	if err := c.do(ctx, "compliance.GetExecution", http.MethodGet, []string{"executions", itoa(executionID)}, nil, nil, &resp); err != nil {
		return nil, err
	}
	exec := resp.model()
	if exec.ID == 0 {
		exec.ID = executionID
	}
	return exec, nil
}
