// Package compliancetest provides an in-memory compliance engine for tests.
package compliancetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/compliance"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// PollFunc decides the remote status of the n-th poll (1-based) of a job's execution.
type PollFunc func(jobID, poll int) (string, error)

// Engine is an in-memory compliance.Remote. The zero value is not usable; call New.
type Engine struct {
	mu sync.Mutex

	nextID      int
	apps        map[int]*models.Application
	envs        map[int]*models.Environment
	connectors  map[int]*models.Connector
	rulesets    map[int]*models.Ruleset
	jobs        map[int]*models.ProfileJob
	profileSets map[int]*models.ProfileSet
	executions  map[int]*execution

	calls map[string]int
	errs  map[string]error

	conflictOnCreate map[models.ResourceKind]bool
	startErrs        map[int]error

	// Poll scripts execution statuses. Defaults to RUNNING on the first poll and SUCCEEDED after.
	Poll PollFunc
	// CallDelay is slept (honoring ctx) inside StartProfileJob and GetExecution.
	CallDelay time.Duration

	running    int
	maxRunning int
	started    []int
}

type execution struct {
	id       int
	jobID    int
	polls    int
	terminal bool
}

var _ compliance.Remote = (*Engine)(nil)

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		nextID:           100,
		apps:             map[int]*models.Application{},
		envs:             map[int]*models.Environment{},
		connectors:       map[int]*models.Connector{},
		rulesets:         map[int]*models.Ruleset{},
		jobs:             map[int]*models.ProfileJob{},
		profileSets:      map[int]*models.ProfileSet{},
		executions:       map[int]*execution{},
		calls:            map[string]int{},
		errs:             map[string]error{},
		conflictOnCreate: map[models.ResourceKind]bool{},
		startErrs:        map[int]error{},
	}
}

// Calls returns how many times a method was invoked.
func (e *Engine) Calls(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (e *Engine) TotalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

// CreateCalls returns the number of create calls across all kinds.
func (e *Engine) CreateCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for m, c := range e.calls {
		if strings.HasPrefix(m, "Create") {
			n += c
		}
	}
	return n
}

// FailOn makes every call of method return err until cleared with a nil err.
func (e *Engine) FailOn(method string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.errs, method)
		return
	}
	e.errs[method] = err
}

// ConflictOnNextCreate simulates a concurrent creator: the next create of kind
// stores the object and then reports RemoteConflict to the caller.
func (e *Engine) ConflictOnNextCreate(kind models.ResourceKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conflictOnCreate[kind] = true
}

// FailStart makes StartProfileJob fail for one job.
func (e *Engine) FailStart(jobID int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startErrs[jobID] = err
}

// MaxConcurrentRunning is the peak number of executions started and not yet terminal.
func (e *Engine) MaxConcurrentRunning() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxRunning
}

// StartedJobs lists job ids in the order their executions were started.
func (e *Engine) StartedJobs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.started...)
}

// SeedApplication stores an application directly.
func (e *Engine) SeedApplication(name string) models.Application {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.addApplication(name)
}

// SeedEnvironment stores an environment directly.
func (e *Engine) SeedEnvironment(appID int, name string) models.Environment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.addEnvironment(appID, name)
}

// SeedConnector stores a connector directly.
func (e *Engine) SeedConnector(envID int, spec models.ConnectorSpec) models.Connector {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.addConnector(envID, spec)
}

// SeedProfileSet stores a profile set with a fixed id.
func (e *Engine) SeedProfileSet(id int, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profileSets[id] = &models.ProfileSet{ID: id, Name: name, CreatedBy: "admin"}
}

// SeedProfileJob stores a profile job in an environment.
func (e *Engine) SeedProfileJob(envID int, name string) models.ProfileJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	job := &models.ProfileJob{ID: e.id(), Name: name, EnvironmentID: envID}
	e.jobs[job.ID] = job
	return *job
}

// Applications returns stored applications sorted by id.
func (e *Engine) Applications() []models.Application {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedValues(e.apps, func(a models.Application) int { return a.ID })
}

// Connectors returns stored connectors sorted by id.
func (e *Engine) Connectors() []models.Connector {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedValues(e.connectors, func(c models.Connector) int { return c.ID })
}

// Rulesets returns stored rulesets sorted by id.
func (e *Engine) Rulesets() []models.Ruleset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedValues(e.rulesets, func(r models.Ruleset) int { return r.ID })
}

// ProfileJobs returns stored profile jobs sorted by id.
func (e *Engine) ProfileJobs() []models.ProfileJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortedValues(e.jobs, func(j models.ProfileJob) int { return j.ID })
}

func sortedValues[T any](m map[int]*T, id func(T) int) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func (e *Engine) id() int {
	e.nextID++
	return e.nextID
}

// enter records a call and returns the injected error for it, if any. Caller holds mu.
func (e *Engine) enter(method string) error {
	e.calls[method]++
	return e.errs[method]
}

// conflict consumes a pending simulated race for kind. Caller holds mu.
func (e *Engine) conflict(op string, kind models.ResourceKind) error {
	if !e.conflictOnCreate[kind] {
		return nil
	}
	delete(e.conflictOnCreate, kind)
	return &apperrors.Error{Kind: apperrors.KindRemoteConflict, Op: op, Message: "object already exists", Status: 409}
}

func (e *Engine) addApplication(name string) *models.Application {
	app := &models.Application{ID: e.id(), Name: name}
	e.apps[app.ID] = app
	return app
}

func (e *Engine) addEnvironment(appID int, name string) *models.Environment {
	env := &models.Environment{ID: e.id(), Name: name, ApplicationID: appID, Purpose: models.EnvironmentPurposeMask}
	e.envs[env.ID] = env
	return env
}

func (e *Engine) addConnector(envID int, spec models.ConnectorSpec) *models.Connector {
	spec.Password = ""
	if spec.Kind == models.ConnectorJDBC && spec.JDBC == "" {
		spec.JDBC = spec.JDBCURL()
	}
	conn := &models.Connector{ID: e.id(), Name: spec.Name, EnvironmentID: envID, Spec: spec}
	e.connectors[conn.ID] = conn
	return conn
}

func (e *Engine) FindApplication(_ context.Context, name string) (*models.Application, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("FindApplication"); err != nil {
		return nil, err
	}
	for _, a := range e.apps {
		if a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (e *Engine) CreateApplication(_ context.Context, name string) (*models.Application, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("CreateApplication"); err != nil {
		return nil, err
	}
	for _, a := range e.apps {
		if a.Name == name {
			return nil, &apperrors.Error{Kind: apperrors.KindRemoteConflict, Op: "CreateApplication", Message: "object already exists", Status: 409}
		}
	}
	app := e.addApplication(name)
	if err := e.conflict("CreateApplication", models.ResourceApplication); err != nil {
		return nil, err
	}
	cp := *app
	return &cp, nil
}

func (e *Engine) DeleteApplication(_ context.Context, id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("DeleteApplication"); err != nil {
		return err
	}
	if _, ok := e.apps[id]; !ok {
		return &apperrors.Error{Kind: apperrors.KindNotFound, Op: "DeleteApplication", Message: "object not found", Status: 404}
	}
	for _, env := range e.envs {
		if env.ApplicationID == id {
			return &apperrors.Error{Kind: apperrors.KindDeleteRejected, Op: "DeleteApplication", Message: "delete rejected by compliance engine", Status: 400, Detail: "application has environments"}
		}
	}
	delete(e.apps, id)
	return nil
}

func (e *Engine) ListApplications(_ context.Context) ([]models.Application, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("ListApplications"); err != nil {
		return nil, err
	}
	// Map order stands in for the engine's unspecified ordering.
	out := make([]models.Application, 0, len(e.apps))
	for _, a := range e.apps {
		out = append(out, *a)
	}
	return out, nil
}

func (e *Engine) FindEnvironment(_ context.Context, appID int, name string) (*models.Environment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("FindEnvironment"); err != nil {
		return nil, err
	}
	for _, env := range e.envs {
		if env.ApplicationID == appID && env.Name == name {
			cp := *env
			return &cp, nil
		}
	}
	return nil, nil
}

func (e *Engine) CreateEnvironment(_ context.Context, appID int, name string) (*models.Environment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("CreateEnvironment"); err != nil {
		return nil, err
	}
	if _, ok := e.apps[appID]; !ok {
		return nil, &apperrors.Error{Kind: apperrors.KindNotFound, Op: "CreateEnvironment", Message: "application not found", Status: 404}
	}
	for _, env := range e.envs {
		if env.ApplicationID == appID && env.Name == name {
			return nil, &apperrors.Error{Kind: apperrors.KindRemoteConflict, Op: "CreateEnvironment", Message: "object already exists", Status: 409}
		}
	}
	env := e.addEnvironment(appID, name)
	if err := e.conflict("CreateEnvironment", models.ResourceEnvironment); err != nil {
		return nil, err
	}
	cp := *env
	return &cp, nil
}

func (e *Engine) DeleteEnvironment(_ context.Context, id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("DeleteEnvironment"); err != nil {
		return err
	}
	if _, ok := e.envs[id]; !ok {
		return &apperrors.Error{Kind: apperrors.KindNotFound, Op: "DeleteEnvironment", Message: "object not found", Status: 404}
	}
	for _, c := range e.connectors {
		if c.EnvironmentID == id {
			return &apperrors.Error{Kind: apperrors.KindDeleteRejected, Op: "DeleteEnvironment", Message: "delete rejected by compliance engine", Status: 400, Detail: "environment has connectors"}
		}
	}
	delete(e.envs, id)
	return nil
}

func (e *Engine) ListEnvironments(_ context.Context, appID *int) ([]models.Environment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("ListEnvironments"); err != nil {
		return nil, err
	}
	out := []models.Environment{}
	for _, env := range e.envs {
		if appID == nil || env.ApplicationID == *appID {
			out = append(out, *env)
		}
	}
	return out, nil
}

func (e *Engine) FindConnector(_ context.Context, envID int, name string) (*models.Connector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("FindConnector"); err != nil {
		return nil, err
	}
	for _, c := range e.connectors {
		if c.EnvironmentID == envID && c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (e *Engine) CreateConnector(_ context.Context, envID int, spec models.ConnectorSpec) (*models.Connector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("CreateConnector"); err != nil {
		return nil, err
	}
	for _, c := range e.connectors {
		if c.EnvironmentID == envID && c.Name == spec.Name {
			return nil, &apperrors.Error{Kind: apperrors.KindRemoteConflict, Op: "CreateConnector", Message: "object already exists", Status: 409}
		}
	}
	conn := e.addConnector(envID, spec)
	if err := e.conflict("CreateConnector", models.ResourceConnector); err != nil {
		return nil, err
	}
	cp := *conn
	return &cp, nil
}

func (e *Engine) FindRuleset(_ context.Context, envID, connectorID int) (*models.Ruleset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("FindRuleset"); err != nil {
		return nil, err
	}
	conn, ok := e.connectors[connectorID]
	if !ok || conn.EnvironmentID != envID {
		return nil, nil
	}
	for _, r := range e.rulesets {
		if r.ConnectorID == connectorID {
			cp := *r
			cp.Tables = nil
			return &cp, nil
		}
	}
	return nil, nil
}

func (e *Engine) CreateRuleset(_ context.Context, connectorID int, name string) (*models.Ruleset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("CreateRuleset"); err != nil {
		return nil, err
	}
	if _, ok := e.connectors[connectorID]; !ok {
		return nil, &apperrors.Error{Kind: apperrors.KindNotFound, Op: "CreateRuleset", Message: "connector not found", Status: 404}
	}
	for _, r := range e.rulesets {
		if r.ConnectorID == connectorID {
			return nil, &apperrors.Error{Kind: apperrors.KindRemoteConflict, Op: "CreateRuleset", Message: "object already exists", Status: 409}
		}
	}
	rs := &models.Ruleset{ID: e.id(), Name: name, ConnectorID: connectorID}
	e.rulesets[rs.ID] = rs
	if err := e.conflict("CreateRuleset", models.ResourceRuleset); err != nil {
		return nil, err
	}
	cp := *rs
	return &cp, nil
}

// AddTables replaces the table list, as the engine's bulk update does.
func (e *Engine) AddTables(_ context.Context, rulesetID int, tables []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("AddTables"); err != nil {
		return err
	}
	rs, ok := e.rulesets[rulesetID]
	if !ok {
		return &apperrors.Error{Kind: apperrors.KindNotFound, Op: "AddTables", Message: "ruleset not found", Status: 404}
	}
	rs.Tables = append([]string(nil), tables...)
	return nil
}

func (e *Engine) GetRulesetTables(_ context.Context, rulesetID int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetRulesetTables"); err != nil {
		return nil, err
	}
	rs, ok := e.rulesets[rulesetID]
	if !ok {
		return nil, &apperrors.Error{Kind: apperrors.KindNotFound, Op: "GetRulesetTables", Message: "ruleset not found", Status: 404}
	}
	return append([]string{}, rs.Tables...), nil
}

func (e *Engine) FindProfileJob(_ context.Context, envID, rulesetID, profileSetID int) (*models.ProfileJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("FindProfileJob"); err != nil {
		return nil, err
	}
	for _, j := range e.jobs {
		if j.EnvironmentID == envID && j.RulesetID == rulesetID && j.ProfileSetID == profileSetID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (e *Engine) ListProfileJobs(_ context.Context, envID int) ([]models.ProfileJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("ListProfileJobs"); err != nil {
		return nil, err
	}
	out := []models.ProfileJob{}
	for _, j := range e.jobs {
		if j.EnvironmentID == envID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (e *Engine) CreateProfileJob(_ context.Context, rulesetID, profileSetID int, name, description string) (*models.ProfileJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("CreateProfileJob"); err != nil {
		return nil, err
	}
	rs, ok := e.rulesets[rulesetID]
	if !ok {
		return nil, &apperrors.Error{Kind: apperrors.KindNotFound, Op: "CreateProfileJob", Message: "ruleset not found", Status: 404}
	}
	if _, ok := e.profileSets[profileSetID]; !ok && len(e.profileSets) > 0 {
		return nil, &apperrors.Error{Kind: apperrors.KindNotFound, Op: "CreateProfileJob", Message: "profile set not found", Status: 404}
	}
	for _, j := range e.jobs {
		if j.RulesetID == rulesetID && j.ProfileSetID == profileSetID {
			return nil, &apperrors.Error{Kind: apperrors.KindRemoteConflict, Op: "CreateProfileJob", Message: "object already exists", Status: 409}
		}
	}
	envID := 0
	if conn, ok := e.connectors[rs.ConnectorID]; ok {
		envID = conn.EnvironmentID
	}
	job := &models.ProfileJob{
		ID:            e.id(),
		Name:          name,
		RulesetID:     rulesetID,
		ProfileSetID:  profileSetID,
		EnvironmentID: envID,
		Description:   description,
	}
	e.jobs[job.ID] = job
	if err := e.conflict("CreateProfileJob", models.ResourceProfileJob); err != nil {
		return nil, err
	}
	cp := *job
	return &cp, nil
}

func (e *Engine) StartProfileJob(ctx context.Context, jobID int) (*models.Execution, error) {
	if err := sleep(ctx, e.CallDelay); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("StartProfileJob"); err != nil {
		return nil, err
	}
	if err := e.startErrs[jobID]; err != nil {
		return nil, err
	}
	if _, ok := e.jobs[jobID]; !ok {
		return nil, &apperrors.Error{Kind: apperrors.KindNotFound, Op: "StartProfileJob", Message: "job not found", Status: 404}
	}
	exec := &execution{id: e.id(), jobID: jobID}
	e.executions[exec.id] = exec
	e.started = append(e.started, jobID)
	e.running++
	if e.running > e.maxRunning {
		e.maxRunning = e.running
	}
	return &models.Execution{ID: exec.id, JobID: jobID, Status: models.JobStatusRunning, RemoteStatus: "QUEUED"}, nil
}

func (e *Engine) GetExecution(ctx context.Context, executionID int) (*models.Execution, error) {
	if err := sleep(ctx, e.CallDelay); err != nil {
		return nil, err
	}
	e.mu.Lock()
	if err := e.enter("GetExecution"); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	exec, ok := e.executions[executionID]
	if !ok {
		e.mu.Unlock()
		return nil, &apperrors.Error{Kind: apperrors.KindNotFound, Op: "GetExecution", Message: "execution not found", Status: 404}
	}
	exec.polls++
	jobID, polls := exec.jobID, exec.polls
	poll := e.Poll
	e.mu.Unlock()

	remote := "SUCCEEDED"
	if poll != nil {
		var err error
		if remote, err = poll(jobID, polls); err != nil {
			return nil, err
		}
	} else if polls == 1 {
		remote = "RUNNING"
	}

	status := models.MapRemoteStatus(remote)
	e.mu.Lock()
	if status.IsTerminal() && !exec.terminal {
		exec.terminal = true
		e.running--
	}
	e.mu.Unlock()

	return &models.Execution{ID: executionID, JobID: jobID, Status: status, RemoteStatus: remote}, nil
}

func (e *Engine) ListProfileSets(_ context.Context) ([]models.ProfileSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("ListProfileSets"); err != nil {
		return nil, err
	}
	out := make([]models.ProfileSet, 0, len(e.profileSets))
	for _, s := range e.profileSets {
		out = append(out, *s)
	}
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
