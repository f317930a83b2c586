package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/services/pipeline"
)

func newEnsureApplicationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "create-application",
		Aliases: []string{"ensure-application"},
		Short:   "Create the application if it does not exist",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.ensure(cmd.Context(), "application", func(ctx context.Context) (*pipeline.Result, error) {
				svc, err := a.svc()
				if err != nil {
					return nil, err
				}
				return svc.EnsureApplication(ctx, a.cfg)
			})
		},
	}
}

func newEnsureEnvironmentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "create-environment",
		Aliases: []string{"ensure-environment"},
		Short:   "Create the application and environment if they do not exist",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.ensure(cmd.Context(), "environment", func(ctx context.Context) (*pipeline.Result, error) {
				svc, err := a.svc()
				if err != nil {
					return nil, err
				}
				return svc.EnsureEnvironment(ctx, a.cfg)
			})
		},
	}
}

func newCreateConnectorsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-connectors",
		Short: "Create connectors, rulesets and profile jobs for the configured schemas",
		Long: `Create one connector, ruleset and profile job per schema.

With DBP_CONNECTOR_SCOPE=schema only DBP_SCHEMA_NAME is provisioned; with
DBP_CONNECTOR_SCOPE=all every user schema of the source database is. Existing
objects are reused and new tables are merged into existing rulesets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.ensure(cmd.Context(), "connectors", func(ctx context.Context) (*pipeline.Result, error) {
				svc, err := a.svc()
				if err != nil {
					return nil, err
				}
				return svc.CreateConnectorsRulesetsJobs(ctx, a.cfg)
			})
		},
	}
}

func newCreateAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-all",
		Short: "Create application, environment, connectors, rulesets and profile jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.ensure(cmd.Context(), "all", func(ctx context.Context) (*pipeline.Result, error) {
				svc, err := a.svc()
				if err != nil {
					return nil, err
				}
				return svc.CreateAll(ctx, a.cfg)
			})
		},
	}
}

// ensure runs a provisioning operation and renders its result.
func (a *app) ensure(parent context.Context, what string, op func(context.Context) (*pipeline.Result, error)) error {
	ctx, cancel := signalContext(ctxOrBackground(parent))
	defer cancel()

	result, err := op(ctx)
	if err != nil {
		return err
	}
	if err := a.render(result, func() { a.printProvisioning(what, result) }); err != nil {
		return err
	}
	if len(result.Failed()) > 0 {
		return errPartial
	}
	return nil
}

func newDeleteEnvironmentCmd(a *app) *cobra.Command {
	var application string
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-environment <name>",
		Short: "Delete an environment by name",
		Long: `Delete an environment by name. When the same environment name exists in
several applications, pass --application to choose one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			label := fmt.Sprintf("environment '%s'", name)
			if application != "" {
				label += fmt.Sprintf(" of application '%s'", application)
			}
			if ok, err := a.confirm(yes, "Delete "+label+"?"); err != nil || !ok {
				return err
			}
			svc, err := a.svc()
			if err != nil {
				return err
			}
			if err := svc.DeleteEnvironment(ctxOrBackground(cmd.Context()), a.cfg, name, application); err != nil {
				return err
			}
			printSuccess(a.stdout, "Deleted %s", label)
			return nil
		},
	}
	cmd.Flags().StringVar(&application, "application", "", "application owning the environment")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newDeleteApplicationCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-application <name>",
		Short: "Delete an application by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if ok, err := a.confirm(yes, fmt.Sprintf("Delete application '%s'?", name)); err != nil || !ok {
				return err
			}
			svc, err := a.svc()
			if err != nil {
				return err
			}
			if err := svc.DeleteApplication(ctxOrBackground(cmd.Context()), a.cfg, name); err != nil {
				return err
			}
			printSuccess(a.stdout, "Deleted application '%s'", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks before a destructive call unless skip is set.
func (a *app) confirm(skip bool, message string) (bool, error) {
	if skip {
		return true, nil
	}
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message}, &ok); err != nil {
		return false, fmt.Errorf("confirmation prompt failed (use --yes when not on a terminal): %w", err)
	}
	if !ok {
		printInfo(a.stdout, "Deletion cancelled")
	}
	return ok, nil
}

func newListApplicationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-applications",
		Short: "List applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.svc()
			if err != nil {
				return err
			}
			apps, err := svc.ListApplications(ctxOrBackground(cmd.Context()), a.cfg)
			if err != nil {
				return err
			}
			return a.render(apps, func() {
				rows := make([][]string, 0, len(apps))
				for _, app := range apps {
					rows = append(rows, []string{strconv.Itoa(app.ID), app.Name})
				}
				a.printTable([]string{"ID", "NAME"}, rows)
				a.printf("%s\n", countOf(len(apps), "application"))
			})
		},
	}
}

func newListEnvironmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-environments",
		Short: "List environments of all applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.svc()
			if err != nil {
				return err
			}
			envs, err := svc.ListEnvironments(ctxOrBackground(cmd.Context()), a.cfg)
			if err != nil {
				return err
			}
			return a.render(envs, func() {
				rows := make([][]string, 0, len(envs))
				for _, env := range envs {
					rows = append(rows, []string{strconv.Itoa(env.ID), env.Name, env.ApplicationName, env.Purpose})
				}
				a.printTable([]string{"ID", "NAME", "APPLICATION", "PURPOSE"}, rows)
				a.printf("%s\n", countOf(len(envs), "environment"))
			})
		},
	}
}

func newListProfileSetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-profile-sets",
		Short: "List profile sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.svc()
			if err != nil {
				return err
			}
			sets, err := svc.ListProfileSets(ctxOrBackground(cmd.Context()), a.cfg)
			if err != nil {
				return err
			}
			return a.render(sets, func() {
				rows := make([][]string, 0, len(sets))
				for _, s := range sets {
					rows = append(rows, []string{strconv.Itoa(s.ID), s.Name, s.CreatedBy})
				}
				a.printTable([]string{"ID", "NAME", "CREATED BY"}, rows)
				a.printf("%s\n", countOf(len(sets), "profile set"))
			})
		},
	}
}

func newListSchemasCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-schemas",
		Short: "List the user schemas of the source database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.svc()
			if err != nil {
				return err
			}
			schemas, err := svc.ListSchemas(ctxOrBackground(cmd.Context()), a.cfg)
			if err != nil {
				return err
			}
			return a.render(schemas, func() {
				rows := make([][]string, 0, len(schemas))
				for _, s := range schemas {
					rows = append(rows, []string{s})
				}
				a.printTable([]string{"SCHEMA"}, rows)
				a.printf("%s\n", countOf(len(schemas), "schema"))
			})
		},
	}
}

func newRunProfileJobsCmd(a *app) *cobra.Command {
	var jobIDs []int
	var maxParallel int
	var deadline time.Duration
	cmd := &cobra.Command{
		Use:   "run-profile-jobs",
		Short: "Run the profile jobs of the configured environment",
		Long: `Start the profile jobs of the configured environment and wait for them.

Without --job-id every job in the environment runs. Jobs start in job id
order, at most --max-parallel at a time. Interrupting the command stops
tracking running jobs; it does not cancel them on the engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("max-parallel") {
				a.cfg.Profile.MaxParallel = maxParallel
			}
			if cmd.Flags().Changed("deadline") {
				a.cfg.Profile.Deadline = deadline
			}
			return a.runJobs(cmd.Context(), jobIDs)
		},
	}
	cmd.Flags().IntSliceVar(&jobIDs, "job-id", nil, "profile job ids to run (repeatable or comma separated)")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 1, "override DBP_PROFILE_MAX_PARALLEL")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "override DBP_PROFILE_DEADLINE, e.g. 2h")
	return cmd
}

func (a *app) runJobs(parent context.Context, jobIDs []int) error {
	ctx, cancel := signalContext(ctxOrBackground(parent))
	defer cancel()

	svc, err := a.svc()
	if err != nil {
		return err
	}
	summary, err := svc.RunProfileJobs(ctx, a.cfg, jobIDs)
	if err != nil {
		return err
	}
	if err := a.render(summary, func() { a.printRunSummary(summary) }); err != nil {
		return err
	}
	if !summary.Succeeded() {
		return errPartial
	}
	return nil
}

func newEnginesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the source database engines compiled into this binary",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := validateOutput(a.output); err != nil {
				return err
			}
			engines := datasource.RegisteredEngines()
			return a.render(engines, func() {
				rows := make([][]string, 0, len(engines))
				for _, e := range engines {
					rows = append(rows, []string{string(e.Engine), e.DisplayName, e.Description})
				}
				a.printTable([]string{"ENGINE", "NAME", "DESCRIPTION"}, rows)
			})
		},
	}
}

// parseJobIDs reads a comma or space separated id list. Empty input selects all jobs.
func parseJobIDs(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, apperrors.Configuration("cli.parseJobIDs", "invalid profile job id %q", f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
