package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	// ExitPartial means the operation ran but some schemas or jobs did not succeed.
	ExitPartial = 3
)

// errPartial marks a run whose output was printed but which had failures.
var errPartial = errors.New("completed with failures")

// Execute runs the command line and returns the process exit code.
func Execute(version string) int {
	return run(version, os.Args[1:], os.Stdout, os.Stderr, nil)
}

func run(version string, args []string, stdout, stderr io.Writer, factory ServiceFactory) int {
	a := newApp(version, stdout, stderr)
	if factory != nil {
		a.newService = factory
	}
	defer a.finish()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, errPartial) {
		return ExitPartial
	}
	printError(stderr, err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errPartial):
		return ExitPartial
	case apperrors.IsKind(err, apperrors.KindConfiguration):
		return ExitConfiguration
	}
	return ExitFailure
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dlpxdbprofiler",
		Short: "Provision and run Delphix Continuous Compliance profile jobs",
		Long: `dlpxdbprofiler discovers the schemas of a source database and ensures the
matching application, environment, connectors, rulesets and profile jobs exist
in a Delphix Continuous Compliance Engine. It can then run the profile jobs.

Configuration comes from dbprofiler.yaml (or --config) and DBP_* environment
variables. Every create operation is idempotent and safe to re-run.

Run without a command on a terminal to use the interactive menu.`,
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsSetup(cmd) {
				return nil
			}
			if err := validateOutput(a.output); err != nil {
				return err
			}
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTerminal(os.Stdin) {
				return cmd.Help()
			}
			return runMenu(cmd, a)
		},
	}
	root.SetVersionTemplate("dlpxdbprofiler version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to the YAML config file (default dbprofiler.yaml if present)")
	flags.StringVarP(&a.output, "output", "o", outputTable, "output format: table, json or yaml")
	flags.StringVar(&a.logLevel, "log-level", "", "override DBP_LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newEnsureApplicationCmd(a),
		newEnsureEnvironmentCmd(a),
		newCreateConnectorsCmd(a),
		newCreateAllCmd(a),
		newDeleteEnvironmentCmd(a),
		newDeleteApplicationCmd(a),
		newListApplicationsCmd(a),
		newListEnvironmentsCmd(a),
		newListProfileSetsCmd(a),
		newListSchemasCmd(a),
		newRunProfileJobsCmd(a),
		newEnginesCmd(a),
		newVersionCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			a.printf("dlpxdbprofiler version %s\n", a.version)
			a.printf("Go version: %s\n", runtime.Version())
			a.printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// needsSetup reports whether cmd talks to a database or the compliance engine.
func needsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "engines", "help", "completion", cobra.ShellCompRequestCmd:
			return false
		}
	}
	return true
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// printError writes err with its remediation hint when it has one.
func printError(w io.Writer, err error) {
	errorColor.Fprintf(w, "✗ %s\n", err)
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Hint != "" {
		fmt.Fprintf(w, "  hint: %s\n", appErr.Hint)
	}
}
