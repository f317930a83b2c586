package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
	"github.com/delphix/dlpxdbprofiler/pkg/services/pipeline"
	"github.com/delphix/dlpxdbprofiler/pkg/services/scheduler"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

var styles = struct {
	Bold       lipgloss.Style
	SuccessBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Bold: lipgloss.NewStyle().Bold(true),

	SuccessBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("42")).
		Padding(0, 1),

	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("196")).
		Padding(0, 1),
}

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return apperrors.Configuration("cli.output", "unknown output format %q (use table, json or yaml)", format)
}

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warningColor.Fprint(w, "⚠ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printInfo(w io.Writer, format string, args ...any) {
	infoColor.Fprint(w, "ℹ ")
	fmt.Fprintf(w, format+"\n", args...)
}

// countOf renders "1 schema" or "3 schemas".
func countOf(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}

// render writes v as JSON or YAML, or calls table for the default format.
func (a *app) render(v any, table func()) error {
	switch a.output {
	case outputJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		a.printf("%s\n", data)
	case outputYAML:
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		table()
	}
	return nil
}

func (a *app) printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(a.stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

var resourceOrder = []models.ResourceKind{
	models.ResourceApplication,
	models.ResourceEnvironment,
	models.ResourceConnector,
	models.ResourceRuleset,
	models.ResourceProfileJob,
}

func (a *app) printProvisioning(what string, r *pipeline.Result) {
	if r.Application != nil {
		printInfo(a.stdout, "Application %s (id %d)", r.Application.Name, r.Application.ID)
	}
	if r.Environment != nil {
		printInfo(a.stdout, "Environment %s (id %d)", r.Environment.Name, r.Environment.ID)
	}

	if len(r.Chains) > 0 {
		a.printf("\n")
		rows := make([][]string, 0, len(r.Chains))
		for _, c := range r.Chains {
			rows = append(rows, []string{
				c.Schema,
				chainCell(c, models.ResourceConnector, idOf(c.Connector)),
				chainCell(c, models.ResourceRuleset, idOf(c.Ruleset)),
				chainCell(c, models.ResourceProfileJob, idOf(c.Job)),
				strconv.Itoa(c.TablesAdded),
				chainStatus(c),
			})
		}
		a.printTable([]string{"SCHEMA", "CONNECTOR", "RULESET", "PROFILE JOB", "TABLES ADDED", "STATUS"}, rows)
	}

	for _, d := range r.Drift {
		printWarning(a.stdout, "Drift: %s", d)
	}

	var lines []string
	for _, kind := range resourceOrder {
		t, ok := r.Counts[kind]
		if !ok {
			continue
		}
		name := strings.ReplaceAll(string(kind), "_", " ")
		lines = append(lines, fmt.Sprintf("%-13s %d created, %d existing", inflection.Plural(name)+":", t.Created, t.Found))
	}
	if r.TablesAdded > 0 {
		lines = append(lines, fmt.Sprintf("%-13s %d", "tables added:", r.TablesAdded))
	}
	if r.ConflictsRecovered > 0 {
		lines = append(lines, fmt.Sprintf("%-13s %d", "conflicts:", r.ConflictsRecovered))
	}

	failed := r.Failed()
	title := fmt.Sprintf("Provisioned %s", what)
	box := styles.SuccessBox
	if len(failed) > 0 {
		title = fmt.Sprintf("Provisioned %s with %s", what, countOf(len(failed), "failed schema"))
		box = styles.ErrorBox
	}
	a.printf("\n%s\n", box.Render(styles.Bold.Render(title)+"\n"+strings.Join(lines, "\n")))

	for _, c := range failed {
		errorColor.Fprintf(a.stdout, "✗ %s: %s\n", c.Schema, c.Error)
	}
}

func idOf[T models.Connector | models.Ruleset | models.ProfileJob](v *T) int {
	if v == nil {
		return 0
	}
	switch obj := any(v).(type) {
	case *models.Connector:
		return obj.ID
	case *models.Ruleset:
		return obj.ID
	case *models.ProfileJob:
		return obj.ID
	}
	return 0
}

func chainCell(c pipeline.ChainResult, kind models.ResourceKind, id int) string {
	if id == 0 {
		return "-"
	}
	outcome, ok := c.Outcomes[kind]
	if ok && outcome.Created {
		return fmt.Sprintf("%d (new)", id)
	}
	return strconv.Itoa(id)
}

func chainStatus(c pipeline.ChainResult) string {
	if c.Err != nil {
		return "failed"
	}
	return "ok"
}

func (a *app) printRunSummary(s *scheduler.RunSummary) {
	if len(s.Results) == 0 {
		printInfo(a.stdout, "No profile jobs to run")
		return
	}
	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		exec := "-"
		if r.ExecutionID != 0 {
			exec = strconv.Itoa(r.ExecutionID)
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Job.ID),
			r.Job.Name,
			exec,
			string(r.Status),
			string(r.Outcome),
			r.Duration.Round(time.Second).String(),
		})
	}
	a.printTable([]string{"JOB", "NAME", "EXECUTION", "STATUS", "OUTCOME", "DURATION"}, rows)

	outcomes := make([]string, 0, len(s.Counts))
	for o := range s.Counts {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	lines := make([]string, 0, len(outcomes)+1)
	for _, o := range outcomes {
		lines = append(lines, fmt.Sprintf("%-18s %d", o+":", s.Counts[scheduler.Outcome(o)]))
	}
	lines = append(lines, fmt.Sprintf("%-18s %s", "elapsed:", s.Duration.Round(time.Second)))

	title := fmt.Sprintf("Ran %s", countOf(len(s.Results), "profile job"))
	box := styles.SuccessBox
	if !s.Succeeded() {
		box = styles.ErrorBox
	}
	a.printf("\n%s\n", box.Render(styles.Bold.Render(title)+"\n"+strings.Join(lines, "\n")))

	for _, r := range s.Failed() {
		msg := r.Error
		if msg == "" {
			msg = r.Detail
		}
		errorColor.Fprintf(a.stdout, "✗ job %d (%s): %s %s\n", r.Job.ID, r.Job.Name, r.Outcome, msg)
	}
}
