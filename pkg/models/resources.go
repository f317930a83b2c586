package models

import (
	"fmt"
	"strings"
)

// Purpose assigned to environments created by the profiler.
const EnvironmentPurposeMask = "MASK"

// Application is the top-level grouping in the compliance engine. Unique by name.
type Application struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Environment is unique by name within its application.
type Environment struct {
	ID              int    `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	ApplicationID   int    `json:"application_id" yaml:"application_id"`
	ApplicationName string `json:"application_name,omitempty" yaml:"application_name,omitempty"`
	Purpose         string `json:"purpose,omitempty" yaml:"purpose,omitempty"`
}

// Connector is a database connector within an environment.
// Spec holds the identity attributes the remote side reported.
type Connector struct {
	ID            int           `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	EnvironmentID int           `json:"environment_id" yaml:"environment_id"`
	Spec          ConnectorSpec `json:"spec" yaml:"spec"`
}

// Ruleset is the set of tables chosen for profiling through one connector.
type Ruleset struct {
	ID          int      `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	ConnectorID int      `json:"connector_id" yaml:"connector_id"`
	Tables      []string `json:"tables,omitempty" yaml:"tables,omitempty"`
}

// ProfileSet is a read-only collection of classification expressions.
type ProfileSet struct {
	ID        int    `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	CreatedBy string `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

// ProfileJob profiles one ruleset with one profile set.
type ProfileJob struct {
	ID            int    `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	RulesetID     int    `json:"ruleset_id" yaml:"ruleset_id"`
	ProfileSetID  int    `json:"profile_set_id" yaml:"profile_set_id"`
	EnvironmentID int    `json:"environment_id,omitempty" yaml:"environment_id,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ConnectorName returns the connector name used for a schema.
func ConnectorName(schema string) string { return "CONNECTOR_" + schema }

// RulesetName returns the ruleset name used for a schema.
func RulesetName(schema string) string { return "RULESET_" + schema }

// ProfileJobName returns the profile job name used for a schema.
func ProfileJobName(schema string) string { return "PROFILEJOB_" + schema }

// ProfileJobDescription returns the description attached to a schema's profile job.
func ProfileJobDescription(schema string) string {
	return fmt.Sprintf("Profile job for schema %s, ruleset %s", schema, RulesetName(schema))
}

// NormalizeTables drops blanks and duplicates while keeping first-seen order.
func NormalizeTables(tables []string) []string {
	seen := make(map[string]struct{}, len(tables))
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ResourceKind names the remote object kinds the reconciler manages.
type ResourceKind string

const (
	ResourceApplication ResourceKind = "application"
	ResourceEnvironment ResourceKind = "environment"
	ResourceConnector   ResourceKind = "connector"
	ResourceRuleset     ResourceKind = "ruleset"
	ResourceProfileJob  ResourceKind = "profile_job"
)
