// Package config provides configuration models and helpers for the loader.
//
// This file adds a lightweight linter/validator for RunConfig values. It
// performs static checks over a decoded RunConfig and returns a list of
// issues (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a RunConfig.
//
// Path is a dotted path into the config (e.g. "storage.dsn",
// "tables[1].table_name"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateRunConfig performs static validation / linting of a RunConfig.
//
// It does not mutate the config. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidateRunConfig(c RunConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(c.Source)...)
	issues = append(issues, validateStorage(c.Storage)...)
	issues = append(issues, validateTables(c.Tables)...)
	issues = append(issues, validateRuntime(c.Runtime)...)

	return issues
}

func validateSource(s SourceConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{"http": {}}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching extractor exists", s.Kind),
		})
	}

	if strings.TrimSpace(s.LoadDir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.load_dir",
			Message:  "source.load_dir must not be empty; page files are staged there",
		})
	}

	if !s.FromDir && s.Kind == "http" && strings.TrimSpace(s.BaseURL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.base_url",
			Message:  "source.base_url must not be empty unless source.from_dir is set",
		})
	}

	return issues
}

func validateStorage(s StorageConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}

	known := map[string]struct{}{"postgres": {}, "redshift": {}}
	if strings.TrimSpace(s.Flavor) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.flavor",
			Message:  "storage.flavor must not be empty",
		})
	} else if _, ok := known[s.Flavor]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.flavor",
			Message:  fmt.Sprintf("unknown storage flavor %q; known flavors are postgres, redshift", s.Flavor),
		})
	}

	if len(s.Roles) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.roles",
			Message:  "no roles configured; published tables will not be re-granted SELECT after publish",
		})
	}

	return issues
}

func validateTables(tables []TableConfig) []Issue {
	var issues []Issue

	if len(tables) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "tables",
			Message:  "tables must not be empty; the run has nothing to load",
		})
		return issues
	}

	seen := map[string]struct{}{}
	for i, t := range tables {
		path := fmt.Sprintf("tables[%d].table_name", i)
		if strings.TrimSpace(t.TableName) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  "table_name must not be empty",
			})
			continue
		}
		if _, dup := seen[t.TableName]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("duplicate table_name %q in catalog", t.TableName),
			})
		}
		seen[t.TableName] = struct{}{}
	}

	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.InsertBatchBytes < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.insert_batch_bytes",
			Message:  "insert_batch_bytes must not be negative",
		})
	}
	if r.InsertBatchBytes > 0 && r.InsertBatchBytes > DefaultInsertBatchBytes*4 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.insert_batch_bytes",
			Message:  fmt.Sprintf("insert_batch_bytes=%d is far above the default; large batches risk exceeding driver/server limits", r.InsertBatchBytes),
		})
	}

	return issues
}
