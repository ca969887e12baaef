package config

// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of
// issues (errors and warnings) that callers can surface in a CLI or tests.

import (
	"fmt"
	"strings"

	"courtetl/internal/codec"
	"courtetl/internal/logger"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// config (e.g. "steps[1].source").
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

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownStorage = map[string]struct{}{
	"postgres": {},
	"sqlite":   {},
	"mysql":    {},
	"mssql":    {},
}

var knownMetrics = map[string]struct{}{
	"":            {},
	"none":        {},
	"pushgateway": {},
	"datadog":     {},
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	if _, err := logger.ParseLevel(p.LogLevel); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log_level",
			Message:  err.Error(),
		})
	}
	if _, ok := knownMetrics[p.Metrics.Backend]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; use none, pushgateway or datadog", p.Metrics.Backend),
		})
	}
	if len(p.Steps) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "steps",
			Message:  "at least one step is required",
		})
	}

	names := make(map[string]int, len(p.Steps))
	outputs := make(map[string]int, len(p.Steps))
	for i, s := range p.Steps {
		issues = append(issues, validateStep(i, s, p.References)...)
		if s.Name != "" {
			if prev, dup := names[s.Name]; dup {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("steps[%d].name", i),
					Message:  fmt.Sprintf("duplicate step name %q (also steps[%d])", s.Name, prev),
				})
			}
			names[s.Name] = i
		}
		if s.Output != "" {
			outputs[s.Output] = i
		}
	}
	issues = append(issues, validateReferenceOrder(p, outputs)...)

	if UsesS3(p) && p.S3.Region == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "s3.region",
			Message:  "s3 URIs are used but s3.region is empty; us-east-1 is assumed",
		})
	}
	return issues
}

type ref struct{ name, uri string }

// requiredRefs lists the references each step kind joins against.
func requiredRefs(kind string, r References) []ref {
	people := ref{"people", r.People}
	affiliations := ref{"political_affiliations", r.PoliticalAffiliations}
	switch kind {
	case KindClusterFilter:
		return []ref{{"dockets", r.Dockets}}
	case KindOpinionFilter:
		return []ref{people, affiliations}
	case KindOpinionJoin:
		return []ref{{"clusters", r.Clusters}, people, affiliations}
	}
	return nil
}

func validateStep(i int, s Step, refs References) []Issue {
	var issues []Issue
	path := func(field string) string { return fmt.Sprintf("steps[%d].%s", i, field) }
	errorf := func(field, format string, a ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path(field), Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(s.Name) == "" {
		errorf("name", "step name must not be empty")
	}
	switch s.Kind {
	case KindDocketFilter, KindClusterFilter, KindOpinionFilter, KindOpinionJoin:
	case "":
		errorf("kind", "step kind must not be empty")
	default:
		errorf("kind", "unknown step kind %q", s.Kind)
	}
	if strings.TrimSpace(s.Source) == "" {
		errorf("source", "source is required")
	}
	if strings.TrimSpace(s.Output) == "" {
		errorf("output", "output is required")
	}
	if s.Source != "" && s.Source == s.Output {
		errorf("output", "output must differ from source")
	}
	if s.ChunkSize < 0 {
		errorf("chunk_size", "chunk_size must be >= 0, got %d", s.ChunkSize)
	}
	if _, err := codec.Parse(s.Compression); err != nil {
		errorf("compression", "%v", err)
	}

	for _, r := range requiredRefs(s.Kind, refs) {
		if strings.TrimSpace(r.uri) == "" {
			errorf("kind", "%s needs references.%s", s.Kind, r.name)
		}
	}

	switch s.Kind {
	case KindDocketFilter:
		if _, ok := s.Options["courts"]; ok && len(s.Options.StringSlice("courts")) == 0 {
			errorf("options.courts", "courts must be a non-empty list of court ids")
		}
	case KindOpinionJoin:
		if _, ok := s.Options["keep_columns"]; ok && len(s.Options.StringSlice("keep_columns")) == 0 {
			errorf("options.keep_columns", "keep_columns must be a non-empty list of column names")
		}
	}

	if s.Storage != nil {
		issues = append(issues, validateStorage(path("storage"), *s.Storage)...)
	}
	return issues
}

func validateStorage(prefix string, s Storage) []Issue {
	var issues []Issue
	if _, ok := knownStorage[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     prefix + ".kind",
			Message:  fmt.Sprintf("unknown storage kind %q; use postgres, sqlite, mysql or mssql", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: prefix + ".db.dsn", Message: "dsn is required"})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: prefix + ".db.table", Message: "table is required"})
	}
	if s.DB.BatchSize < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: prefix + ".db.batch_size", Message: "batch_size must be >= 0"})
	}
	return issues
}

// validateReferenceOrder warns when a step reads a reference table that a
// later step produces; running the steps in file order would read a stale or
// missing file.
func validateReferenceOrder(p Pipeline, outputs map[string]int) []Issue {
	var issues []Issue
	for i, s := range p.Steps {
		for _, r := range requiredRefs(s.Kind, p.References) {
			if j, ok := outputs[r.uri]; ok && j >= i {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     fmt.Sprintf("references.%s", r.name),
					Message:  fmt.Sprintf("steps[%d] (%s) reads %s, which steps[%d] writes later", i, s.Name, r.uri, j),
				})
			}
		}
	}
	return issues
}

// UsesS3 reports whether any reference, source or output is an s3:// URI.
func UsesS3(p Pipeline) bool {
	uris := []string{p.References.People, p.References.PoliticalAffiliations, p.References.Dockets, p.References.Clusters}
	for _, s := range p.Steps {
		uris = append(uris, s.Source, s.Output)
	}
	for _, u := range uris {
		if strings.HasPrefix(strings.ToLower(u), "s3://") {
			return true
		}
	}
	return false
}
