package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"querykit/pkg/dialect"
	_ "querykit/pkg/dialect/all"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "metrics.url", "load.comma").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
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

// Validate performs static checks over cfg. It does not mutate cfg or touch
// the network.
func Validate(cfg Config) []Issue {
	var issues []Issue
	issues = append(issues, validateConnection(cfg.Dialect, cfg.DSN)...)
	issues = append(issues, validateLog(cfg.Log)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	issues = append(issues, validateLoad(cfg.Load)...)
	return issues
}

// dsnSchemes maps URL schemes to the dialect they imply.
var dsnSchemes = map[string]dialect.Name{
	"postgres":   dialect.PostgreSQL,
	"postgresql": dialect.PostgreSQL,
	"sqlserver":  dialect.SQLServer,
	"oracle":     dialect.Oracle,
	"file":       dialect.SQLite,
}

func validateConnection(name, dsn string) []Issue {
	var issues []Issue

	if strings.TrimSpace(name) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "dialect",
			Message:  fmt.Sprintf("dialect must not be empty; known dialects: %s", strings.Join(dialectNames(), ", ")),
		})
	}
	d, err := dialect.Get(name)
	if err != nil {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "dialect",
			Message:  fmt.Sprintf("unknown dialect %q; known dialects: %s", name, strings.Join(dialectNames(), ", ")),
		})
	}

	if strings.TrimSpace(dsn) == "" {
		return append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "dsn",
			Message:  "dsn is empty; only rendering commands will work",
		})
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if want, ok := dsnSchemes[strings.ToLower(u.Scheme)]; ok && want != d.Name {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "dsn",
				Message:  fmt.Sprintf("dsn scheme %q suggests dialect %s but dialect is %s", u.Scheme, want, d.Name),
			})
		}
	}
	return issues
}

func dialectNames() []string {
	var out []string
	for _, n := range dialect.List() {
		out = append(out, string(n))
	}
	return out
}

func validateLog(l Log) []Issue {
	var issues []Issue
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log.level",
			Message:  fmt.Sprintf("invalid level %q (want debug, info, warn or error)", l.Level),
		})
	}
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "", "text", "json":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log.format",
			Message:  fmt.Sprintf("invalid format %q (want text or json)", l.Format),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(m.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.url",
				Message:  "pushgateway url is empty; http://localhost:9091 will be used",
			})
		} else if u, err := url.Parse(m.URL); err != nil || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.url",
				Message:  fmt.Sprintf("invalid pushgateway url %q", m.URL),
			})
		}
		if strings.TrimSpace(m.Job) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.job",
				Message:  "job is empty; metrics will be pushed as job \"querykit\"",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.URL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.url",
				Message:  "datadog backend requires the DogStatsD address in url",
			})
		}
		for i, tag := range m.Tags {
			if !strings.Contains(tag, ":") {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     fmt.Sprintf("metrics.tags[%d]", i),
					Message:  fmt.Sprintf("tag %q is not in key:value form", tag),
				})
			}
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}
	return issues
}

func validateLoad(l Load) []Issue {
	var issues []Issue
	if l.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "load.batch_size",
			Message:  fmt.Sprintf("batch_size must be > 0, got %d", l.BatchSize),
		})
	}
	if l.Comma != "" {
		r, size := utf8.DecodeRuneInString(l.Comma)
		switch {
		case size != len(l.Comma):
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "load.comma",
				Message:  fmt.Sprintf("comma must be a single character, got %q", l.Comma),
			})
		case r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "load.comma",
				Message:  fmt.Sprintf("comma %q cannot be used as a CSV delimiter", l.Comma),
			})
		}
	}
	return issues
}
