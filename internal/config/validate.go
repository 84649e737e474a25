package config

import (
	"fmt"
	"strings"

	"github.com/roach88/mergepoint/internal/queryir"
)

// Validation error codes (E200-E299)
const (
	ErrNoMergePoints     = "E201" // config declares no merge points
	ErrMergePointName    = "E202" // merge point name missing or duplicated
	ErrNoSources         = "E203" // merge point declares no sources
	ErrSourceName        = "E204" // source name duplicated within a merge point
	ErrInvalidIdentifier = "E205" // table or column name is not a plain SQL identifier
	ErrEmptyKey          = "E206" // source key schema is empty
	ErrDuplicateColumn   = "E207" // column listed twice, or as both key and attribute
)

// ValidationError is one configuration problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// InvalidError carries every validation problem found in one file.
type InvalidError struct {
	Path   string
	Errors []ValidationError
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	path := e.Path
	if path == "" {
		path = "(inline)"
	}
	return fmt.Sprintf("invalid config %s:\n  %s", path, strings.Join(msgs, "\n  "))
}

// Validate checks a configuration and returns all errors found (does not
// fail-fast).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if cfg == nil || len(cfg.MergePoints) == 0 {
		add("merge_points", ErrNoMergePoints, "at least one merge point is required")
		return errs
	}

	points := make(map[string]bool, len(cfg.MergePoints))
	for i, mp := range cfg.MergePoints {
		field := fmt.Sprintf("merge_points[%d]", i)
		switch {
		case mp.Name == "":
			add(field+".name", ErrMergePointName, "name is required")
		case points[mp.Name]:
			add(field+".name", ErrMergePointName, "duplicate merge point %q", mp.Name)
		}
		points[mp.Name] = true

		if len(mp.Sources) == 0 {
			add(field+".sources", ErrNoSources, "at least one source is required")
			continue
		}

		names := make(map[string]bool, len(mp.Sources))
		for j, src := range mp.Sources {
			errs = append(errs, validateSource(fmt.Sprintf("%s.sources[%d]", field, j), src, names)...)
		}
	}
	return errs
}

func validateSource(field string, src Source, names map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(f, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: f, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if name := src.OriginName(); name != "" {
		if names[name] {
			add(field+".name", ErrSourceName, "duplicate source %q", name)
		}
		names[name] = true
	}

	if !queryir.ValidIdentifier(src.Table) {
		add(field+".table", ErrInvalidIdentifier, "invalid table name %q", src.Table)
	}
	if len(src.Key) == 0 {
		add(field+".key", ErrEmptyKey, "key must list at least one column")
	}

	seen := make(map[string]string, len(src.Key)+len(src.Attributes))
	check := func(list string, cols []string) {
		for k, col := range cols {
			f := fmt.Sprintf("%s.%s[%d]", field, list, k)
			if !queryir.ValidIdentifier(col) {
				add(f, ErrInvalidIdentifier, "invalid column name %q", col)
				continue
			}
			if prev, dup := seen[col]; dup {
				add(f, ErrDuplicateColumn, "column %q already listed in %s", col, prev)
				continue
			}
			seen[col] = list
		}
	}
	check("key", src.Key)
	check("attributes", src.Attributes)
	return errs
}
