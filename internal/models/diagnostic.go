package models

import "fmt"

// Severity grades a build diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Stage names the pipeline step that produced a diagnostic.
type Stage string

const (
	StageLoad     Stage = "load"
	StageParse    Stage = "parse"
	StageValidate Stage = "validate"
	StageDerive   Stage = "derive"
	StageAssemble Stage = "assemble"
)

// Diagnostic is one entry of the build-time diagnostic list.
type Diagnostic struct {
	Severity   Severity `json:"severity"`
	Stage      Stage    `json:"stage"`
	Collection string   `json:"collection,omitempty"`
	Path       string   `json:"path,omitempty"`
	Field      string   `json:"field,omitempty"`
	Message    string   `json:"message"`
}

func (d Diagnostic) String() string {
	loc := d.Path
	if d.Field != "" {
		loc += "#" + d.Field
	}
	return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Stage, loc, d.Message)
}
