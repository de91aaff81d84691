// Package schema validates loaded frontmatter against a collection schema
// and computes the derived record fields.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// FieldType names the shape a schema field accepts.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeText     FieldType = "text"
	TypeBool     FieldType = "bool"
	TypeInt      FieldType = "int"
	TypeNumber   FieldType = "number"
	TypeISODate  FieldType = "isodate"
	TypeStrings  FieldType = "strings"
	TypeEnum     FieldType = "enum"
	TypeHeadings FieldType = "headings"
)

// FieldTypes lists every supported field type.
var FieldTypes = []FieldType{
	TypeString, TypeText, TypeBool, TypeInt, TypeNumber,
	TypeISODate, TypeStrings, TypeEnum, TypeHeadings,
}

// Field describes one frontmatter field of a collection.
type Field struct {
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`
	Default  any       `yaml:"default"`
	Values   []string  `yaml:"values"`
}

// Validate checks the field definition itself.
func (f Field) Validate() error {
	types := make([]any, len(FieldTypes))
	for i, t := range FieldTypes {
		types[i] = t
	}
	return validation.ValidateStruct(&f,
		validation.Field(&f.Type, validation.Required, validation.In(types...)),
		validation.Field(&f.Values, validation.When(f.Type == TypeEnum, validation.Required)),
	)
}

// Schema maps field names to their definitions.
type Schema map[string]Field

// Names returns the field names in lexical order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Policy decides what happens to a record that fails validation.
type Policy string

const (
	// PolicyDrop excludes any record with a field error.
	PolicyDrop Policy = "drop"
	// PolicyWarn resets broken optional fields to their default and only
	// drops records whose required fields are missing or invalid.
	PolicyWarn Policy = "warn"
	// PolicyFail aborts the build on the first invalid record.
	PolicyFail Policy = "fail"
)

// FieldError is the failure of one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Missing bool   `json:"missing,omitempty"`
}

// ValidationError lists every field failure of one source file.
type ValidationError struct {
	File   string       `json:"file"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s", e.File, strings.Join(parts, "; "))
}

// Outcome is the result of checking one document against a schema.
type Outcome struct {
	// Fields holds the coerced values of every schema field that has a
	// value or a default. Keys outside the schema are dropped.
	Fields map[string]any
	// Err is set when at least one field failed.
	Err *ValidationError
	// Drop reports whether the record must be excluded.
	Drop bool
	// Reset lists optional fields that were replaced by their default.
	Reset []FieldError
}

// Check validates raw against s and applies policy to the failures.
func (s Schema) Check(file string, raw map[string]any, policy Policy) Outcome {
	if raw == nil {
		raw = map[string]any{}
	}
	failures := s.validate(raw)

	out := Outcome{Fields: make(map[string]any, len(s))}
	if len(failures) > 0 {
		out.Err = &ValidationError{File: file, Fields: failures}
	}
	failed := make(map[string]FieldError, len(failures))
	for _, f := range failures {
		failed[f.Field] = f
	}

	for _, name := range s.Names() {
		field := s[name]
		if fe, bad := failed[name]; bad {
			if policy != PolicyWarn || field.Required {
				out.Drop = true
				continue
			}
			out.Reset = append(out.Reset, fe)
			if def, ok := field.defaultValue(); ok {
				out.Fields[name] = def
			}
			continue
		}
		v, present := raw[name]
		if !present || v == nil {
			if def, ok := field.defaultValue(); ok {
				out.Fields[name] = def
			}
			continue
		}
		// validate already proved v coerces.
		cv, _ := field.coerce(v)
		out.Fields[name] = cv
	}
	return out
}

func (s Schema) validate(raw map[string]any) []FieldError {
	keys := make([]*validation.KeyRules, 0, len(s))
	for _, name := range s.Names() {
		keys = append(keys, s[name].keyRules(name))
	}
	err := validation.Map(keys...).AllowExtraKeys().Validate(raw)
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(errs))
	for name, ferr := range errs {
		out = append(out, FieldError{Field: name, Message: ferr.Error(), Missing: isMissing(ferr)})
	}
	slices.SortFunc(out, func(a, b FieldError) int { return strings.Compare(a.Field, b.Field) })
	return out
}

func (f Field) keyRules(name string) *validation.KeyRules {
	rules := make([]validation.Rule, 0, 3)
	if f.Required {
		switch f.Type {
		case TypeBool, TypeInt, TypeNumber:
			// false and 0 are legitimate values.
			rules = append(rules, validation.NotNil)
		default:
			rules = append(rules, validation.Required)
		}
	}
	rules = append(rules, validation.By(func(v any) error {
		if v == nil {
			return nil
		}
		_, err := f.coerce(v)
		return err
	}))
	k := validation.Key(name, rules...)
	if !f.Required {
		k = k.Optional()
	}
	return k
}

func isMissing(err error) bool {
	var verr validation.Error
	if !errors.As(err, &verr) {
		return false
	}
	switch verr.Code() {
	case validation.ErrKeyMissing.Code(), validation.ErrRequired.Code(), validation.ErrNotNilRequired.Code():
		return true
	}
	return false
}
