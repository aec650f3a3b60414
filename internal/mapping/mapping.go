// Package mapping turns source rows into target payloads using a declarative
// field table. Each field names a target field, where its value comes from
// (a source column or a text/template over the row), an optional transform
// and an optional default used when the source value is NULL.
package mapping

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/bianoble/sfsync/internal/source"
)

// Field is one entry of a mapping table.
type Field struct {
	Target    string `yaml:"target" toml:"target"`
	Source    string `yaml:"source,omitempty" toml:"source"`
	Template  string `yaml:"template,omitempty" toml:"template"`
	Transform string `yaml:"transform,omitempty" toml:"transform"`
	Default   string `yaml:"default,omitempty" toml:"default"`
}

// FieldError reports which target field failed to map.
type FieldError struct {
	Target string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Target, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Table is a compiled mapping table. It is safe for concurrent use.
type Table struct {
	fields []compiledField
}

type compiledField struct {
	Field
	tmpl *template.Template
	fn   TransformFunc
}

// Compile validates fields and parses their templates.
func Compile(fields []Field) (*Table, error) {
	t := &Table{fields: make([]compiledField, 0, len(fields))}
	seen := make(map[string]bool, len(fields))

	for i, f := range fields {
		if f.Target == "" {
			return nil, fmt.Errorf("field[%d]: 'target' is required", i)
		}
		if seen[f.Target] {
			return nil, fmt.Errorf("field %s: duplicate target", f.Target)
		}
		seen[f.Target] = true

		if (f.Source == "") == (f.Template == "") {
			return nil, fmt.Errorf("field %s: exactly one of 'source' or 'template' is required", f.Target)
		}

		fn, err := Lookup(f.Transform)
		if err != nil {
			return nil, &FieldError{Target: f.Target, Err: err}
		}

		cf := compiledField{Field: f, fn: fn}
		if f.Template != "" {
			tmpl, err := template.New(f.Target).Option("missingkey=error").Parse(f.Template)
			if err != nil {
				return nil, &FieldError{Target: f.Target, Err: fmt.Errorf("parsing template: %w", err)}
			}
			cf.tmpl = tmpl
		}
		t.fields = append(t.fields, cf)
	}

	return t, nil
}

// Targets returns the target field names in table order.
func (t *Table) Targets() []string {
	out := make([]string, len(t.fields))
	for i, f := range t.fields {
		out[i] = f.Target
	}
	return out
}

// Apply maps one row into a target payload.
func (t *Table) Apply(row source.Row) (map[string]any, error) {
	payload := make(map[string]any, len(t.fields))
	var vars map[string]string

	for _, f := range t.fields {
		var raw any
		if f.tmpl != nil {
			if vars == nil {
				vars = templateVars(row)
			}
			var buf bytes.Buffer
			if err := f.tmpl.Execute(&buf, vars); err != nil {
				return nil, &FieldError{Target: f.Target, Err: fmt.Errorf("executing template: %w", err)}
			}
			raw = buf.String()
		} else {
			var ok bool
			raw, ok = row.Value(f.Source)
			if !ok {
				return nil, &FieldError{Target: f.Target, Err: fmt.Errorf("source column %q not in row", f.Source)}
			}
		}

		if raw == nil && f.Default != "" {
			raw = f.Default
		}

		v, err := f.fn(raw)
		if err != nil {
			return nil, &FieldError{Target: f.Target, Err: err}
		}
		payload[f.Target] = v
	}

	return payload, nil
}

func templateVars(row source.Row) map[string]string {
	cols := row.Columns()
	vars := make(map[string]string, len(cols))
	for _, c := range cols {
		s, _ := row.String(c)
		vars[c] = s
	}
	return vars
}
