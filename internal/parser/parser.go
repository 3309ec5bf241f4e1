// Package parser turns free-form process output into typed field mappings.
//
// A parser is described by a FieldTable: an ordered list of named regular
// expressions, each with exactly one capture group. Parsing applies every
// pattern to the text and keeps the first match. Fields that do not match are
// left out of the result; there is no placeholder for missing values.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Field is one named extraction pattern.
type Field struct {
	Name    string
	Pattern string
}

// FieldTable is the ordered set of patterns that defines a parser.
type FieldTable []Field

// Fields maps a field name to its extracted value. Values are int64 for
// integer captures (thousands separators allowed), float64 for decimal
// captures and string otherwise.
type Fields map[string]any

// Parser extracts Fields from text.
type Parser interface {
	Parse(text string) Fields
}

type compiledField struct {
	name string
	re   *regexp.Regexp
}

// TableParser is the field-table driven Parser shared by every concrete
// benchmark and profiler parser.
type TableParser struct {
	fields []compiledField
}

var (
	integerValue = regexp.MustCompile(`^[\d,]+$`)
	decimalValue = regexp.MustCompile(`^[\d,]*\d\.\d+$`)
)

// New compiles table. Every pattern must contain exactly one capture group
// and names must be unique.
func New(table FieldTable) (*TableParser, error) {
	p := &TableParser{fields: make([]compiledField, 0, len(table))}
	seen := make(map[string]bool, len(table))

	for _, f := range table {
		if f.Name == "" {
			return nil, fmt.Errorf("field with pattern %q has no name", f.Pattern)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("field %s declared twice", f.Name)
		}
		seen[f.Name] = true

		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if re.NumSubexp() != 1 {
			return nil, fmt.Errorf("field %s: pattern must have exactly one capture group, has %d", f.Name, re.NumSubexp())
		}
		p.fields = append(p.fields, compiledField{name: f.Name, re: re})
	}

	return p, nil
}

// MustNew is New for package-level tables known to be valid.
func MustNew(table FieldTable) *TableParser {
	p, err := New(table)
	if err != nil {
		panic(err)
	}
	return p
}

// Names returns the field names in table order.
func (p *TableParser) Names() []string {
	names := make([]string, len(p.fields))
	for i, f := range p.fields {
		names[i] = f.name
	}
	return names
}

// Parse applies every field pattern to text. Only the first match of each
// pattern is kept.
func (p *TableParser) Parse(text string) Fields {
	out := make(Fields)
	for _, f := range p.fields {
		m := f.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		out[f.name] = Coerce(m[1])
	}
	return out
}

// Coerce converts a captured string into int64 or float64 when it is purely
// numeric. Commas are treated as thousands separators and stripped. Values
// that do not fit the numeric types are returned unchanged.
func Coerce(raw string) any {
	value := strings.TrimSpace(raw)
	switch {
	case integerValue.MatchString(value) && strings.ContainsAny(value, "0123456789"):
		n, err := strconv.ParseInt(strings.ReplaceAll(value, ",", ""), 10, 64)
		if err != nil {
			return raw
		}
		return n
	case decimalValue.MatchString(value):
		f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
		if err != nil || math.IsInf(f, 0) {
			return raw
		}
		return f
	default:
		return raw
	}
}
