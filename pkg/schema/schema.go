// Package schema describes which tables are versioned and how their fields
// are presented when two versions are compared.
package schema

import (
	"regexp"
	"slices"
	"strings"
)

// DateKind selects the display format used for a date-like field.
type DateKind string

const (
	// DateKindNone marks a field without date semantics.
	DateKindNone DateKind = ""

	// DateKindDate formats the value with the date layout.
	DateKindDate DateKind = "date"

	// DateKindTime formats the value with the time layout.
	DateKindTime DateKind = "time"

	// DateKindDatim formats the value with the date and time layout.
	DateKindDatim DateKind = "datim"
)

// InputTypeFileTree marks fields that reference files by binary UUID.
const InputTypeFileTree = "fileTree"

// Registry resolves table definitions and generic field labels.
type Registry interface {
	// Table returns the definition of a table, or false if the table is unknown.
	Table(name string) (*Table, bool)

	// Label returns a generic label for a field key that has no label of its own.
	Label(key string) (string, bool)
}

// Field describes how a single column is displayed and stored.
type Field struct {
	Label        string   `yaml:"label"`
	InputType    string   `yaml:"input_type"`
	Hidden       bool     `yaml:"hidden"`
	Encrypted    bool     `yaml:"encrypted"`
	Multiple     bool     `yaml:"multiple"`
	Delimiter    string   `yaml:"delimiter"`
	DateKind     DateKind `yaml:"date_kind"`
	KeepEntities bool     `yaml:"keep_entities"`
	SQL          string   `yaml:"sql"`
}

// Table is the definition of a single table.
type Table struct {
	Name        string           `yaml:"-"`
	Versioning  bool             `yaml:"versioning"`
	Fields      map[string]Field `yaml:"fields"`
	OrderFields []string         `yaml:"order_fields"`
}

// Field returns the definition of a field. Unknown fields yield the zero Field.
func (t *Table) Field(name string) Field {
	if t == nil || t.Fields == nil {
		return Field{}
	}
	return t.Fields[name]
}

// IsOrderField reports whether name holds a sort order of file references.
func (t *Table) IsOrderField(name string) bool {
	return t != nil && slices.Contains(t.OrderFields, name)
}

// IsBinary reports whether the field stores binary UUIDs.
func (t *Table) IsBinary(name string) bool {
	return t.Field(name).InputType == InputTypeFileTree || t.IsOrderField(name)
}

// EmptyValue returns the value a field is reset to when it did not exist at
// the time a version was stored.
func (t *Table) EmptyValue(name string) any {
	return EmptyValueForSQL(t.Field(name).SQL)
}

var sqlTypeRe = regexp.MustCompile(`^([A-Za-z]+)[ (].*$`)

var numericSQLTypes = []string{
	"int", "integer", "tinyint", "smallint", "mediumint", "bigint",
	"float", "double", "dec", "decimal", "numeric", "real",
}

// EmptyValueForSQL derives an empty value from a column definition such as
// "int(10) unsigned NOT NULL default '0'". Nullable columns are reset to nil,
// numeric columns to 0 and everything else to the empty string.
func EmptyValueForSQL(sql string) any {
	if sql == "" {
		return ""
	}
	if !strings.Contains(strings.ToUpper(sql), "NOT NULL") {
		return nil
	}
	typ := strings.ToLower(sqlTypeRe.ReplaceAllString(strings.TrimSpace(sql), "$1"))
	if slices.Contains(numericSQLTypes, typ) {
		return 0
	}
	return ""
}

// EmptyValueForColumn derives an empty value from a live column type as
// reported by information_schema, e.g. "integer" or "double precision".
// Nullable columns are reset to nil, numeric columns to 0 and everything else
// to the empty string.
func EmptyValueForColumn(dataType string, nullable bool) any {
	if nullable {
		return nil
	}
	typ, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(dataType)), " ")
	if slices.Contains(numericSQLTypes, typ) {
		return 0
	}
	return ""
}
