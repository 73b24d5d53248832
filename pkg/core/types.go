package core

import (
	"fmt"
	"strings"
)

// DataType is the declared type of a dataset field.
type DataType string

// Supported data types.
const (
	TypeInteger DataType = "integer"
	TypeString  DataType = "string"
	TypeDouble  DataType = "double"
	TypeBoolean DataType = "boolean"
)

// ParseDataType parses a case-insensitive type name.
// "int", "bigint", "varchar", "text", "float" and "bool" are accepted as aliases.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int", "bigint":
		return TypeInteger, nil
	case "string", "varchar", "text":
		return TypeString, nil
	case "double", "float", "real":
		return TypeDouble, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	default:
		return "", &ConfigurationError{Reason: fmt.Sprintf("unknown data type %q", s)}
	}
}

// Valid reports whether t is one of the supported types.
func (t DataType) Valid() bool {
	switch t {
	case TypeInteger, TypeString, TypeDouble, TypeBoolean:
		return true
	}
	return false
}

// Field is a named, typed column.
type Field struct {
	Name string
	Type DataType
}

// FieldNames returns the names of fields in order.
func FieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// DimensionSpec declares one dimension table: its name and the ordered
// natural-key fields projected from the source dataset.
type DimensionSpec struct {
	Name   string
	Fields []Field
}

// Validate checks that the dimension has a name and a non-empty list of uniquely named fields.
func (s DimensionSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ConfigurationError{Reason: "dimension spec has no name"}
	}
	if len(s.Fields) == 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("dimension %s declares no fields", s.Name)}
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return &ConfigurationError{Reason: fmt.Sprintf("dimension %s has a field without a name", s.Name)}
		}
		if !f.Type.Valid() {
			return &ConfigurationError{Reason: fmt.Sprintf("dimension %s field %s has unknown type %q", s.Name, f.Name, f.Type)}
		}
		if _, dup := seen[f.Name]; dup {
			return &ConfigurationError{Reason: fmt.Sprintf("dimension %s declares field %s twice", s.Name, f.Name)}
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy with its own Fields slice.
func (s DimensionSpec) Clone() DimensionSpec {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	return DimensionSpec{Name: s.Name, Fields: fields}
}

// FactSpec declares the fact table: integer measures followed by one
// foreign key per referenced dimension.
type FactSpec struct {
	Table      string
	Measures   []Field
	Dimensions []string
}

// Naming holds the deterministic naming rules for generated objects.
type Naming struct {
	DimensionPrefix string
	KeyPrefix       string
}

// Default naming prefixes.
const (
	DefaultDimensionPrefix = "DIM_"
	DefaultKeyPrefix       = "ID_"
)

// DefaultNaming returns the naming rules used when none are configured.
func DefaultNaming() Naming {
	return Naming{DimensionPrefix: DefaultDimensionPrefix, KeyPrefix: DefaultKeyPrefix}
}

// DimensionName returns the generated dimension name for a flag column.
func (n Naming) DimensionName(column string) string {
	return n.DimensionPrefix + strings.ToUpper(column)
}

// KeyColumn returns the surrogate key column of a table. The fact table's
// foreign key to a dimension carries the same name as the dimension's key.
func (n Naming) KeyColumn(table string) string {
	return n.KeyPrefix + table
}

// ForeignKeyName returns the constraint name for a fact-to-dimension reference.
func (n Naming) ForeignKeyName(fact, dimension string) string {
	return fact + "_" + dimension + "_fk"
}

// PrimaryKeyName returns the constraint name for a table's surrogate key.
func (n Naming) PrimaryKeyName(table string) string {
	return table + "_pk"
}

// KeyStrategy selects how dimension surrogate keys are generated.
type KeyStrategy string

// Key strategies.
const (
	// KeySequence numbers distinct rows with a per-table counter. Keys are
	// unique per run but not stable across reruns.
	KeySequence KeyStrategy = "sequence"
	// KeyHash derives keys from a hash of the natural key, so reruns over
	// the same data reproduce the same keys.
	KeyHash KeyStrategy = "hash"
)

// ParseKeyStrategy parses a key strategy name. Empty means KeySequence.
func ParseKeyStrategy(s string) (KeyStrategy, error) {
	switch KeyStrategy(strings.ToLower(s)) {
	case "", KeySequence:
		return KeySequence, nil
	case KeyHash:
		return KeyHash, nil
	default:
		return "", &ConfigurationError{Reason: fmt.Sprintf("unknown key strategy %q (use sequence or hash)", s)}
	}
}

// WriteMode selects how a bulk write treats existing table contents.
type WriteMode string

// Write modes.
const (
	WriteOverwrite WriteMode = "overwrite"
	WriteAppend    WriteMode = "append"
)

// TableDef describes the destination of a bulk write.
type TableDef struct {
	Name    string
	Columns []Field
	// NotNull lists columns declared NOT NULL on create.
	NotNull []string
	// Identity names a column whose value is assigned by the store on append.
	// It is never part of Columns.
	Identity string
}

// IsNotNull reports whether column is declared NOT NULL.
func (d TableDef) IsNotNull(column string) bool {
	for _, c := range d.NotNull {
		if c == column {
			return true
		}
	}
	return false
}
