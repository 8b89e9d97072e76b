package models

// ColumnType is the resolved logical type of a column in the output schema.
type ColumnType uint8

const (
	// TypeUnknown means no non-empty cell has been observed yet.
	TypeUnknown ColumnType = iota
	// TypeBool is a boolean column.
	TypeBool
	// TypeInt is an int64 column.
	TypeInt
	// TypeFloat is a float64 column.
	TypeFloat
	// TypeString is a UTF-8 text column.
	TypeString
	// TypeTimestamp is a timestamp column. Timestamps never unify with
	// numeric types; mixing widens to string instead.
	TypeTimestamp
)

// String returns the lowercase name of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int64"
	case TypeFloat:
		return "float64"
	case TypeString:
		return "string"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// ParseColumnType maps a user-supplied type name to a ColumnType. It accepts
// the names String() produces plus common aliases.
func ParseColumnType(s string) (ColumnType, bool) {
	switch s {
	case "bool", "boolean":
		return TypeBool, true
	case "int", "int64", "integer":
		return TypeInt, true
	case "float", "float64", "double":
		return TypeFloat, true
	case "string", "text", "utf8":
		return TypeString, true
	case "timestamp", "datetime":
		return TypeTimestamp, true
	default:
		return TypeUnknown, false
	}
}

// Column describes one output column: its name, resolved type, and
// nullability.
type Column struct {
	Name     string     `json:"name" yaml:"name"`
	Type     ColumnType `json:"-" yaml:"-"`
	TypeName string     `json:"type" yaml:"type"`
	Nullable bool       `json:"nullable" yaml:"nullable"`
}

// Schema maps column indexes to resolved column types. Once fixed, every
// subsequent cell in a column must coerce to the column's type.
type Schema struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// NewSchema creates a schema with the given name and columns, filling in the
// serialized type names.
func NewSchema(name string, cols []Column) *Schema {
	for i := range cols {
		cols[i].TypeName = cols[i].Type.String()
	}
	return &Schema{Name: name, Columns: cols}
}

// Width returns the number of columns.
func (s *Schema) Width() int { return len(s.Columns) }
