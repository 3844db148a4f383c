// Package stage implements the core two-pass JSON-to-relational pipeline:
// reading page files written by the extractor, inferring a column schema from
// observed value shapes, and producing the literal text of INSERT tuples for
// the loading table.
//
// The package has no database dependency of its own; internal/stager drives
// it and owns the connection, and internal/loader owns the batched INSERT
// buffer that pass 2 writes into.
package stage

import "fmt"

// ColumnType is one of the destination SQL column types a field can be
// mapped to by TypeChooser.
type ColumnType int

const (
	ColumnTypeID ColumnType = iota
	ColumnTypeBigint
	ColumnTypeNumeric
	ColumnTypeBoolean
	ColumnTypeTimestamptz
	ColumnTypeVarchar
)

// String returns the lower-case name used in logs and tests.
func (t ColumnType) String() string {
	switch t {
	case ColumnTypeID:
		return "id"
	case ColumnTypeBigint:
		return "bigint"
	case ColumnTypeNumeric:
		return "numeric"
	case ColumnTypeBoolean:
		return "boolean"
	case ColumnTypeTimestamptz:
		return "timestamptz"
	case ColumnTypeVarchar:
		return "varchar"
	default:
		return fmt.Sprintf("columntype(%d)", int(t))
	}
}

// SQL returns the base SQL type name used when rendering CREATE TABLE for
// this column type. It does not include NOT NULL or other clauses; callers
// combine this with internal/ddl.ColumnDef.
func (t ColumnType) SQL() string {
	switch t {
	case ColumnTypeID:
		return "VARCHAR(36)"
	case ColumnTypeBigint:
		return "BIGINT"
	case ColumnTypeNumeric:
		return "NUMERIC"
	case ColumnTypeBoolean:
		return "BOOLEAN"
	case ColumnTypeTimestamptz:
		return "TIMESTAMPTZ"
	case ColumnTypeVarchar:
		return "VARCHAR(65535)"
	default:
		return "VARCHAR(65535)"
	}
}

// Counts tallies the JSON value shapes observed for a single top-level field
// across all records of a table, during pass 1. Each record contributes at
// most one tally per category, except that a string value may count toward
// both UUID and DateTime in addition to String.
type Counts struct {
	Null     int
	Boolean  int
	Number   int
	Integer  int
	Floating int
	String   int
	UUID     int
	DateTime int
}

// ColumnSpec describes one derived column of a staged table: its normalized
// SQL identifier, the JSON field it came from, and the type TypeChooser
// selected for it.
type ColumnSpec struct {
	ColumnName      string
	SourceFieldName string
	ColumnType      ColumnType
}

// TableSpec is the load unit passed between the stager and stage packages. It enters the stager with no Columns; pass 1 populates them.
type TableSpec struct {
	// TableName is the destination table's identifier (also the logical
	// name used for page file naming: "<TableName>_<n>.json").
	TableName string

	// ModuleName is an origin tag used only for the table's documentation
	// comment. A value of "mod-agreements" suppresses the comment, mirroring
	// a long-standing quirk in the source system this schema was modeled on.
	ModuleName string

	// SourcePath is the API path the table was extracted from, used for the
	// documentation comment.
	SourcePath string

	// Skip marks a table with no extracted data. Nothing in the module sets
	// it, and StageTable does not consult it.
	Skip bool

	// Columns is populated by pass 1 and consumed by pass 2, ordered
	// lexicographically by source field name (see FinalizeColumns). Any
	// column named "id" is skipped by RenderTuple, which writes the record's
	// id first itself.
	Columns []ColumnSpec
}
