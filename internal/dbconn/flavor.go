package dbconn

import (
	"fmt"
	"strings"
)

// Flavor abstracts the handful of SQL dialect differences between
// PostgreSQL and a Redshift-like warehouse: the JSON column type, an
// optional distribution/sort key clause appended to CREATE TABLE, and
// whether secondary (non-primary-key) indexes are worth creating at all.
// Both flavors speak the Postgres wire protocol, so both are served by the
// same pgx/v5-backed Pool/Tx below; Flavor only varies the SQL text.
type Flavor interface {
	Name() string
	JSONType() string
	TableClause(idColumn string) string
	SupportsSecondaryIndexes() bool
	EncodeStringLiteral(s string) string
	QuoteIdent(name string) string
}

// NewFlavor resolves a flavor name (as configured in
// internal/config.StorageConfig.Flavor) to a Flavor implementation.
func NewFlavor(name string) (Flavor, error) {
	switch name {
	case "postgres":
		return postgresFlavor{}, nil
	case "redshift":
		return redshiftFlavor{}, nil
	default:
		return nil, fmt.Errorf("dbconn: unknown storage flavor %q", name)
	}
}

type postgresFlavor struct{}

func (postgresFlavor) Name() string                        { return "postgres" }
func (postgresFlavor) JSONType() string                     { return "JSONB" }
func (postgresFlavor) TableClause(idColumn string) string   { return "" }
func (postgresFlavor) SupportsSecondaryIndexes() bool        { return true }
func (postgresFlavor) EncodeStringLiteral(s string) string   { return encodeStringLiteral(s) }
func (postgresFlavor) QuoteIdent(name string) string         { return quoteIdent(name) }

// redshiftFlavor targets a Redshift-like MPP warehouse. Redshift has no true
// JSON type, so "data" is stored as text; it also has no use for secondary
// indexes (it is a columnar store), but does benefit from an explicit
// distribution and sort key, which we pin to the id column since every
// published table's natural access pattern is by id.
type redshiftFlavor struct{}

func (redshiftFlavor) Name() string                      { return "redshift" }
func (redshiftFlavor) JSONType() string                   { return "VARCHAR(65535)" }
func (redshiftFlavor) TableClause(idColumn string) string {
	q := quoteIdent(idColumn)
	return fmt.Sprintf(" DISTKEY(%s) SORTKEY(%s)", q, q)
}
func (redshiftFlavor) SupportsSecondaryIndexes() bool      { return false }
func (redshiftFlavor) EncodeStringLiteral(s string) string { return encodeStringLiteral(s) }
func (redshiftFlavor) QuoteIdent(name string) string       { return quoteIdent(name) }

// encodeStringLiteral renders s as a standard SQL string literal: wrapped in
// single quotes, with embedded single quotes doubled. Both flavors accept
// this form since Redshift and modern PostgreSQL both default to
// standard_conforming_strings behavior.
func encodeStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdent renders name as a double-quoted SQL identifier, doubling any
// embedded double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName joins a schema and an unqualified table/column name into a
// quoted "schema"."name" form.
func QualifiedName(schema, name string) string {
	return quoteIdent(schema) + "." + quoteIdent(name)
}
