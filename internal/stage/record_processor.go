package stage

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"ldp/internal/ident"
)

// LiteralEncoder renders a Go string as a database-specific SQL string
// literal, including the surrounding quotes. Implementations live in
// internal/dbconn, one per supported flavor; stage depends only on this
// narrow interface to stay free of any database driver import.
type LiteralEncoder interface {
	EncodeStringLiteral(s string) string
}

// maxLiteralLength mirrors the destination column width: string-column
// literals at or beyond this length, and "data" literals beyond it, are
// replaced with NULL.
const maxLiteralLength = 65535

// maxNumericMagnitude is the overflow threshold for ColumnTypeNumeric
// values; values whose magnitude exceeds it are replaced with 0 and logged
// rather than failing the table.
const maxNumericMagnitude = 1e10

// RecordProcessor implements the two-pass walk over a table's records: pass
// 1 collects per-field Counts, pass 2 renders one INSERT tuple per record.
type RecordProcessor struct {
	TableName string
}

// ObservePass1 updates counts with the top-level fields of rec. Nested
// arrays/objects are not examined; only top-level fields ever become
// columns, matching the source schema inferrer's single-level statistics.
func ObservePass1(rec map[string]any, counts map[string]*Counts) {
	for field, v := range rec {
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		c := counts[field]
		if c == nil {
			c = &Counts{}
			counts[field] = c
		}
		switch vv := v.(type) {
		case nil:
			c.Null++
		case bool:
			c.Boolean++
		case json.Number:
			c.Number++
			if isInteger64(vv) {
				c.Integer++
			} else {
				c.Floating++
			}
		case string:
			c.String++
			if looksLikeUUID(vv) {
				c.UUID++
			}
			if looksLikeDateTime(vv) {
				c.DateTime++
			}
		}
	}
}

// FinalizeColumns converts accumulated per-field Counts into the ordered
// ColumnSpec list for a table. Fields are visited in lexicographic order
// (mirroring an ordered-map walk) so that column order is deterministic
// across runs; fields TypeChooser reports as drop-only (rule 7, all-null)
// are omitted.
func FinalizeColumns(counts map[string]*Counts) []ColumnSpec {
	fields := make([]string, 0, len(counts))
	for f := range counts {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	cols := make([]ColumnSpec, 0, len(fields))
	for _, field := range fields {
		ct, ok := ChooseColumnType(*counts[field])
		if !ok {
			continue
		}
		cols = append(cols, ColumnSpec{
			ColumnName:      ident.NormalizeFieldName(field),
			SourceFieldName: field,
			ColumnType:      ct,
		})
	}
	return cols
}

// RenderTuple builds the literal text of one INSERT tuple for rec, in the
// form "(id,col2,col3,...,data,1)", matching the column order of
// spec.Columns. The "id" value is always taken directly from rec and
// string-encoded, regardless of what TypeChooser assigned to any column
// named "id"; every other column is rendered per its ColumnType. It logs
// each oversize/overflow value it replaced and also returns those warnings;
// such replacements are warnings, not failures.
func RenderTuple(spec *TableSpec, rec map[string]any, enc LiteralEncoder) (tuple string, warnings []string) {
	var b strings.Builder
	b.WriteByte('(')

	id, _ := rec["id"].(string)
	b.WriteString(enc.EncodeStringLiteral(id))
	b.WriteByte(',')

	for _, col := range spec.Columns {
		if col.ColumnName == "id" {
			continue
		}
		v, present := rec[col.SourceFieldName]
		if !present || v == nil {
			b.WriteString("NULL,")
			continue
		}
		lit, warn := renderScalar(spec.TableName, col, id, v, enc)
		if warn != "" {
			warnings = append(warnings, warn)
		}
		b.WriteString(lit)
		b.WriteByte(',')
	}

	pretty := RenderCanonicalJSON(rec, true)
	data := enc.EncodeStringLiteral(pretty)
	if len(data) > maxLiteralLength {
		compact := RenderCanonicalJSON(rec, false)
		data = enc.EncodeStringLiteral(compact)
		if len(data) > maxLiteralLength {
			warnings = append(warnings, fmt.Sprintf(
				"table=%s id=%s action=data-set-null reason=json-exceeds-limit limit=%d",
				spec.TableName, id, maxLiteralLength))
			data = "NULL"
		}
	}
	b.WriteString(data)
	b.WriteString(",1)")

	for _, w := range warnings {
		log.Printf("stage: warning %s", w)
	}

	return b.String(), warnings
}

func renderScalar(table string, col ColumnSpec, id string, v any, enc LiteralEncoder) (string, string) {
	switch col.ColumnType {
	case ColumnTypeBigint:
		n, _ := v.(json.Number)
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return "NULL", ""
		}
		return strconv.FormatInt(i, 10), ""

	case ColumnTypeBoolean:
		b, _ := v.(bool)
		if b {
			return "TRUE", ""
		}
		return "FALSE", ""

	case ColumnTypeNumeric:
		n, _ := v.(json.Number)
		d, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return "NULL", ""
		}
		if math.Abs(d) > maxNumericMagnitude {
			warn := fmt.Sprintf(
				"table=%s column=%s id=%s action=value-set-zero reason=numeric-exceeds-1e10 value=%v",
				table, col.ColumnName, id, d)
			return "0", warn
		}
		return strconv.FormatFloat(d, 'f', -1, 64), ""

	case ColumnTypeID, ColumnTypeTimestamptz, ColumnTypeVarchar:
		s, _ := v.(string)
		lit := enc.EncodeStringLiteral(s)
		if len(lit) >= maxLiteralLength {
			warn := fmt.Sprintf(
				"table=%s column=%s id=%s action=value-set-null reason=string-exceeds-limit limit=%d",
				table, col.ColumnName, id, maxLiteralLength)
			return "NULL", warn
		}
		return lit, ""

	default:
		return "NULL", ""
	}
}
