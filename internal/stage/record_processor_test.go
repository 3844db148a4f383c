package stage

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// testEncoder implements LiteralEncoder with plain single-quote doubling,
// enough to exercise RenderTuple's logic without depending on internal/dbconn.
type testEncoder struct{}

func (testEncoder) EncodeStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func TestObservePass1_CountsTopLevelFieldsOnly(t *testing.T) {
	t.Parallel()

	rec := map[string]any{
		"id":     "550e8400-e29b-41d4-a716-446655440000",
		"active": true,
		"count":  jsonNumber("3"),
		"price":  jsonNumber("3.5"),
		"note":   "hello",
		"tag":    nil,
		"nested": map[string]any{"inner": "ignored"},
	}

	counts := map[string]*Counts{}
	ObservePass1(rec, counts)

	if counts["id"].String != 1 || counts["id"].UUID != 1 {
		t.Errorf("id counts = %+v", counts["id"])
	}
	if counts["active"].Boolean != 1 {
		t.Errorf("active counts = %+v", counts["active"])
	}
	if counts["count"].Number != 1 || counts["count"].Integer != 1 {
		t.Errorf("count counts = %+v", counts["count"])
	}
	if counts["price"].Number != 1 || counts["price"].Floating != 1 {
		t.Errorf("price counts = %+v", counts["price"])
	}
	if counts["note"].String != 1 {
		t.Errorf("note counts = %+v", counts["note"])
	}
	if counts["tag"].Null != 1 {
		t.Errorf("tag counts = %+v", counts["tag"])
	}
	if _, ok := counts["nested"]; ok {
		t.Errorf("nested should not be counted as a top-level field")
	}
	if _, ok := counts["inner"]; ok {
		t.Errorf("nested object's fields must not leak into top-level counts")
	}
}

func TestFinalizeColumns_DropsAllNullFields(t *testing.T) {
	t.Parallel()

	counts := map[string]*Counts{
		"id":     {String: 2, UUID: 2},
		"always": {Null: 2},
		"name":   {String: 2},
	}

	cols := FinalizeColumns(counts)

	var names []string
	for _, c := range cols {
		names = append(names, c.SourceFieldName)
	}
	for _, want := range []string{"id", "name"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected column for field %q, got %v", want, names)
		}
	}
	for _, n := range names {
		if n == "always" {
			t.Errorf("all-null field %q should have been dropped", n)
		}
	}
}

func TestFinalizeColumns_LexicographicOrder(t *testing.T) {
	t.Parallel()

	counts := map[string]*Counts{
		"zeta": {String: 1},
		"id":   {String: 1, UUID: 1},
		"beta": {String: 1},
	}

	cols := FinalizeColumns(counts)
	if len(cols) != 3 {
		t.Fatalf("got %d columns, want 3", len(cols))
	}
	want := []string{"beta", "id", "zeta"}
	for i, w := range want {
		if cols[i].SourceFieldName != w {
			t.Errorf("column[%d] = %q, want %q", i, cols[i].SourceFieldName, w)
		}
	}
}

func TestRenderTuple_BasicTypes(t *testing.T) {
	t.Parallel()

	spec := &TableSpec{
		TableName: "vehicles",
		Columns: []ColumnSpec{
			{ColumnName: "id", SourceFieldName: "id", ColumnType: ColumnTypeID},
			{ColumnName: "active", SourceFieldName: "active", ColumnType: ColumnTypeBoolean},
			{ColumnName: "year", SourceFieldName: "year", ColumnType: ColumnTypeBigint},
			{ColumnName: "missing_field", SourceFieldName: "missingField", ColumnType: ColumnTypeVarchar},
		},
	}
	rec := map[string]any{
		"id":     "abc",
		"active": true,
		"year":   jsonNumber("2020"),
	}

	tuple, warnings := RenderTuple(spec, rec, testEncoder{})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !strings.HasPrefix(tuple, "('abc',TRUE,2020,NULL,") {
		t.Fatalf("unexpected tuple: %s", tuple)
	}
	if !strings.HasSuffix(tuple, ",1)") {
		t.Fatalf("tuple missing trailing tenant marker: %s", tuple)
	}
}

func TestRenderTuple_NumericOverflowReplacedWithZero(t *testing.T) {
	t.Parallel()

	spec := &TableSpec{
		TableName: "vehicles",
		Columns: []ColumnSpec{
			{ColumnName: "id", SourceFieldName: "id", ColumnType: ColumnTypeID},
			{ColumnName: "odometer", SourceFieldName: "odometer", ColumnType: ColumnTypeNumeric},
		},
	}
	rec := map[string]any{
		"id":       "abc",
		"odometer": jsonNumber("99999999999999"),
	}

	tuple, warnings := RenderTuple(spec, rec, testEncoder{})
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if !strings.Contains(tuple, ",0,") {
		t.Fatalf("expected overflow value replaced with 0: %s", tuple)
	}
}

func TestRenderTuple_OversizeStringReplacedWithNull(t *testing.T) {
	t.Parallel()

	spec := &TableSpec{
		TableName: "vehicles",
		Columns: []ColumnSpec{
			{ColumnName: "id", SourceFieldName: "id", ColumnType: ColumnTypeID},
			{ColumnName: "notes", SourceFieldName: "notes", ColumnType: ColumnTypeVarchar},
		},
	}
	rec := map[string]any{
		"id":    "abc",
		"notes": strings.Repeat("x", maxLiteralLength+10),
	}

	tuple, warnings := RenderTuple(spec, rec, testEncoder{})
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings (column and data), got %v", warnings)
	}
	if !strings.Contains(tuple, ",NULL,") {
		t.Fatalf("expected oversize string replaced with NULL: %s", tuple)
	}
}

func TestRenderTuple_DataColumnFallsBackToCompactWhenPrettyOverflows(t *testing.T) {
	t.Parallel()

	spec := &TableSpec{
		TableName: "vehicles",
		Columns: []ColumnSpec{
			{ColumnName: "id", SourceFieldName: "id", ColumnType: ColumnTypeID},
		},
	}
	rec := map[string]any{"id": "abc"}
	// Many short fields: pretty-printing's per-field newline+indent overhead
	// pushes the pretty form over the limit while the compact form still
	// fits, exercising the fallback without needing the final NULL case.
	const n = 5000
	for i := 0; i < n; i++ {
		rec[fmt.Sprintf("f%04d", i)] = "v"
	}

	pretty := RenderCanonicalJSON(rec, true)
	compact := RenderCanonicalJSON(rec, false)
	if len(pretty) <= maxLiteralLength {
		t.Fatalf("test fixture does not exceed the limit in pretty form: %d bytes", len(pretty))
	}
	if len(compact) > maxLiteralLength {
		t.Fatalf("test fixture exceeds the limit even in compact form: %d bytes", len(compact))
	}

	tuple, warnings := RenderTuple(spec, rec, testEncoder{})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if strings.HasSuffix(tuple, ",NULL,1)") {
		t.Fatalf("expected compact fallback to avoid the NULL case: %s", tuple[len(tuple)-30:])
	}
}

func jsonNumber(s string) json.Number {
	return json.Number(s)
}
