package stage

// ChooseColumnType selects a ColumnType for a field given its observed
// Counts, or reports ok=false when the field should be dropped (no column).
//
// The rules are evaluated in order and the first match wins; this mirrors
// ColumnSchema::selectColumnType in the source system this was modeled on,
// generalized slightly (rules 3-8) for ambiguous mixes of observed types.
func ChooseColumnType(counts Counts) (t ColumnType, ok bool) {
	switch {
	case counts.UUID == counts.String && counts.String > 0 &&
		counts.Number == 0 && counts.Boolean == 0 && counts.DateTime == 0:
		return ColumnTypeID, true

	case counts.DateTime == counts.String && counts.String > 0 &&
		counts.Number == 0 && counts.Boolean == 0 && counts.UUID == 0:
		return ColumnTypeTimestamptz, true

	case counts.Boolean > 0 && counts.String == 0 && counts.Number == 0:
		return ColumnTypeBoolean, true

	case counts.Number > 0 && counts.String == 0 && counts.Boolean == 0 && counts.Floating == 0:
		return ColumnTypeBigint, true

	case counts.Number > 0 && counts.String == 0 && counts.Boolean == 0:
		return ColumnTypeNumeric, true

	case counts.String > 0:
		return ColumnTypeVarchar, true

	case counts.Null > 0 && counts.Boolean == 0 && counts.Number == 0 && counts.String == 0:
		return 0, false

	default:
		return ColumnTypeVarchar, true
	}
}
