// Package anonymize provides the hook point for redacting personal data
// during pass 2 of a table load. The core itself never anonymizes anything;
// callers wire in a Predicate appropriate to their source schema.
package anonymize

import "encoding/json"

// Predicate reports whether the named top-level field of a record may hold
// personal data and should be redacted (replaced with a type-appropriate
// empty value: false, 0, or "") before it is written to the "data" column
// or to its own column.
//
// fieldName is the original JSON field name, not the normalized column name.
type Predicate func(fieldName string) bool

// None never anonymizes anything. The stager uses it for every table whose
// TableStager has no Anonymize predicate set; the run config has no option
// that sets one.
func None(fieldName string) bool { return false }

// Redact applies pred to rec in place, replacing any field pred reports true
// for with a zero value of the same JSON kind (bool->false, number->0,
// string->""). Null values and nested structures are left untouched:
// anonymization only applies to top-level scalar fields, matching the scope
// of the statistics collector it runs alongside.
func Redact(rec map[string]any, pred Predicate) {
	if pred == nil {
		return
	}
	for field, v := range rec {
		if v == nil || !pred(field) {
			continue
		}
		switch v.(type) {
		case bool:
			rec[field] = false
		case string:
			rec[field] = ""
		case json.Number:
			rec[field] = json.Number("0")
		}
	}
}
