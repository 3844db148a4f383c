// Package ident derives stable SQL identifiers from the field names and
// table names that appear in source JSON, and maps a published table name to
// its staging name during a load.
package ident

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeFieldName converts a JSON field name (commonly camelCase, as
// produced by the source APIs this system loads from) into a lower-
// snake-case SQL identifier. The input is first normalized to NFC so that
// precomposed and decomposed forms of the same accented character produce
// identical output.
//
// Rules: camelCase word boundaries become underscores; any rune outside
// [a-z0-9_] after lower-casing is replaced with an underscore; runs of
// underscores collapse to one.
func NormalizeFieldName(field string) string {
	field = norm.NFC.String(field)

	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && isWordChar(runes[i-1]) && !unicode.IsUpper(runes[i-1]) {
			b.WriteByte('_')
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		case r == '_':
			b.WriteByte('_')
		default:
			b.WriteByte('_')
		}
	}

	return collapseUnderscores(b.String())
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "_")
}

// LoadingTableName returns the temporary staging name a table is created
// under while pass 1/pass 2 run, before TableStager publishes it under its
// real name. The "zzzstage_" prefix sorts staging tables to the end of a
// schema listing, away from the published tables administrators expect to
// see.
func LoadingTableName(table string) string {
	return "zzzstage_" + table
}
