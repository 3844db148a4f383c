package stage

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RecordHandler is invoked once per record decoded from a page's records
// array, in document order. Values are decoded with json.Number for numeric
// literals so pass 1 can distinguish integer-valued from floating literals
// without losing precision.
type RecordHandler func(rec map[string]any) error

// PageScanner streams a page file of the shape
// { ..., "<arbitrary key>": [ R1, R2, ... ], ... } and delivers each Ri to a
// RecordHandler without ever holding more than one record in memory at a
// time. The records array's key name is not significant and varies across
// source endpoints; the scanner treats the first array-valued top-level
// member it encounters as the records array and skips everything else.
type PageScanner struct {
	dec *json.Decoder
}

// NewPageScanner wraps r for streaming decode.
func NewPageScanner(r io.Reader) *PageScanner {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &PageScanner{dec: dec}
}

// Scan reads the whole page, calling handle for each record. A handle error
// aborts the scan and is returned to the caller (which, per the table
// stager's protocol, aborts the table).
func (s *PageScanner) Scan(handle RecordHandler) error {
	tok, err := s.dec.Token()
	if err != nil {
		return fmt.Errorf("stage: reading page: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("stage: page does not start with a JSON object")
	}

	foundArray := false
	for s.dec.More() {
		if _, err := s.dec.Token(); err != nil { // key
			return fmt.Errorf("stage: reading page key: %w", err)
		}
		valTok, err := s.dec.Token()
		if err != nil {
			return fmt.Errorf("stage: reading page value: %w", err)
		}
		if d, ok := valTok.(json.Delim); ok && d == '[' && !foundArray {
			foundArray = true
			for s.dec.More() {
				var rec map[string]any
				if err := s.dec.Decode(&rec); err != nil {
					return fmt.Errorf("stage: decoding record: %w", err)
				}
				if err := handle(rec); err != nil {
					return err
				}
			}
			if _, err := s.dec.Token(); err != nil { // closing ']'
				return fmt.Errorf("stage: closing records array: %w", err)
			}
			continue
		}
		if err := skipValue(s.dec, valTok); err != nil {
			return fmt.Errorf("stage: skipping page field: %w", err)
		}
	}
	_, err = s.dec.Token() // closing '}'
	if err != nil {
		return fmt.Errorf("stage: closing page object: %w", err)
	}
	return nil
}

// skipValue consumes a complete JSON value, given the token that begins it.
// Scalar tokens (string, number, bool, nil) are already fully consumed by
// the time they are handed in; object/array delimiters require draining the
// matching close.
func skipValue(dec *json.Decoder, first json.Token) error {
	d, ok := first.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if dd, ok := tok.(json.Delim); ok {
			switch dd {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// topLevelKeys returns rec's keys sorted so that "id", if present, sorts
// first and all other keys sort lexicographically. This ordering applies at
// every object level when rendering canonical JSON (see renderValue) and is
// what makes the reserialized "data" column stable across runs for
// unchanged records.
func topLevelKeys(rec map[string]any) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "id" {
			return true
		}
		if keys[j] == "id" {
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// RenderCanonicalJSON reserializes rec with canonical key ordering (id
// first, then lexicographic, at every object level) and explicit string
// escaping. When pretty is true, output uses two-space indentation; the
// compact form is used as a fallback when the pretty form is too large for
// the destination "data" column.
func RenderCanonicalJSON(rec map[string]any, pretty bool) string {
	var b strings.Builder
	renderValue(&b, rec, pretty, 0)
	return b.String()
}

func renderValue(b *strings.Builder, v any, pretty bool, indent int) {
	switch vv := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if vv {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case json.Number:
		b.WriteString(string(vv))
	case string:
		writeJSONString(b, vv)
	case []any:
		renderArray(b, vv, pretty, indent)
	case map[string]any:
		renderObject(b, vv, pretty, indent)
	default:
		// Values not produced by encoding/json with UseNumber (e.g. Go ints
		// in hand-built maps) are rendered with json.Marshal.
		if raw, err := json.Marshal(vv); err == nil {
			b.Write(raw)
		} else {
			b.WriteString("null")
		}
	}
}

func renderArray(b *strings.Builder, arr []any, pretty bool, indent int) {
	if len(arr) == 0 {
		b.WriteString("[]")
		return
	}
	b.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			b.WriteByte(',')
		}
		writeNewlineIndent(b, pretty, indent+1)
		renderValue(b, elem, pretty, indent+1)
	}
	writeNewlineIndent(b, pretty, indent)
	b.WriteByte(']')
}

func renderObject(b *strings.Builder, obj map[string]any, pretty bool, indent int) {
	keys := topLevelKeys(obj)
	if len(keys) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeNewlineIndent(b, pretty, indent+1)
		writeJSONString(b, k)
		b.WriteByte(':')
		if pretty {
			b.WriteByte(' ')
		}
		renderValue(b, obj[k], pretty, indent+1)
	}
	writeNewlineIndent(b, pretty, indent)
	b.WriteByte('}')
}

func writeNewlineIndent(b *strings.Builder, pretty bool, indent int) {
	if !pretty {
		return
	}
	b.WriteByte('\n')
	for i := 0; i < indent; i++ {
		b.WriteString("  ")
	}
}

// writeJSONString writes s as a quoted, escaped JSON string literal.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(`\u`)
				b.WriteString(fmt.Sprintf("%04x", r))
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

// looksLikeUUID reports whether s is a canonical 8-4-4-4-12 hex UUID. Parsing
// (rather than a hand-rolled pattern check) rejects the bare-32-hex-digit and
// braced/urn: forms that uuid.Parse otherwise accepts but the canonical
// form's fixed length excludes.
func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// looksLikeDateTime reports whether s begins with an ISO-8601-style
// "YYYY-MM-DDTHH:MM:SS" prefix.
func looksLikeDateTime(s string) bool {
	const layout = "0000-00-00T00:00:00"
	if len(s) < len(layout) {
		return false
	}
	for i := 0; i < len(layout); i++ {
		c := s[i]
		switch layout[i] {
		case '0':
			if c < '0' || c > '9' {
				return false
			}
		default:
			if c != layout[i] {
				return false
			}
		}
	}
	return true
}

// isInteger64 reports whether n's literal text represents a value that fits
// in an int64 with no fractional part.
func isInteger64(n json.Number) bool {
	_, err := strconv.ParseInt(n.String(), 10, 64)
	return err == nil
}
