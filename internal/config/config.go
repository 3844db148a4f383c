// Package config defines the canonical, JSON-serializable configuration model
// for the loader. It is intentionally small, explicit, and dependency-free so
// that a run can be loaded from disk (or other sources) and passed through the
// program without additional glue code.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: field names in Go mirror the JSON structure used in run
//     configuration files (see the example below).
//  3. Minimalism: no third-party config libraries; decoding is performed by
//     the standard library, with a light Options helper for typed access to
//     free-form option bags.
//
// Example (trimmed):
//
//	{
//	  "job": "rsv-nightly",
//	  "source":  { "kind": "http", "base_url": "https://tenant.example/api" },
//	  "storage": { "flavor": "postgres", "dsn": "postgresql://...", "roles": ["analytics_ro"] },
//	  "tables":  [ { "table_name": "vehicles", "module_name": "mod-vehicles", "source_path": "/vehicles" } ]
//	}
package config

import "encoding/json"

// RunConfig describes a full load run: where records come from, where they
// are staged, which database they are published into, and which tables make
// up the catalog for this source.
type RunConfig struct {
	// Job names the run, used for metrics labeling and logging.
	Job string `json:"job"`

	// Source describes the tenant HTTP service (or a pre-staged directory)
	// that produces page files for each table.
	Source SourceConfig `json:"source"`

	// Storage describes the destination database and its flavor.
	Storage StorageConfig `json:"storage"`

	// Tables is the fixed catalog of tables loaded for this source, in the
	// order they will be processed (sequentially, per table).
	Tables []TableConfig `json:"tables"`

	// Runtime controls batching and staging behavior.
	Runtime RuntimeConfig `json:"runtime"`
}

// SourceConfig identifies where page files come from.
type SourceConfig struct {
	// Kind selects the extraction implementation. Current value: "http".
	Kind string `json:"kind"`

	// BaseURL is the tenant service's base URL; table.source_path is
	// resolved against it.
	BaseURL string `json:"base_url"`

	// Insecure disables TLS certificate verification when talking to the
	// tenant service (mirrors the CLI's --nossl/--unsafe options).
	Insecure bool `json:"insecure"`

	// LoadDir is the staging directory holding "<table>_<page>.json" and
	// "<table>_count.txt" files. The extractor writes here; the core only
	// reads from it.
	LoadDir string `json:"load_dir"`

	// FromDir puts the run in load-from-directory mode: extraction is
	// skipped and the core loads directly from pre-staged page files in
	// LoadDir, additionally consuming "<table>_test.json" when present
	// (mirrors the CLI's --sourcedir option).
	FromDir bool `json:"from_dir"`

	// SaveTemps mirrors the CLI's --savetemps option. The loader never
	// deletes page files and does not read this field.
	SaveTemps bool `json:"save_temps"`

	// Options is a free-form bag for extractor-specific settings (e.g. page
	// size, auth headers).
	Options Options `json:"options"`
}

// StorageConfig selects the destination database and its SQL dialect family.
type StorageConfig struct {
	// Flavor selects the DB dialect. Current values: "postgres", "redshift".
	Flavor string `json:"flavor"`

	// DSN is the connection string for pgx/pgxpool (e.g., postgresql://...).
	DSN string `json:"dsn"`

	// Roles are granted SELECT on the published schema after every publish.
	Roles []string `json:"roles"`
}

// TableConfig describes one logical table ("interface") in the catalog.
type TableConfig struct {
	// TableName is the published table's identifier.
	TableName string `json:"table_name"`

	// ModuleName is an origin tag used only for the table's documentation
	// comment. By convention, a module named "mod-agreements" suppresses the
	// comment entirely (see internal/stager).
	ModuleName string `json:"module_name"`

	// SourcePath is the tenant API path this table is extracted from; it is
	// used for the documentation comment and for routing extraction.
	SourcePath string `json:"source_path"`
}

// RuntimeConfig controls staging and batching behavior.
type RuntimeConfig struct {
	// InsertBatchBytes is accepted in the configuration but not read: the
	// loader always flushes at its fixed 16,500,000-byte threshold.
	InsertBatchBytes int `json:"insert_batch_bytes"`

	// Verbose is set by the CLI's --verbose option; no logging depends on it.
	Verbose bool `json:"verbose"`

	// Debug is set by the CLI's --debug option; no logging depends on it.
	Debug bool `json:"debug"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings (or an array of interface values containing strings). Returns nil
// when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key (which may itself be a nested
// map[string]any, []any, or primitive).
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object in JSON decodes to a non-nil, empty Options map. This
// simplifies call sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// DefaultInsertBatchBytes is used whenever RuntimeConfig.InsertBatchBytes is
// zero. It matches the batch-size threshold in the spec for insert buffer
// flushing.
const DefaultInsertBatchBytes = 16_500_000

// EffectiveInsertBatchBytes returns the insert batch threshold for r,
// substituting DefaultInsertBatchBytes when r.InsertBatchBytes is unset.
func (r RuntimeConfig) EffectiveInsertBatchBytes() int {
	if r.InsertBatchBytes > 0 {
		return r.InsertBatchBytes
	}
	return DefaultInsertBatchBytes
}
