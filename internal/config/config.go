// Package config defines the JSON/YAML configuration models used by the
// parsing engine: the rule Document (lookup tables and per-source column
// rules) and the run Pipeline (input file, parser, engine, storage and
// runtime knobs).
//
// Example pipeline (trimmed):
//
//	{
//	  "job":     "supplier-a",
//	  "input":   { "kind": "file", "file": { "path": "offers.csv" } },
//	  "parser":  { "kind": "csv", "options": { "has_header": true } },
//	  "engine":  { "rules": "rules.yaml", "source": "SupplierA", "dedup": true },
//	  "storage": { "kind": "sqlite", "db": { "dsn": "file:out.db", "table": "products",
//	               "columns": ["brand", "size"],
//	               "fields": { "brand": "Product.Brand", "size": "Product.Size" } } }
//	}
package config

import (
	"encoding/json"

	"github.com/spf13/cast"
)

// Pipeline describes one end-to-end run. It is the top-level object decoded
// from a pipeline file.
type Pipeline struct {
	// Job names the run for metrics labels and logs.
	Job string `json:"job"`

	// Input describes where rows come from (e.g., local file).
	Input Input `json:"input"`

	// Parser configures how raw bytes are turned into cells (e.g., CSV).
	Parser Parser `json:"parser"`

	// Engine points at the rule document and picks the source to apply.
	Engine EngineConfig `json:"engine"`

	// Storage describes where output records are written.
	Storage Storage       `json:"storage"`
	Runtime RuntimeConfig `json:"runtime"`
}

// RuntimeConfig controls concurrency, batching, and channel buffer sizes.
type RuntimeConfig struct {
	EngineWorkers int `json:"engine_workers"`
	LoaderWorkers int `json:"loader_workers"`
	BatchSize     int `json:"batch_size"`
	ChannelBuffer int `json:"channel_buffer"`
}

// Input identifies the data source. Kinds: "file", "http".
type Input struct {
	Kind string    `json:"kind"`
	File InputFile `json:"file"`
	HTTP InputHTTP `json:"http"`
}

// InputFile holds configuration for the "file" input kind.
type InputFile struct {
	Path string `json:"path"`
}

// InputHTTP holds configuration for the "http" input kind. A zero timeout
// takes the client default (30s); max_retries 0 disables retries.
type InputHTTP struct {
	URL                string            `json:"url"`
	TimeoutMS          int               `json:"timeout_ms"`
	MaxRetries         int               `json:"max_retries"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify"`
	Headers            map[string]string `json:"headers"`
}

// Parser selects how to split the raw input into rows and cells.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is interpreted by the parser. For CSV:
	//   has_header (bool), comma (string), trim_space (bool),
	//   expected_fields (int), header_map (object)
	Options Options `json:"options"`
}

// EngineConfig selects the rule document and the source within it.
type EngineConfig struct {
	// Rules is the path of the rule document (JSON or YAML).
	Rules string `json:"rules"`

	// Source names the document source whose column rules apply. May be empty
	// when the document declares a single source.
	Source string `json:"source"`

	// Learn enables AddIfNotFound recording; LearnedPath receives the learned
	// aliases when the run ends.
	Learn       bool   `json:"learn"`
	LearnedPath string `json:"learned_path"`

	// Dedup drops output records identical to one already emitted in this run.
	Dedup bool `json:"dedup"`
}

// Storage selects the sink used to persist output records.
type Storage struct {
	// Kind selects the storage backend: "postgres", "mssql", "mysql",
	// "sqlite", "jsonl".
	Kind string   `json:"kind"`
	DB   DBConfig `yaml:"db" json:"db"`
}

// DBConfig configures the record sink.
type DBConfig struct {
	// DSN is the backend connection string. For "jsonl" it is a file path or
	// "-" for stdout.
	DSN string `json:"dsn"`

	// Table is the destination table name (e.g., "public.products").
	Table string `json:"table"`

	// Columns enumerates the destination columns in load order.
	Columns []string `json:"columns"`

	// Fields maps a destination column to the output record field that feeds
	// it. Columns without an entry read the record field of the same name.
	Fields map[string]string `json:"fields"`

	// AutoCreateTable creates the destination table (all text columns) when
	// it does not exist.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Field returns the record field feeding column.
func (db DBConfig) Field(column string) string {
	if f, ok := db.Fields[column]; ok && f != "" {
		return f
	}
	return column
}

// Options fetches typed values from free-form JSON maps. Values are coerced
// with spf13/cast, so "true", 1 and true all read as a true Bool; def is
// returned when a key is absent or cannot be coerced.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, err := cast.ToStringE(v); err == nil {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object.
// Values that cannot be coerced to strings are skipped.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, err := cast.ToStringE(vv); err == nil {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key, or nil when absent.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		if ss, err := cast.ToStringSliceE(v); err == nil {
			return ss
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
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
