// Package config defines the serializable configuration model for courtetl.
// A pipeline file (YAML or JSON) names the reference tables and an ordered
// list of steps; each step is one chunked run over one source.
//
// Example (trimmed):
//
//	job: judges-nlp
//	references:
//	  people: data/people-db-people-2022-11-30.csv.bz2
//	  political_affiliations: data/people-db-political-affiliations-2022-11-30.csv.bz2
//	  dockets: data/cleaned_dockets.csv.bz2
//	steps:
//	  - name: dockets
//	    kind: docket_filter
//	    source: data/dockets-2022-11-30.csv.bz2
//	    output: data/cleaned_dockets.csv.bz2
//	  - name: clusters
//	    kind: cluster_filter
//	    source: data/opinion-clusters-2022-11-30.csv.bz2
//	    output: data/cleaned_clusters.csv.bz2
package config

import "encoding/json"

// DefaultChunkSize is the number of rows per chunk when a step sets none.
const DefaultChunkSize = 100_000

// Step kinds.
const (
	KindDocketFilter  = "docket_filter"
	KindClusterFilter = "cluster_filter"
	KindOpinionFilter = "opinion_filter"
	KindOpinionJoin   = "opinion_join"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels metrics and log lines.
	Job string `json:"job" yaml:"job" mapstructure:"job"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// Parser options apply to every CSV read (sources and references).
	Parser Parser `json:"parser" yaml:"parser" mapstructure:"parser"`

	// S3 configures access for s3:// sources and outputs.
	S3 S3 `json:"s3" yaml:"s3" mapstructure:"s3"`

	References References `json:"references" yaml:"references" mapstructure:"references"`

	// Steps run in order.
	Steps []Step `json:"steps" yaml:"steps" mapstructure:"steps"`

	Metrics Metrics `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// Parser carries CSV options, e.g. comma, lazy_quotes, na_values,
// keep_default_na, header_map, snake_headers.
type Parser struct {
	Options Options `json:"options" yaml:"options" mapstructure:"options"`
}

// References locate the small tables joined against every chunk. Each is a
// source URI (path, file://, s3://, http(s)://).
type References struct {
	People                string `json:"people" yaml:"people" mapstructure:"people"`
	PoliticalAffiliations string `json:"political_affiliations" yaml:"political_affiliations" mapstructure:"political_affiliations"`
	Dockets               string `json:"dockets" yaml:"dockets" mapstructure:"dockets"`
	Clusters              string `json:"clusters" yaml:"clusters" mapstructure:"clusters"`
}

// Step is one chunked run: read Source, apply Kind, write Output.
type Step struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Kind selects the transform: docket_filter, cluster_filter,
	// opinion_filter, opinion_join.
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`

	Source string `json:"source" yaml:"source" mapstructure:"source"`
	Output string `json:"output" yaml:"output" mapstructure:"output"`

	// ChunkSize is rows per chunk; 0 means DefaultChunkSize.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size" mapstructure:"chunk_size"`

	// Compression of Output: bz2 (default), gzip, zstd, none, infer.
	Compression string `json:"compression" yaml:"compression" mapstructure:"compression"`

	// Options is interpreted by the transform: courts for docket_filter,
	// keep_columns for opinion_join.
	Options Options `json:"options" yaml:"options" mapstructure:"options"`

	// Storage optionally mirrors the step's final table into a database.
	Storage *Storage `json:"storage,omitempty" yaml:"storage,omitempty" mapstructure:"storage"`
}

// UnmarshalJSON decodes a step and gives it a non-nil Options map even when
// the "options" key is absent.
func (s *Step) UnmarshalJSON(b []byte) error {
	type plain Step
	var tmp plain
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if tmp.Options == nil {
		tmp.Options = Options{}
	}
	*s = Step(tmp)
	return nil
}

// EffectiveChunkSize applies the default.
func (s Step) EffectiveChunkSize() int {
	if s.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return s.ChunkSize
}

// Storage selects the database the final table is copied into.
type Storage struct {
	// Kind is postgres, sqlite, mysql or mssql.
	Kind string   `json:"kind" yaml:"kind" mapstructure:"kind"`
	DB   DBConfig `json:"db" yaml:"db" mapstructure:"db"`
}

// DBConfig configures the DB sink.
type DBConfig struct {
	// DSN is the driver connection string.
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`

	// Table is the (optionally schema-qualified) destination table.
	Table string `json:"table" yaml:"table" mapstructure:"table"`

	// AutoCreateTable creates the table from the frame's columns when it
	// does not exist.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table" mapstructure:"auto_create_table"`

	// BatchSize is rows per insert batch; 0 means 5000.
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
}

// S3 holds explicit S3 settings. Empty credentials fall back to the default
// AWS chain.
type S3 struct {
	Region          string `json:"region" yaml:"region" mapstructure:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token" mapstructure:"session_token"`
	PathStyle       bool   `json:"path_style" yaml:"path_style" mapstructure:"path_style"`
}

// Metrics selects the metrics backend. Flags override these values.
type Metrics struct {
	// Backend is none, pushgateway or datadog.
	Backend        string `json:"backend" yaml:"backend" mapstructure:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr" mapstructure:"datadog_addr"`
}

// Options is a small helper to fetch typed values from free-form maps. It
// performs only minimal type coercion and returns the provided default when
// a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// YAML numbers as int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
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

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or not an array.
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

// UnmarshalJSON makes a null "options" object decode to an empty, non-nil
// Options map. An absent key never reaches here; Step.UnmarshalJSON covers it.
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
