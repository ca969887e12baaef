// Package csv reads CSV sources into frame chunks and writes frames back out
// as CSV with a leading index column.
//
// Reading streams: at most one chunk of rows is held by the reader at a time.
// Cells equal to one of the missing-value tokens (by default the tokens used by
// spreadsheet and dataframe tools: "", "NA", "NaN", "NULL", "None", "#N/A", ...) are
// read as nulls.
package csv

import "courtetl/internal/config"

// DefaultNAValues are the tokens read as null unless KeepDefaultNA is false.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// Options configures reading.
type Options struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune

	// LazyQuotes is passed to encoding/csv.
	LazyQuotes bool

	// NAValues are extra tokens read as null.
	NAValues []string

	// KeepDefaultNA adds DefaultNAValues to NAValues.
	KeepDefaultNA bool

	// HeaderMap renames source headers after BOM/space/NFC cleanup.
	HeaderMap map[string]string

	// SnakeHeaders lower-cases headers and replaces spaces with underscores
	// for headers that HeaderMap does not cover.
	SnakeHeaders bool
}

// DefaultOptions is what a step gets when it configures nothing.
func DefaultOptions() Options {
	return Options{Comma: ',', KeepDefaultNA: true}
}

// OptionsFrom reads parser options from a config bag:
//
//	comma (string), lazy_quotes (bool), na_values ([]string),
//	keep_default_na (bool, default true), header_map (object),
//	snake_headers (bool)
func OptionsFrom(o config.Options) Options {
	return Options{
		Comma:         o.Rune("comma", ','),
		LazyQuotes:    o.Bool("lazy_quotes", false),
		NAValues:      o.StringSlice("na_values"),
		KeepDefaultNA: o.Bool("keep_default_na", true),
		HeaderMap:     o.StringMap("header_map"),
		SnakeHeaders:  o.Bool("snake_headers", false),
	}
}

func (o Options) naSet() map[string]struct{} {
	set := make(map[string]struct{}, len(DefaultNAValues)+len(o.NAValues))
	if o.KeepDefaultNA {
		for _, v := range DefaultNAValues {
			set[v] = struct{}{}
		}
	}
	for _, v := range o.NAValues {
		set[v] = struct{}{}
	}
	// An empty field is always missing; CSV cannot tell "" from nothing.
	set[""] = struct{}{}
	return set
}
