package csv

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}

// canonicalHeader cleans the raw header row: BOM, surrounding space and
// Unicode composition (so "é" typed two ways is one column), then header_map
// or snake-casing. A blank cell becomes "Unnamed: <pos>", which is what the
// leading index column of a written frame reads back as. Duplicate names get
// ".1", ".2", ... suffixes in order of appearance.
func canonicalHeader(raw []string, opt Options) []string {
	hdr := StripHeaderBOM(append([]string(nil), raw...))
	for i, h := range hdr {
		h = norm.NFC.String(strings.TrimSpace(h))
		if h == "" {
			hdr[i] = "Unnamed: " + strconv.Itoa(i)
			continue
		}
		if mapped := opt.mapHeader(h); mapped != "" {
			h = mapped
		} else if opt.SnakeHeaders {
			h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		}
		hdr[i] = h
	}
	return mangleDuplicates(hdr)
}

// mapHeader looks h up in HeaderMap, first exactly and then lower-cased;
// config files loaded through viper arrive with lower-cased keys.
func (o Options) mapHeader(h string) string {
	if mapped, ok := o.HeaderMap[h]; ok {
		return mapped
	}
	return o.HeaderMap[strings.ToLower(h)]
}

func mangleDuplicates(hdr []string) []string {
	taken := make(map[string]struct{}, len(hdr))
	for _, h := range hdr {
		taken[h] = struct{}{}
	}
	counts := make(map[string]int, len(hdr))
	seen := make(map[string]struct{}, len(hdr))
	for i, h := range hdr {
		if _, dup := seen[h]; !dup {
			seen[h] = struct{}{}
			continue
		}
		var name string
		for {
			counts[h]++
			name = h + "." + strconv.Itoa(counts[h])
			if _, clash := taken[name]; !clash {
				break
			}
		}
		taken[name] = struct{}{}
		hdr[i] = name
	}
	return hdr
}
