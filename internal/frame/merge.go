package frame

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultSuffixes disambiguate column names present on both sides of a merge.
var DefaultSuffixes = [2]string{"_x", "_y"}

// MergeOptions configures Merge.
type MergeOptions struct {
	// LeftOn and RightOn name the key columns. When they are equal the key
	// appears once in the output.
	LeftOn  string
	RightOn string

	// Suffixes are appended to overlapping non-key column names, left then
	// right. Zero value means DefaultSuffixes.
	Suffixes [2]string
}

// Merge inner-joins left and right on LeftOn = RightOn.
//
// Output columns are all left columns followed by all right columns; a name
// present on both sides is suffixed. Rows come out in left order, and for
// each left row its matches in right order, so a key repeated k times on the
// right yields k rows. Null keys never match. The result gets a fresh
// 0..n-1 index.
func Merge(left, right *Frame, opt MergeOptions) (*Frame, error) {
	lk, err := left.ColumnIndex(opt.LeftOn)
	if err != nil {
		return nil, errors.Wrap(err, "merge left key")
	}
	rk, err := right.ColumnIndex(opt.RightOn)
	if err != nil {
		return nil, errors.Wrap(err, "merge right key")
	}
	suffixes := opt.Suffixes
	if suffixes == ([2]string{}) {
		suffixes = DefaultSuffixes
	}
	sharedKey := opt.LeftOn == opt.RightOn

	// Right columns that make it into the output.
	rightKeep := make([]int, 0, right.Width())
	for i := range right.columns {
		if sharedKey && i == rk {
			continue
		}
		rightKeep = append(rightKeep, i)
	}

	columns, err := mergedColumns(left, right, rightKeep, opt, suffixes)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string][]int, right.Len())
	for i, r := range right.rows {
		key, ok := NormalizeKey(r[rk])
		if !ok {
			continue
		}
		buckets[key] = append(buckets[key], i)
	}

	out := NewWithCapacity(left.Len(), columns...)
	for _, l := range left.rows {
		key, ok := NormalizeKey(l[lk])
		if !ok {
			continue
		}
		for _, ri := range buckets[key] {
			r := right.rows[ri]
			row := make([]Value, 0, len(columns))
			row = append(row, l...)
			for _, c := range rightKeep {
				row = append(row, r[c])
			}
			out.index = append(out.index, len(out.rows))
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}

func mergedColumns(left, right *Frame, rightKeep []int, opt MergeOptions, suffixes [2]string) ([]string, error) {
	inRight := make(map[string]struct{}, len(rightKeep))
	for _, c := range rightKeep {
		inRight[right.columns[c]] = struct{}{}
	}
	inLeft := make(map[string]struct{}, left.Width())
	for _, c := range left.columns {
		inLeft[c] = struct{}{}
	}

	columns := make([]string, 0, left.Width()+len(rightKeep))
	for _, c := range left.columns {
		if _, ok := inRight[c]; ok && !(opt.LeftOn == opt.RightOn && c == opt.LeftOn) {
			c += suffixes[0]
		}
		columns = append(columns, c)
	}
	for _, i := range rightKeep {
		c := right.columns[i]
		if _, ok := inLeft[c]; ok {
			c += suffixes[1]
		}
		columns = append(columns, c)
	}

	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, errors.Wrapf(ErrSchemaMismatch, "merge on %s=%s produces duplicate column %q", opt.LeftOn, opt.RightOn, c)
		}
		seen[c] = struct{}{}
	}
	return columns, nil
}

// NormalizeKey returns the comparable form of an identifier cell. Surrounding
// space is dropped and integral numbers are rendered without a fraction, so
// "42", " 42" and "42.0" are the same key. The second result is false for
// null or blank cells.
func NormalizeKey(v Value) (string, bool) {
	if v.IsNull() {
		return "", false
	}
	s := strings.TrimSpace(v.S)
	if s == "" {
		return "", false
	}
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return strconv.FormatInt(int64(f), 10), true
		}
	}
	return s, true
}
