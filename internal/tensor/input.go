// Package tensor implements the JSON-to-columnar input model shared by
// every framework adapter (spec §4.A). An Input is a record of named
// columns, each tagged with the type inferred from its first element.
package tensor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/aiserve/modelserver/internal/apperr"
)

// Kind is the inferred column type.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
)

// Column is one feature's values, tagged by Kind. Exactly one of the
// slices is populated; which one is indicated by Kind.
type Column struct {
	Kind    Kind
	Ints    []int64
	Floats  []float64
	Strings []string
}

// Len returns the column's length, i.e. the batch size it implies.
func (c Column) Len() int {
	switch c.Kind {
	case KindInt:
		return len(c.Ints)
	case KindFloat:
		return len(c.Floats)
	default:
		return len(c.Strings)
	}
}

// Input is the parsed, columnar form of a JSON {feature -> array} object.
// Invariant: every column has the same Len() (the batch size); Parse
// enforces this before returning.
type Input struct {
	Columns   map[string]Column
	BatchSize int
}

// Parse decodes a JSON object of feature -> homogeneous array into an
// Input. Mixed-type arrays and ragged batch sizes fail with
// apperr.ErrBadInput, matching spec §4.A / §8 invariant 4.
func Parse(raw []byte) (*Input, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode input object: %w: %w", apperr.ErrBadInput, err)
	}

	in := &Input{Columns: make(map[string]Column, len(fields)), BatchSize: -1}
	for name, rawCol := range fields {
		col, err := parseColumn(rawCol)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", name, err)
		}
		if in.BatchSize == -1 {
			in.BatchSize = col.Len()
		} else if col.Len() != in.BatchSize {
			return nil, fmt.Errorf("feature %q has length %d, expected %d: %w",
				name, col.Len(), in.BatchSize, apperr.ErrBadInput)
		}
		in.Columns[name] = col
	}
	if in.BatchSize == -1 {
		in.BatchSize = 0
	}
	return in, nil
}

func parseColumn(raw json.RawMessage) (Column, error) {
	var values []json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return Column{}, fmt.Errorf("not an array: %w: %w", apperr.ErrBadInput, err)
	}
	if len(values) == 0 {
		return Column{Kind: KindFloat}, nil
	}

	kind, err := inferKind(values[0])
	if err != nil {
		return Column{}, err
	}

	col := Column{Kind: kind}
	for _, v := range values {
		switch kind {
		case KindInt:
			var i int64
			if err := json.Unmarshal(v, &i); err != nil {
				return Column{}, fmt.Errorf("mixed types in array: %w", apperr.ErrBadInput)
			}
			col.Ints = append(col.Ints, i)
		case KindFloat:
			var f float64
			if err := json.Unmarshal(v, &f); err != nil {
				return Column{}, fmt.Errorf("mixed types in array: %w", apperr.ErrBadInput)
			}
			col.Floats = append(col.Floats, f)
		case KindString:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return Column{}, fmt.Errorf("mixed types in array: %w", apperr.ErrBadInput)
			}
			col.Strings = append(col.Strings, s)
		}
	}
	return col, nil
}

func inferKind(first json.RawMessage) (Kind, error) {
	var s string
	if err := json.Unmarshal(first, &s); err == nil {
		return KindString, nil
	}
	var f float64
	if err := json.Unmarshal(first, &f); err == nil {
		// Integer-like means no fractional part or exponent in the
		// literal, not merely an integral value (1.0 stays a float).
		for _, r := range string(first) {
			if r == '.' || r == 'e' || r == 'E' {
				return KindFloat, nil
			}
		}
		return KindInt, nil
	}
	return 0, fmt.Errorf("unsupported element type %s: %w", string(first), apperr.ErrBadInput)
}

// NumericNames returns the feature names whose column is Int or Float,
// sorted lexicographically — the order the Torch adapter packs columns
// in (spec §4.C, Open Question 2).
func (in *Input) NumericNames() []string {
	var names []string
	for name, col := range in.Columns {
		if col.Kind == KindInt || col.Kind == KindFloat {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// StringNames returns the feature names whose column is a string
// column, sorted lexicographically.
func (in *Input) StringNames() []string {
	var names []string
	for name, col := range in.Columns {
		if col.Kind == KindString {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// FloatAt parses column[row] as float64 regardless of its stored Kind,
// used by every adapter to read numeric features; the LightGBM adapter
// also relies on it to accept string-encoded numerics. A string that
// does not parse as a number fails with apperr.ErrBadInput.
func (c Column) FloatAt(row int) (float64, error) {
	switch c.Kind {
	case KindFloat:
		return c.Floats[row], nil
	case KindInt:
		return float64(c.Ints[row]), nil
	case KindString:
		f, err := strconv.ParseFloat(c.Strings[row], 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to float: %w", c.Strings[row], apperr.ErrBadInput)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unknown column kind: %w", apperr.ErrBadInput)
}

// StringAt returns column[row] rendered as a string, used by adapters
// that need categorical levels regardless of the column's parsed Kind.
func (c Column) StringAt(row int) string {
	switch c.Kind {
	case KindString:
		return c.Strings[row]
	case KindInt:
		return strconv.FormatInt(c.Ints[row], 10)
	case KindFloat:
		return strconv.FormatFloat(c.Floats[row], 'g', -1, 64)
	}
	return ""
}

// Schema returns the feature names and the array length for each,
// sufficient to round-trip the shape of the original JSON input
// (spec §8 invariant 4) without re-encoding values.
func (in *Input) Schema() map[string]int {
	out := make(map[string]int, len(in.Columns))
	for name, col := range in.Columns {
		out[name] = col.Len()
	}
	return out
}
