package survey

import (
	"io"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Decoder expands packed code columns into semantic columns.
type Decoder struct {
	Logger *slog.Logger
}

// NewDecoder returns a decoder logging to logger (nil discards).
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = discardLogger
	}
	return &Decoder{Logger: logger}
}

// Decoded is an owned copy of a slice with derived columns appended.
type Decoded struct {
	Table  *Table
	Lookup *LookupTable
	Slice  string
	// RunID tags this decode in logs and exports.
	RunID string
	// NullCodes counts rows whose code cell was empty.
	NullCodes int

	unmapped  []*UnmappedCodeWarning
	malformed []*MalformedCodeWarning
}

// Unmapped returns one warning per code absent from the lookup, by code.
func (d *Decoded) Unmapped() []*UnmappedCodeWarning {
	out := make([]*UnmappedCodeWarning, len(d.unmapped))
	copy(out, d.unmapped)
	return out
}

// Malformed returns one warning per non-numeric code text, by text.
func (d *Decoded) Malformed() []*MalformedCodeWarning {
	out := make([]*MalformedCodeWarning, len(d.malformed))
	copy(out, d.malformed)
	return out
}

// Warnings folds the malformed and unmapped code warnings into one error,
// or nil.
func (d *Decoded) Warnings() error {
	var merr *multierror.Error
	for _, w := range d.malformed {
		merr = multierror.Append(merr, w)
	}
	for _, w := range d.unmapped {
		merr = multierror.Append(merr, w)
	}
	return merr.ErrorOrNil()
}

// Decode copies s and appends one column per lookup field. A code with no
// entry, or a code cell that is not a number, yields null in every derived
// field; the row is kept and a warning recorded.
func (d *Decoder) Decode(s *Slice, lt *LookupTable) (*Decoded, error) {
	logger := d.Logger
	if logger == nil {
		logger = discardLogger
	}
	src := s.Table()
	if _, err := src.ColumnIndex(lt.Column); err != nil {
		return nil, err
	}
	for _, f := range lt.Fields {
		if src.HasColumn(f) {
			return nil, &SchemaError{Table: src.Name, Column: f, Reason: "derived column already exists"}
		}
	}

	// The slice is a view into src; derive columns on an explicit copy.
	owned := s.Copy()
	codes := make([]float64, owned.Len())
	known := make([]bool, owned.Len())
	out := &Decoded{Lookup: lt, Slice: s.String(), RunID: uuid.NewString()}
	missing := map[float64]int{}
	bad := map[string]int{}
	for i := 0; i < owned.Len(); i++ {
		v, _ := owned.Value(i, lt.Column)
		if v.IsNull() {
			out.NullCodes++
			continue
		}
		x, ok := owned.format.Parse(v.String())
		if !ok {
			bad[v.String()]++
			continue
		}
		codes[i] = x
		if _, ok := lt.Labels(x); ok {
			known[i] = true
		} else {
			missing[x]++
		}
	}

	for _, field := range lt.Fields {
		owned = owned.WithColumn(field, func(i int) Value {
			if !known[i] {
				return Null()
			}
			labels, _ := lt.Labels(codes[i])
			if l, ok := labels[field]; ok {
				return Text(l)
			}
			return Null()
		})
	}
	out.Table = owned

	unmappedCodes := make([]float64, 0, len(missing))
	for c := range missing {
		unmappedCodes = append(unmappedCodes, c)
	}
	sort.Float64s(unmappedCodes)
	for _, c := range unmappedCodes {
		out.unmapped = append(out.unmapped, &UnmappedCodeWarning{Lookup: lt.Name, Column: lt.Column, Code: c, Rows: missing[c]})
	}
	badTexts := make([]string, 0, len(bad))
	for txt := range bad {
		badTexts = append(badTexts, txt)
	}
	sort.Strings(badTexts)
	for _, txt := range badTexts {
		out.malformed = append(out.malformed, &MalformedCodeWarning{Lookup: lt.Name, Column: lt.Column, Text: txt, Rows: bad[txt]})
	}
	if lt.Unverified {
		logger.Warn("lookup codes are unverified", "lookup", lt.Name, "version", lt.Version)
	}
	logger.Debug("decoded slice",
		"run", out.RunID,
		"slice", out.Slice,
		"lookup", lt.Name,
		"version", lt.Version,
		"rows", owned.Len(),
		"unmapped_codes", len(out.unmapped),
		"null_codes", out.NullCodes,
		"malformed_codes", len(out.malformed))
	return out, nil
}
