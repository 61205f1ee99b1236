package survey

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// QualityPolicy decides whether a row's estimate may be aggregated.
type QualityPolicy struct {
	EstimateColumn string
	FlagColumn     string
	// NoSuppression lists flag texts meaning "no footnote". A null flag
	// always means no footnote.
	NoSuppression []string
}

// DefaultQualityPolicy uses the ESTIMATE/FLAG columns with "." as the
// no-footnote sentinel.
func DefaultQualityPolicy() QualityPolicy {
	return QualityPolicy{EstimateColumn: "ESTIMATE", FlagColumn: "FLAG", NoSuppression: []string{"."}}
}

// Partition splits rows into those safe to aggregate and the rest.
type Partition struct {
	Valid   *Table
	Invalid *Table
	// Reasons holds one warning per invalid row, in row order. Row numbers
	// are 1-based positions in the classified table.
	Reasons []*SuppressedValueWarning
	Policy  QualityPolicy
}

// Warnings folds the suppression reasons into one error, or nil.
func (p *Partition) Warnings() error {
	var merr *multierror.Error
	for _, w := range p.Reasons {
		merr = multierror.Append(merr, w)
	}
	return merr.ErrorOrNil()
}

// Classify partitions t. A row is invalid when its estimate is null or
// non-numeric, or its flag is present and not a no-suppression sentinel.
// A table without the flag column carries no flags.
func (p QualityPolicy) Classify(t *Table) (*Partition, error) {
	if _, err := t.ColumnIndex(p.EstimateColumn); err != nil {
		return nil, err
	}
	hasFlag := p.FlagColumn != "" && t.HasColumn(p.FlagColumn)
	noFootnote := make(map[string]bool, len(p.NoSuppression))
	for _, s := range p.NoSuppression {
		noFootnote[s] = true
	}
	part := &Partition{Policy: p}
	valid := make([]bool, t.Len())
	for i := 0; i < t.Len(); i++ {
		reason := ""
		est, _ := t.Value(i, p.EstimateColumn)
		if est.IsNull() {
			reason = "estimate missing"
		} else if _, ok, _ := t.Number(i, p.EstimateColumn); !ok {
			reason = fmt.Sprintf("estimate %q is not numeric", est.String())
		}
		if hasFlag {
			flag, _ := t.Value(i, p.FlagColumn)
			if !flag.IsNull() && !noFootnote[flag.String()] {
				if reason != "" {
					reason += "; "
				}
				reason += fmt.Sprintf("suppression flag %q", flag.String())
			}
		}
		if reason == "" {
			valid[i] = true
			continue
		}
		part.Reasons = append(part.Reasons, &SuppressedValueWarning{Row: i + 1, Reason: reason})
	}
	part.Valid = t.Filter(func(i int) bool { return valid[i] })
	part.Invalid = t.Filter(func(i int) bool { return !valid[i] })
	return part, nil
}
