package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/stubdecode/internal/survey"
)

// Options controls aggregation of decoded estimates.
type Options struct {
	// GroupBy lists the columns forming a group key, e.g. Gender, Race.
	GroupBy []string
	// SEColumn holds the standard error; empty or absent skips SE means.
	SEColumn string
	// MaxGroups caps the groups kept in the report; 0 keeps all.
	MaxGroups int
}

// DefaultOptions returns reasonable defaults for NCHS exports.
func DefaultOptions() Options {
	return Options{SEColumn: "SE"}
}

// Report summarizes the valid estimates of a decoded partition.
type Report struct {
	Name     string
	Estimate string
	Valid    int
	Invalid  int
	Overall  NumSummary
	Groups   []GroupResult
	Warnings []string
}

// NumSummary holds running statistics over one numeric column.
type NumSummary struct {
	Count          int
	Min, Max, Mean float64
	Median         float64
	Std            float64
}

// GroupResult aggregates the estimates sharing one group key.
type GroupResult struct {
	// Key is for display only; distinct groups may render the same Key.
	Key     string
	Values  []string
	// Missing marks which Values were null cells.
	Missing []bool
	Size    int
	Stats   NumSummary
	// MeanSE is the mean standard error; NaN when no SE was available.
	MeanSE  float64
}

// welford accumulates mean and variance in one pass.
type welford struct {
	n        int
	mean, m2 float64
	min, max float64
	vals     []float64
}

func newWelford() *welford { return &welford{min: math.Inf(1), max: math.Inf(-1)} }

func (w *welford) add(x float64) {
	w.n++
	if x < w.min {
		w.min = x
	}
	if x > w.max {
		w.max = x
	}
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
	w.vals = append(w.vals, x)
}

func (w *welford) summary() NumSummary {
	if w.n == 0 {
		return NumSummary{}
	}
	s := NumSummary{Count: w.n, Min: w.min, Max: w.max, Mean: w.mean}
	if w.n > 1 {
		s.Std = math.Sqrt(w.m2 / float64(w.n-1))
	}
	sorted := make([]float64, len(w.vals))
	copy(sorted, w.vals)
	sort.Float64s(sorted)
	s.Median = quantile(sorted, 0.5)
	return s
}

// Analyze aggregates the valid rows of part. Invalid rows only count
// toward Report.Invalid; they never enter a statistic.
func Analyze(part *survey.Partition, opt Options) (*Report, error) {
	valid := part.Valid
	est := part.Policy.EstimateColumn
	if _, err := valid.ColumnIndex(est); err != nil {
		return nil, err
	}
	for _, g := range opt.GroupBy {
		if _, err := valid.ColumnIndex(g); err != nil {
			return nil, err
		}
	}
	hasSE := opt.SEColumn != "" && valid.HasColumn(opt.SEColumn)

	rep := &Report{Name: valid.Name, Estimate: est, Valid: valid.Len(), Invalid: part.Invalid.Len()}
	overall := newWelford()
	type gAcc struct {
		display string
		values  []string
		missing []bool
		est     *welford
		seSum   float64
		seCnt   int
	}
	groups := map[string]*gAcc{}
	for i := 0; i < valid.Len(); i++ {
		x, ok, _ := valid.Number(i, est)
		if !ok {
			// Classify already rejected these; guard against a hand-built partition.
			return nil, fmt.Errorf("row %d: estimate is not numeric", i+1)
		}
		overall.add(x)
		if len(opt.GroupBy) == 0 {
			continue
		}
		var raw strings.Builder
		for _, g := range opt.GroupBy {
			v, _ := valid.Value(i, g)
			raw.WriteString(groupKeyPart(v))
		}
		key := raw.String()
		ga := groups[key]
		if ga == nil {
			values := make([]string, len(opt.GroupBy))
			missing := make([]bool, len(opt.GroupBy))
			parts := make([]string, len(opt.GroupBy))
			for k, g := range opt.GroupBy {
				v, _ := valid.Value(i, g)
				values[k] = v.String()
				if v.IsNull() {
					values[k] = "(missing)"
					missing[k] = true
				}
				parts[k] = fmt.Sprintf("%s=%s", g, safeVal(values[k]))
			}
			ga = &gAcc{display: strings.Join(parts, " | "), values: values, missing: missing, est: newWelford()}
			groups[key] = ga
		}
		ga.est.add(x)
		if hasSE {
			if se, ok, _ := valid.Number(i, opt.SEColumn); ok {
				ga.seSum += se
				ga.seCnt++
			}
		}
	}
	rep.Overall = overall.summary()

	if len(groups) > 0 {
		raws := make([]string, 0, len(groups))
		for k := range groups {
			raws = append(raws, k)
		}
		sort.Slice(raws, func(i, j int) bool {
			a, b := groups[raws[i]], groups[raws[j]]
			if a.est.n != b.est.n {
				return a.est.n > b.est.n
			}
			if a.display != b.display {
				return a.display < b.display
			}
			return raws[i] < raws[j]
		})
		out := make([]GroupResult, 0, len(groups))
		for _, k := range raws {
			ga := groups[k]
			gr := GroupResult{Key: ga.display, Values: ga.values, Missing: ga.missing, Size: ga.est.n, Stats: ga.est.summary(), MeanSE: math.NaN()}
			if ga.seCnt > 0 {
				gr.MeanSE = ga.seSum / float64(ga.seCnt)
			}
			out = append(out, gr)
		}
		if opt.MaxGroups > 0 && len(out) > opt.MaxGroups {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("showing %d of %d groups", opt.MaxGroups, len(out)))
			out = out[:opt.MaxGroups]
		}
		rep.Groups = out
	}
	if rep.Invalid > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d rows excluded: estimate missing or flagged", rep.Invalid))
	}
	return rep, nil
}

// Markdown renders a compact report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DECODED SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d valid, %d excluded\n", r.Valid, r.Invalid))
	if r.Overall.Count > 0 {
		o := r.Overall
		b.WriteString(fmt.Sprintf("%s: mean %.4g, median %.4g, min %.4g, max %.4g, std %.4g\n", r.Estimate, o.Mean, o.Median, o.Min, o.Max, o.Std))
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUPS]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d): mean %.4g (min %.4g, max %.4g)", g.Key, g.Size, g.Stats.Mean, g.Stats.Min, g.Stats.Max))
			if !math.IsNaN(g.MeanSE) {
				b.WriteString(fmt.Sprintf("; mean SE %.3g", g.MeanSE))
			}
			b.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// groupKeyPart encodes one grouping cell so that null, and texts that
// render alike, stay distinct.
func groupKeyPart(v survey.Value) string {
	if v.IsNull() {
		return "\x00\x1f"
	}
	return "\x01" + strconv.Quote(v.String()) + "\x1f"
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
