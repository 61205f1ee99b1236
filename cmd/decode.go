package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/stubdecode/internal/config"
	"github.com/KaramelBytes/stubdecode/internal/export"
	"github.com/KaramelBytes/stubdecode/internal/survey"
)

// sliceFlags select and decode one cross-tabulation.
type sliceFlags struct {
	lookup   string
	unit     string
	year     string
	stubName string
	panel    string
	policy   string
	midYear  bool
}

func (f *sliceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.lookup, "lookup", "", "lookup table used to split STUB_LABEL_NUM (see 'stubdecode lookups')")
	cmd.Flags().StringVar(&f.unit, "unit", "", "UNIT_NUM code or UNIT label (default: lookup's slice)")
	cmd.Flags().StringVar(&f.year, "year", "", "YEAR_NUM code or YEAR label, e.g. 10 or 2015-2018 (default: lookup's slice)")
	cmd.Flags().StringVar(&f.stubName, "stub-name", "", "STUB_NAME_NUM code or STUB_NAME label (default: lookup's slice)")
	cmd.Flags().StringVar(&f.panel, "panel", "", "restrict to one PANEL_NUM code or PANEL label")
	cmd.Flags().StringVar(&f.policy, "conflict-policy", "", "reject|last-wins when resolving labels (overrides config)")
	cmd.Flags().BoolVar(&f.midYear, "middle-year", false, "add a MiddleYear column from the YEAR labels (2015-2018 -> 2016)")
	_ = cmd.MarkFlagRequired("lookup")
}

// decodeRun is a decoded and classified slice.
type decodeRun struct {
	Source  string
	Decoded *survey.Decoded
	Part    *survey.Partition
}

// run loads the lookup, selects the slice from t and decodes it.
func (f *sliceFlags) run(c *cfgpkg.Global, t *survey.Table, source string, stderr io.Writer) (*decodeRun, error) {
	reg, err := loadRegistry(c)
	if err != nil {
		return nil, err
	}
	lt, err := reg.Get(f.lookup)
	if err != nil {
		return nil, err
	}
	policy := c.Policy()
	if f.policy != "" {
		if policy, err = survey.ParseConflictPolicy(f.policy); err != nil {
			return nil, err
		}
	}
	res := &codeResolver{t: t, opt: survey.MappingOptions{Policy: policy, Logger: logger}}

	var key survey.Key
	if key.Unit, err = res.resolve(survey.AxisUnit, f.unit); err != nil {
		return nil, err
	}
	if key.Year, err = res.resolve(survey.AxisYear, f.year); err != nil {
		return nil, err
	}
	if key.StubName, err = res.resolve(survey.AxisStubName, f.stubName); err != nil {
		return nil, err
	}
	key = key.Merge(lt.Slice)
	var extra []survey.Condition
	panel, err := res.resolve(survey.AxisPanel, f.panel)
	if err != nil {
		return nil, err
	}
	if panel != nil {
		extra = append(extra, survey.Condition{Column: survey.AxisPanel.CodeColumn, Code: *panel})
	}

	s, err := survey.SelectKey(t, key, extra...)
	if err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		fmt.Fprintf(stderr, "⚠ Warning: slice %s matched no rows\n", s)
	}
	d, err := survey.NewDecoder(logger).Decode(s, lt)
	if err != nil {
		return nil, err
	}
	for _, w := range d.Malformed() {
		fmt.Fprintf(stderr, "⚠ Warning: %v\n", w)
	}
	for _, w := range d.Unmapped() {
		fmt.Fprintf(stderr, "⚠ Warning: %v\n", w)
	}
	if f.midYear {
		years, err := res.codeMap(survey.AxisYear)
		if err != nil {
			return nil, err
		}
		mids, err := survey.MiddleYears(years)
		if err != nil {
			return nil, err
		}
		if d.Table, err = survey.WithMiddleYear(d.Table, mids); err != nil {
			return nil, err
		}
	}
	part, err := c.Quality().Classify(d.Table)
	if err != nil {
		return nil, err
	}
	logger.Info("decoded",
		"run", d.RunID,
		"source", source,
		"slice", d.Slice,
		"valid", part.Valid.Len(),
		"invalid", part.Invalid.Len())
	return &decodeRun{Source: source, Decoded: d, Part: part}, nil
}

// codeResolver turns flag values into codes, reading labels through the
// table's own code maps.
type codeResolver struct {
	t    *survey.Table
	opt  survey.MappingOptions
	maps map[string]*survey.CodeMap
}

func (r *codeResolver) codeMap(axis survey.Axis) (*survey.CodeMap, error) {
	if m, ok := r.maps[axis.Name]; ok {
		return m, nil
	}
	m, err := survey.ExtractCodeMap(r.t, axis, r.opt)
	if err != nil {
		return nil, err
	}
	if r.maps == nil {
		r.maps = map[string]*survey.CodeMap{}
	}
	r.maps[axis.Name] = m
	return m, nil
}

// resolve accepts a code or a label. A number that is not a known code
// but is a label ("2018" as a YEAR) resolves through the label.
func (r *codeResolver) resolve(axis survey.Axis, val string) (*float64, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	x, numErr := strconv.ParseFloat(val, 64)
	m, err := r.codeMap(axis)
	if err != nil {
		if numErr == nil {
			return survey.Code(x), nil
		}
		return nil, fmt.Errorf("resolve --%s %q: %w", strings.ReplaceAll(axis.Name, "_", "-"), val, err)
	}
	if numErr == nil {
		if _, known := m.Label(x); known {
			return survey.Code(x), nil
		}
	}
	if code, ok := m.Code(val); ok {
		return survey.Code(code), nil
	}
	if numErr == nil {
		return survey.Code(x), nil
	}
	return nil, fmt.Errorf("no %s code labeled %q", axis.Name, val)
}

var (
	decSlice      sliceFlags
	decInput      inputFlags
	decOnly       string
	decFormat     string
	decOutputPath string
	decDropCodes  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Select a slice of a coded table and add decoded label columns",
	Long: `Select the rows of one cross-tabulation (by UNIT_NUM, YEAR_NUM, STUB_NAME_NUM and
optionally PANEL_NUM) and split the packed STUB_LABEL_NUM code into the columns
of a lookup table. Rows whose estimate is missing or footnoted are partitioned
out; use --only to choose which side to write.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(firstNonEmpty(decFormat, c.OutputFormat))
		if err != nil {
			return err
		}
		t, err := decInput.load(c, args[0])
		if err != nil {
			return err
		}
		run, err := decSlice.run(c, t, args[0], cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		var out *survey.Table
		switch strings.ToLower(decOnly) {
		case "", "all":
			out = run.Decoded.Table
		case "valid":
			out = run.Part.Valid
		case "invalid":
			out = run.Part.Invalid
		default:
			return fmt.Errorf("invalid --only: %s (use valid, invalid, or all)", decOnly)
		}
		if decDropCodes {
			out = out.DropCodeColumns()
		}
		meta := export.MetaFor(run.Source, run.Decoded)
		meta.Partition = firstNonEmpty(strings.ToLower(decOnly), "all")
		if decOutputPath != "" {
			if err := export.WriteFile(decOutputPath, out, export.FormatForPath(decOutputPath, format), meta); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d rows to %s (%d valid, %d suppressed)\n",
				out.Len(), decOutputPath, run.Part.Valid.Len(), run.Part.Invalid.Len())
			return nil
		}
		return export.Render(cmd.OutOrStdout(), out, format, meta)
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decSlice.register(decodeCmd)
	decInput.register(decodeCmd)
	decodeCmd.Flags().StringVar(&decOnly, "only", "all", "rows to write: valid|invalid|all")
	decodeCmd.Flags().StringVar(&decFormat, "format", "", "output format: table|csv|json|md (default: config output_format)")
	decodeCmd.Flags().StringVarP(&decOutputPath, "output", "o", "", "write to file instead of stdout (format from extension)")
	decodeCmd.Flags().BoolVar(&decDropCodes, "drop-codes", false, "drop the *_NUM code columns from the output")
}
