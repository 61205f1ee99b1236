package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/stubdecode/internal/export"
	"github.com/KaramelBytes/stubdecode/internal/survey"
)

var (
	mapAxes       []string
	mapFormat     string
	mapOutputPath string
	mapPolicy     string
	mapInput      inputFlags
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings <file>",
	Short: "Print the code/label dictionaries of a coded table",
	Long: `Extract the distinct (code, label) pairs of each paired axis column
(PANEL/PANEL_NUM, UNIT/UNIT_NUM, STUB_NAME/STUB_NAME_NUM, STUB_LABEL/STUB_LABEL_NUM,
YEAR/YEAR_NUM, AGE/AGE_NUM). Year codes also show the middle year of their range.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		policy := c.Policy()
		if mapPolicy != "" {
			if policy, err = survey.ParseConflictPolicy(mapPolicy); err != nil {
				return err
			}
		}
		format, err := export.ParseFormat(firstNonEmpty(mapFormat, c.OutputFormat))
		if err != nil {
			return err
		}
		var axes []survey.Axis
		for _, name := range mapAxes {
			a, ok := survey.AxisByName(name)
			if !ok {
				return fmt.Errorf("unknown axis %q (expected panel, unit, stub_name, stub_label, year, or age)", name)
			}
			axes = append(axes, a)
		}

		t, err := mapInput.load(c, args[0])
		if err != nil {
			return err
		}
		maps, err := survey.ExtractMappings(t, survey.MappingOptions{Policy: policy, Logger: logger}, axes...)
		if err != nil {
			return err
		}
		if len(maps) == 0 {
			return fmt.Errorf("%s has no paired code/label columns", t.Name)
		}
		out, err := mappingsTable(maps)
		if err != nil {
			return err
		}
		if mapOutputPath != "" {
			if err := export.WriteFile(mapOutputPath, out, export.FormatForPath(mapOutputPath, format), nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d mappings to %s\n", out.Len(), mapOutputPath)
			return nil
		}
		return export.Render(cmd.OutOrStdout(), out, format, nil)
	},
}

// mappingsTable flattens code maps into axis, code, label, middle_year rows
// in standard axis order.
func mappingsTable(maps map[string]*survey.CodeMap) (*survey.Table, error) {
	names := make([]string, 0, len(maps))
	for n := range maps {
		names = append(names, n)
	}
	order := map[string]int{}
	for i, a := range survey.StandardAxes() {
		order[a.Name] = i
	}
	sort.Slice(names, func(i, j int) bool { return order[names[i]] < order[names[j]] })

	var rows [][]survey.Value
	for _, n := range names {
		m := maps[n]
		var mids map[float64]int
		if n == survey.AxisYear.Name {
			var err error
			if mids, err = survey.MiddleYears(m); err != nil {
				logger.Warn("year labels are not ranges", "err", err)
				mids = nil
			}
		}
		for _, code := range m.Codes() {
			label, _ := m.Label(code)
			mid := survey.Null()
			if y, ok := mids[code]; ok {
				mid = survey.Text(strconv.Itoa(y))
			}
			rows = append(rows, []survey.Value{
				survey.Text(n),
				survey.Text(strconv.FormatFloat(code, 'f', -1, 64)),
				survey.Text(label),
				mid,
			})
		}
	}
	return survey.NewTable("mappings", []string{"axis", "code", "label", "middle_year"}, rows)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.Flags().StringSliceVar(&mapAxes, "axis", nil, "axes to extract (default: all present)")
	mappingsCmd.Flags().StringVar(&mapFormat, "format", "", "output format: table|csv|json|md (default: config output_format)")
	mappingsCmd.Flags().StringVarP(&mapOutputPath, "output", "o", "", "write to file instead of stdout")
	mappingsCmd.Flags().StringVar(&mapPolicy, "conflict-policy", "", "reject|last-wins (overrides config)")
	mapInput.register(mappingsCmd)
}
