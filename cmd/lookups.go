package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/stubdecode/internal/export"
	"github.com/KaramelBytes/stubdecode/internal/survey"
)

var lookupsFormat string

var lookupsCmd = &cobra.Command{
	Use:   "lookups",
	Short: "List registered stub label lookup tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(firstNonEmpty(lookupsFormat, c.OutputFormat))
		if err != nil {
			return err
		}
		reg, err := loadRegistry(c)
		if err != nil {
			return err
		}
		var rows [][]survey.Value
		for _, lt := range reg.List() {
			rows = append(rows, []survey.Value{
				survey.Text(lt.Name),
				survey.Text(strconv.Itoa(lt.Version)),
				survey.Text(lt.Column),
				survey.Text(strings.Join(lt.Fields, ", ")),
				survey.Text(describeKey(lt.Slice)),
				survey.Text(strconv.Itoa(len(lt.Entries))),
				survey.Text(verified(lt)),
				survey.Text(lt.Source),
			})
		}
		t, err := survey.NewTable("lookups", []string{"name", "version", "column", "fields", "slice", "codes", "verified", "source"}, rows)
		if err != nil {
			return err
		}
		return export.Render(cmd.OutOrStdout(), t, format, nil)
	},
}

var lookupsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the code entries of a lookup table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(firstNonEmpty(lookupsFormat, c.OutputFormat))
		if err != nil {
			return err
		}
		reg, err := loadRegistry(c)
		if err != nil {
			return err
		}
		lt, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		cols := append([]string{lt.Column}, lt.Fields...)
		rows := make([][]survey.Value, 0, len(lt.Entries))
		for _, e := range lt.Entries {
			row := []survey.Value{survey.Text(strconv.FormatFloat(e.Code, 'f', -1, 64))}
			for _, f := range lt.Fields {
				if l, ok := e.Labels[f]; ok {
					row = append(row, survey.Text(l))
				} else {
					row = append(row, survey.Null())
				}
			}
			rows = append(rows, row)
		}
		t, err := survey.NewTable(lt.Name, cols, rows)
		if err != nil {
			return err
		}
		return export.Render(cmd.OutOrStdout(), t, format, nil)
	},
}

// describeKey renders a slice key as UNIT_NUM=1 YEAR_NUM=10 ...
func describeKey(k survey.Key) string {
	conds := k.Conditions()
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(lookupsCmd)
	lookupsCmd.AddCommand(lookupsShowCmd)
	lookupsCmd.PersistentFlags().StringVar(&lookupsFormat, "format", "", "output format: table|csv|json|md")
}

func verified(lt *survey.LookupTable) string {
	if lt.Unverified {
		return "no"
	}
	return "yes"
}
