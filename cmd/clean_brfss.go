package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/stubdecode/internal/brfss"
	"github.com/KaramelBytes/stubdecode/internal/export"
	"github.com/KaramelBytes/stubdecode/internal/survey"
)

var (
	cbInput      inputFlags
	cbTopic      string
	cbQuestion   string
	cbFormat     string
	cbOutputPath string
	cbObesity    bool
)

var cleanBRFSSCmd = &cobra.Command{
	Use:   "clean-brfss <file>",
	Short: "Clean a BRFSS nutrition/physical activity export",
	Long: `Drop footnote and ID columns, rows without a location or value, and rows with
no demographic breakdown; fill missing Age/Gender/Race/Income cells with
"Missing Data". Use --topic and --question to keep one indicator.

With --obesity-totals the table is instead reduced to the adult obesity
question by state, with one Race/Ethnicity=Total row per state and year
holding the median value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(firstNonEmpty(cbFormat, c.OutputFormat))
		if err != nil {
			return err
		}
		t, err := cbInput.load(c, args[0])
		if err != nil {
			return err
		}
		if cbObesity {
			if cbTopic != "" {
				return fmt.Errorf("--obesity-totals cannot be combined with --topic")
			}
			out, err := brfss.ObesityByState(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ %d rows after adding state totals\n", out.Len())
			return writeBRFSS(cmd, out, format)
		}
		opt := brfss.DefaultOptions()
		opt.Logger = logger
		res, err := brfss.Clean(t, opt)
		if err != nil {
			return err
		}
		out := res.Table
		if cbTopic != "" {
			if out, err = brfss.FilterTopic(out, cbTopic, cbQuestion); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ %s\n", res.Summary())
		return writeBRFSS(cmd, out, format)
	},
}

func writeBRFSS(cmd *cobra.Command, out *survey.Table, format export.Format) error {
	if cbOutputPath != "" {
		if err := export.WriteFile(cbOutputPath, out, export.FormatForPath(cbOutputPath, format), nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d rows to %s\n", out.Len(), cbOutputPath)
		return nil
	}
	return export.Render(cmd.OutOrStdout(), out, format, nil)
}

func init() {
	rootCmd.AddCommand(cleanBRFSSCmd)
	cbInput.register(cleanBRFSSCmd)
	cleanBRFSSCmd.Flags().StringVar(&cbTopic, "topic", "", "keep rows of this Topic, e.g. \""+brfss.TopicPhysicalActivity+"\"")
	cleanBRFSSCmd.Flags().StringVar(&cbQuestion, "question", "", "with --topic, keep questions containing this text")
	cleanBRFSSCmd.Flags().StringVar(&cbFormat, "format", "", "output format: table|csv|json|md")
	cleanBRFSSCmd.Flags().BoolVar(&cbObesity, "obesity-totals", false, "keep adult obesity rows and add per-state median Total rows")
	cleanBRFSSCmd.Flags().StringVarP(&cbOutputPath, "output", "o", "", "write to file instead of stdout (format from extension)")
}
