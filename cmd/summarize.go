package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/stubdecode/internal/analysis"
	"github.com/KaramelBytes/stubdecode/internal/utils"
)

var (
	sumSlice      sliceFlags
	sumInput      inputFlags
	sumGroupBy    []string
	sumSEColumn   string
	sumMaxGroups  int
	sumOutputPath string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Decode a slice and summarize its valid estimates by group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		t, err := sumInput.load(c, args[0])
		if err != nil {
			return err
		}
		run, err := sumSlice.run(c, t, args[0], cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		opt.GroupBy = sumGroupBy
		if len(opt.GroupBy) == 0 {
			opt.GroupBy = run.Decoded.Lookup.Fields
		}
		if cmd.Flags().Changed("se-column") {
			opt.SEColumn = sumSEColumn
		}
		opt.MaxGroups = sumMaxGroups
		rep, err := analysis.Analyze(run.Part, opt)
		if err != nil {
			return err
		}
		md := rep.Markdown()
		if sumOutputPath != "" {
			if err := utils.SafeWriteFile(sumOutputPath, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote summary to %s\n", sumOutputPath)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	sumSlice.register(summarizeCmd)
	sumInput.register(summarizeCmd)
	summarizeCmd.Flags().StringSliceVar(&sumGroupBy, "group-by", nil, "columns to group by (default: the lookup's fields)")
	summarizeCmd.Flags().StringVar(&sumSEColumn, "se-column", "SE", "standard error column; empty disables")
	summarizeCmd.Flags().IntVar(&sumMaxGroups, "max-groups", 0, "keep at most this many groups (0 = all)")
	summarizeCmd.Flags().StringVarP(&sumOutputPath, "output", "o", "", "write the markdown summary to a file")
}
