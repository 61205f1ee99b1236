package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/stubdecode/internal/config"
	"github.com/KaramelBytes/stubdecode/internal/export"
	"github.com/KaramelBytes/stubdecode/internal/survey"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set stubdecode configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "conflict_policy: %s\n", cfg.Policy())
		fmt.Fprintf(w, "estimate_column: %s\n", cfg.EstimateColumn)
		fmt.Fprintf(w, "flag_column: %s\n", cfg.FlagColumn)
		fmt.Fprintf(w, "flag_sentinels: %s\n", quoteList(cfg.FlagSentinels))
		fmt.Fprintf(w, "null_tokens: %s\n", quoteList(cfg.NullTokens))
		if cfg.Delimiter != "" {
			fmt.Fprintf(w, "delimiter: %q\n", cfg.Delimiter)
		}
		if cfg.Decimal != "" {
			fmt.Fprintf(w, "decimal: %q\n", cfg.Decimal)
		}
		if cfg.Thousands != "" {
			fmt.Fprintf(w, "thousands: %q\n", cfg.Thousands)
		}
		if cfg.MaxRows > 0 {
			fmt.Fprintf(w, "max_rows: %d\n", cfg.MaxRows)
		}
		if cfg.LookupDir != "" {
			fmt.Fprintf(w, "lookup_dir: %s\n", cfg.LookupDir)
		}
		fmt.Fprintf(w, "output_format: %s\n", cfg.OutputFormat)
		fmt.Fprintf(w, "log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk. List values (flag_sentinels, null_tokens)
are comma separated; an empty string clears them.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := requireConfig()
		if err != nil {
			return err
		}
		next := *c
		switch key {
		case "conflict_policy":
			p, err := survey.ParseConflictPolicy(val)
			if err != nil {
				return err
			}
			next.ConflictPolicy = p.String()
		case "estimate_column":
			if strings.TrimSpace(val) == "" {
				return fmt.Errorf("estimate_column cannot be empty")
			}
			next.EstimateColumn = val
		case "flag_column":
			next.FlagColumn = val
		case "flag_sentinels":
			next.FlagSentinels = splitList(val)
		case "null_tokens":
			next.NullTokens = splitList(val)
		case "delimiter":
			next.Delimiter = val
		case "decimal":
			next.Decimal = val
		case "thousands":
			next.Thousands = val
		case "max_rows":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for max_rows: %w", err)
			}
			next.MaxRows = i
		case "lookup_dir":
			next.LookupDir = val
		case "output_format":
			f, err := export.ParseFormat(val)
			if err != nil {
				return err
			}
			next.OutputFormat = string(f)
		case "log_level":
			switch strings.ToLower(val) {
			case "debug", "info", "warn", "error":
				next.LogLevel = strings.ToLower(val)
			default:
				return fmt.Errorf("invalid log_level: %s (use debug, info, warn, or error)", val)
			}
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func quoteList(vals []string) string {
	q := make([]string, len(vals))
	for i, v := range vals {
		q[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(q, ", ") + "]"
}
