package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/stubdecode/internal/config"
	"github.com/KaramelBytes/stubdecode/internal/survey"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
	// Logger for library components; warn level unless --debug or log_level says otherwise.
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

var rootCmd = &cobra.Command{
	Use:   "stubdecode",
	Short: "Decode NHANES/BRFSS coded survey tables into labeled datasets",
	Long: `stubdecode reads NCHS "Health, United States" style exports, extracts the
code/label dictionaries of their paired columns, selects cross-tabulation
slices by numeric code, and splits packed stub label codes into semantic
columns (Gender, Race, Age, Poverty) using versioned lookup tables.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.stubdecode/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands that need config call requireConfig and report the error
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c
	logger = newLogger(os.Stderr, cfg.LogLevel, debug)
}

// requireConfig returns the loaded configuration, retrying the load so the
// original error surfaces.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

func newLogger(w io.Writer, level string, debug bool) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// loadRegistry returns the built-in lookup tables overlaid with lookup_dir.
func loadRegistry(c *cfgpkg.Global) (*survey.Registry, error) {
	reg, err := survey.BuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("load built-in lookups: %w", err)
	}
	if c.LookupDir != "" {
		if err := reg.LoadDir(c.LookupDir); err != nil {
			return nil, fmt.Errorf("load lookups from %s: %w", c.LookupDir, err)
		}
		logger.Debug("loaded lookup dir", "dir", c.LookupDir, "tables", len(reg.Names()))
	}
	return reg, nil
}
