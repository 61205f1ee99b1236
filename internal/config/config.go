package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/stubdecode/internal/survey"
)

// Global configuration structure.
type Global struct {
	// Mapping extraction
	ConflictPolicy string `mapstructure:"conflict_policy" yaml:"conflict_policy"`

	// Quality policy
	EstimateColumn string   `mapstructure:"estimate_column" yaml:"estimate_column"`
	FlagColumn     string   `mapstructure:"flag_column" yaml:"flag_column"`
	FlagSentinels  []string `mapstructure:"flag_sentinels" yaml:"flag_sentinels"`

	// Loading
	NullTokens []string `mapstructure:"null_tokens" yaml:"null_tokens"`
	Delimiter  string   `mapstructure:"delimiter" yaml:"delimiter"`
	Decimal    string   `mapstructure:"decimal" yaml:"decimal"`
	Thousands  string   `mapstructure:"thousands" yaml:"thousands"`
	MaxRows    int      `mapstructure:"max_rows" yaml:"max_rows"`

	// Extra lookup tables (*.yaml) layered over the built-in ones
	LookupDir string `mapstructure:"lookup_dir" yaml:"lookup_dir"`

	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
}

// Dir returns ~/.stubdecode.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".stubdecode"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.stubdecode/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("STUBDECODE")
	v.AutomaticEnv()

	def := survey.DefaultQualityPolicy()
	v.SetDefault("conflict_policy", survey.ConflictReject.String())
	v.SetDefault("estimate_column", def.EstimateColumn)
	v.SetDefault("flag_column", def.FlagColumn)
	v.SetDefault("flag_sentinels", def.NoSuppression)
	v.SetDefault("null_tokens", survey.DefaultLoadOptions().NullTokens)
	v.SetDefault("delimiter", "")
	v.SetDefault("decimal", "")
	v.SetDefault("thousands", "")
	v.SetDefault("max_rows", 0)
	v.SetDefault("lookup_dir", "")
	v.SetDefault("output_format", "table")
	v.SetDefault("log_level", "warn")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values that cannot be turned into runtime options.
func (c *Global) Validate() error {
	if _, err := survey.ParseConflictPolicy(c.ConflictPolicy); err != nil {
		return fmt.Errorf("conflict_policy: %w", err)
	}
	for key, s := range map[string]string{"delimiter": c.Delimiter, "decimal": c.Decimal, "thousands": c.Thousands} {
		if _, err := singleRune(s); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must be >= 0, got %d", c.MaxRows)
	}
	return nil
}

// Policy returns the configured conflict policy.
func (c *Global) Policy() survey.ConflictPolicy {
	p, _ := survey.ParseConflictPolicy(c.ConflictPolicy)
	return p
}

// Quality returns the configured missing/flag policy.
func (c *Global) Quality() survey.QualityPolicy {
	sentinels := make([]string, len(c.FlagSentinels))
	copy(sentinels, c.FlagSentinels)
	return survey.QualityPolicy{EstimateColumn: c.EstimateColumn, FlagColumn: c.FlagColumn, NoSuppression: sentinels}
}

// LoadOptions returns the configured table loading options.
func (c *Global) LoadOptions() survey.LoadOptions {
	opt := survey.DefaultLoadOptions()
	opt.Delimiter, _ = singleRune(c.Delimiter)
	opt.Format.Decimal, _ = singleRune(c.Decimal)
	opt.Format.Thousands, _ = singleRune(c.Thousands)
	if c.NullTokens != nil {
		opt.NullTokens = c.NullTokens
	}
	opt.MaxRows = c.MaxRows
	return opt
}

// singleRune parses "" (auto), a single character, or "\t"/"tab".
func singleRune(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("expected a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
