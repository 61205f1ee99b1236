package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/stubdecode/internal/survey"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "reject", c.ConflictPolicy)
	assert.Equal(t, survey.ConflictReject, c.Policy())
	assert.Equal(t, []string{"."}, c.FlagSentinels)
	assert.Equal(t, "ESTIMATE", c.EstimateColumn)
	assert.Equal(t, "table", c.OutputFormat)

	q := c.Quality()
	assert.Equal(t, survey.DefaultQualityPolicy(), q)
	assert.Equal(t, survey.DefaultLoadOptions(), c.LoadOptions())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	in := &Global{
		ConflictPolicy: "last-wins",
		EstimateColumn: "ESTIMATE",
		FlagColumn:     "FLAG",
		FlagSentinels:  []string{".", "-"},
		Delimiter:      "tab",
		Decimal:        ",",
		Thousands:      ".",
		OutputFormat:   "csv",
		LogLevel:       "info",
	}
	require.NoError(t, Save(in, p))

	out, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, survey.ConflictLastWins, out.Policy())
	assert.Equal(t, []string{".", "-"}, out.Quality().NoSuppression)
	opt := out.LoadOptions()
	assert.Equal(t, '\t', opt.Delimiter)
	assert.Equal(t, ',', opt.Format.Decimal)
	assert.Equal(t, '.', opt.Format.Thousands)
}

func TestEnvOverridesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("estimate_column: PCT\n"), 0o644))
	t.Setenv("STUBDECODE_ESTIMATE_COLUMN", "VALUE")
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "VALUE", c.EstimateColumn)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"policy":    "conflict_policy: first-wins\n",
		"delimiter": "delimiter: ';;'\n",
		"max_rows":  "max_rows: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
			_, err := Load(p)
			assert.Error(t, err)
		})
	}
}
