package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/stubdecode/internal/config"
	"github.com/KaramelBytes/stubdecode/internal/survey"
)

// inputFlags are the table loading flags shared by data commands.
type inputFlags struct {
	delimiter  string
	maxRows    int
	sheetName  string
	sheetIndex int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "field delimiter: ',', ';', 'tab' (default: by extension)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "read at most this many data rows (0 = config/unlimited)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "worksheet name for .xlsx input")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 0, "1-based worksheet index for .xlsx input")
}

// load reads path as .xlsx or delimited text, applying flags over config.
func (f *inputFlags) load(c *cfgpkg.Global, path string) (*survey.Table, error) {
	opt := c.LoadOptions()
	if f.delimiter != "" {
		switch f.delimiter {
		case ",":
			opt.Delimiter = ','
		case "\t", "tab":
			opt.Delimiter = '\t'
		case ";":
			opt.Delimiter = ';'
		case "|":
			opt.Delimiter = '|'
		default:
			return nil, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
		}
	}
	if f.maxRows > 0 {
		opt.MaxRows = f.maxRows
	}
	var (
		t   *survey.Table
		err error
	)
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		t, err = survey.LoadXLSX(path, survey.Sheet{Name: f.sheetName, Index: f.sheetIndex}, opt)
	} else {
		t, err = survey.Load(path, opt)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded table", "path", path, "rows", t.Len(), "columns", len(t.Columns()))
	return t, nil
}
