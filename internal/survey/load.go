package survey

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadOptions controls how a delimited export is read.
type LoadOptions struct {
	// Delimiter for the file. If 0, picked from the extension (.tsv -> tab, else comma).
	Delimiter rune
	// Number parsing locale; zero separators are auto-detected per value.
	Format NumberFormat
	// NullTokens are cell texts read as missing values (compared after trimming).
	NullTokens []string
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
}

// DefaultLoadOptions returns the null vocabulary pandas applies to these exports.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		NullTokens: []string{"", "NA", "NaN", "nan", "N/A", "null"},
	}
}

// Load reads a delimited file into a Table named after the file.
func Load(path string, opt LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	return Read(f, filepath.Base(path), opt)
}

// Read parses delimited text from r. The first record is the header.
func Read(r io.Reader, name string, opt LoadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Table: name, Reason: "empty file, no header"}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	// Strip a UTF-8 BOM that spreadsheet exports often prepend.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	nulls := make(map[string]struct{}, len(opt.NullTokens))
	for _, tok := range opt.NullTokens {
		nulls[strings.TrimSpace(tok)] = struct{}{}
	}
	var rows [][]Value
	for {
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			break
		}
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make([]Value, len(rec))
		for j, cell := range rec {
			s := strings.TrimSpace(cell)
			if _, isNull := nulls[s]; isNull {
				continue
			}
			row[j] = Text(s)
		}
		rows = append(rows, row)
	}
	t, err := NewTable(name, header, rows)
	if err != nil {
		return nil, err
	}
	t.format = opt.Format
	return t, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
