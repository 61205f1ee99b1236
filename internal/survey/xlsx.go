package survey

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// Sheet selects a worksheet by name, or by 1-based index when Name is empty.
type Sheet struct {
	Name  string
	Index int
}

// LoadXLSX reads one worksheet of an .xlsx workbook into a Table. The first
// row is the header. Cells are read as text and go through the same null
// vocabulary as delimited files.
func LoadXLSX(p string, sheet Sheet, opt LoadOptions) (*Table, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb := &workbook{zr: zr}
	target, err := wb.resolve(sheet, filepath.Base(p))
	if err != nil {
		return nil, err
	}
	shared := parseSharedStrings(wb.file("xl/sharedStrings.xml"))
	rows := newSheetRows(wb.file(target), shared)

	name := filepath.Base(p)
	header, ok := rows.next()
	if !ok || len(header) == 0 {
		return nil, &SchemaError{Table: name, Reason: "worksheet has no header row"}
	}
	nulls := make(map[string]struct{}, len(opt.NullTokens))
	for _, tok := range opt.NullTokens {
		nulls[strings.TrimSpace(tok)] = struct{}{}
	}
	var data [][]Value
	for {
		if opt.MaxRows > 0 && len(data) >= opt.MaxRows {
			break
		}
		rec, ok := rows.next()
		if !ok {
			break
		}
		row := make([]Value, len(rec))
		for j, cell := range rec {
			s := strings.TrimSpace(cell)
			if _, isNull := nulls[s]; !isNull {
				row[j] = Text(s)
			}
		}
		data = append(data, row)
	}
	t, err := NewTable(name, header, data)
	if err != nil {
		return nil, err
	}
	t.format = opt.Format
	return t, nil
}

type workbook struct {
	zr *zip.Reader
}

func (wb *workbook) file(name string) []byte {
	for _, f := range wb.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

type sheetEntry struct {
	name string
	id   int
	rid  string
}

// resolve maps a Sheet selector to the worksheet's path inside the archive.
func (wb *workbook) resolve(sel Sheet, book string) (string, error) {
	sheets := parseWorkbook(wb.file("xl/workbook.xml"))
	rels := parseRelationships(wb.file("xl/_rels/workbook.xml.rels"))
	if sel.Name != "" {
		names := make([]string, len(sheets))
		for i, s := range sheets {
			names[i] = s.name
			if strings.EqualFold(s.name, sel.Name) {
				if rel, ok := rels[s.rid]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		return "", fmt.Errorf("sheet %q not found in workbook %s (available: %s)", sel.Name, book, strings.Join(names, ", "))
	}
	idx := sel.Index
	if idx <= 0 {
		idx = 1
	}
	for _, s := range sheets {
		if s.id != idx {
			continue
		}
		if rel, ok := rels[s.rid]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", idx), nil
}

// normalizeRelPath turns a relationship target into a zip entry name.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}

func parseWorkbook(data []byte) []sheetEntry {
	var out []sheetEntry
	eachStart(data, "sheet", func(se xml.StartElement) {
		var s sheetEntry
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.name = a.Value
			case "sheetId":
				s.id, _ = strconv.Atoi(a.Value)
			case "id":
				s.rid = a.Value
			}
		}
		out = append(out, s)
	})
	return out
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	eachStart(data, "Relationship", func(se xml.StartElement) {
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

// eachStart calls fn for every start element named local.
func eachStart(data []byte, local string, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == local {
			fn(se)
		}
	}
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inText = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inText {
				buf.Write(se)
			}
		}
	}
}

type sheetRows struct {
	dec    *xml.Decoder
	shared []string
}

func newSheetRows(data []byte, shared []string) *sheetRows {
	return &sheetRows{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// next returns the cells of the next <row>, placed by their A1 column.
func (r *sheetRows) next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow, row = true, nil
				continue
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			var ref, typ string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					ref = a.Value
				case "t":
					typ = a.Value
				}
			}
			col := columnIndex(ref)
			if col < 0 {
				col = len(row)
			}
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = r.cellValue(typ)
		case xml.EndElement:
			if inRow && se.Name.Local == "row" {
				return row, true
			}
		}
	}
}

// cellValue consumes tokens up to </c> and returns the cell text.
func (r *sheetRows) cellValue(typ string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, err := r.dec.Token()
					if err != nil {
						break
					}
					if end, ok := tk.(xml.EndElement); ok && (end.Name.Local == "v" || end.Name.Local == "t") {
						break
					}
					if cd, ok := tk.(xml.CharData); ok {
						sb.Write(cd)
					}
				}
				val = sb.String()
			}
		case xml.EndElement:
			if se.Name.Local != "c" {
				continue
			}
			if typ == "s" {
				idx, err := strconv.Atoi(strings.TrimSpace(val))
				if err != nil || idx < 0 || idx >= len(r.shared) {
					return ""
				}
				return r.shared[idx]
			}
			return val
		}
	}
}

// columnIndex converts the letters of an A1 reference to a 0-based column.
func columnIndex(ref string) int {
	idx := 0
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}
