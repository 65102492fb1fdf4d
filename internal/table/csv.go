package table

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format describes how a table is laid out as delimited text.
type Format struct {
	Delimiter rune
	// wrap every cell in double quotes when saving
	Quote   bool
	Newline string
}

var DefaultFormat = Format{Delimiter: ',', Quote: true, Newline: "\n"}

// Load reads a header line followed by data lines. Every data line must
// have as many cells as the header.
func Load(r io.Reader, f Format) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = f.Delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header line")
	}
	if err != nil {
		return nil, err
	}

	t, err := New(header)
	if err != nil {
		return nil, err
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if _, err := t.Append(record); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Save writes the header followed by every row, taking the read lock for
// the duration.
func (t *Table) Save(w io.Writer, f Format) error {
	t.locker.RLock()
	defer t.locker.RUnlock()

	bw := bufio.NewWriter(w)
	if err := writeLine(bw, t.Columns.Sorted, f); err != nil {
		return err
	}
	rows, err := t.Rows()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeLine(bw, row.Cells, f); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeLine(w *bufio.Writer, cells []string, f Format) error {
	for i, cell := range cells {
		if i > 0 {
			if _, err := w.WriteRune(f.Delimiter); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(formatCell(cell, f)); err != nil {
			return err
		}
	}
	_, err := w.WriteString(f.Newline)
	return err
}

func formatCell(cell string, f Format) string {
	needs_quote := f.Quote ||
		strings.ContainsRune(cell, f.Delimiter) ||
		strings.ContainsAny(cell, "\"\r\n")
	if !needs_quote {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}
