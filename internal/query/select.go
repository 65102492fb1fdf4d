package query

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tobsdb/sqlair/internal/parser"
	"github.com/tobsdb/sqlair/internal/table"
	"github.com/tobsdb/sqlair/pkg"
)

// Selection is a copy of the selected cells, safe to use after the table
// lock is released.
type Selection struct {
	Columns []string
	Rows    [][]string
}

// Select scans t in row order. With the wait flag set, a scan that selects
// nothing is retried each time the table changes until something matches or
// ctx ends.
func Select(ctx context.Context, t *table.Table, s *parser.Select) (*Selection, error) {
	all := t.ColumnNames()
	columns := all
	idxs := make([]int, len(all))
	for i := range idxs {
		idxs[i] = i
	}
	if !s.All {
		var err error
		if idxs, err = columnIndexes(t, s.Columns); err != nil {
			return nil, err
		}
		columns = pkg.Transform(idxs, func(i int) string { return all[i] })
	}

	cond, err := newCondition(t, s.Where)
	if err != nil {
		return nil, err
	}

	scan := func() (*Selection, error) {
		rows, err := t.Rows()
		if err != nil {
			return nil, err
		}
		sel := &Selection{Columns: columns, Rows: [][]string{}}
		for _, row := range rows {
			if !cond.match(row) {
				continue
			}
			sel.Rows = append(sel.Rows, pkg.Transform(idxs, func(i int) string { return row.Cells[i] }))
		}
		return sel, nil
	}

	if !s.MustWait() {
		return pkg.RLockGet(t, scan)
	}

	t.GetLocker().Lock()
	defer t.GetLocker().Unlock()

	var sel *Selection
	var scanErr error
	err = t.Await(ctx, func() bool {
		sel, scanErr = scan()
		return scanErr != nil || len(sel.Rows) > 0
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return sel, nil
}

// Write prints a tab-separated header, one line per row and the row count.
// The header is printed even when no row was selected, so an empty result
// still shows which columns were asked for.
func (s *Selection) Write(w io.Writer) error {
	b := strings.Builder{}
	b.WriteString(strings.Join(s.Columns, "\t"))
	b.WriteByte('\n')
	for _, row := range s.Rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d row(s) selected.\n", len(s.Rows))
	_, err := io.WriteString(w, b.String())
	return err
}
