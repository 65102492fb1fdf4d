package query

import (
	"context"

	"github.com/tobsdb/sqlair/internal/parser"
	"github.com/tobsdb/sqlair/internal/table"
	"github.com/tobsdb/sqlair/pkg"
)

// mutate runs attempt under the write lock. With wait set, an attempt that
// touches no rows is retried whenever the table changes. Waiters are woken
// if any row was touched.
func mutate(ctx context.Context, t *table.Table, wait bool, attempt func() (int, error)) (int, error) {
	t.GetLocker().Lock()
	defer t.GetLocker().Unlock()

	n := 0
	var err, attemptErr error
	if wait {
		err = t.Await(ctx, func() bool {
			n, attemptErr = attempt()
			return attemptErr != nil || n > 0
		})
	} else {
		n, attemptErr = attempt()
	}

	if n > 0 {
		t.Broadcast()
	}
	if err == nil {
		err = attemptErr
	}
	return n, err
}

func Update(ctx context.Context, t *table.Table, s *parser.Update) (int, error) {
	idxs, err := columnIndexes(t, pkg.Transform(s.Assignments, func(a parser.Assignment) string { return a.Column }))
	if err != nil {
		return 0, err
	}
	cond, err := newCondition(t, s.Where)
	if err != nil {
		return 0, err
	}

	return mutate(ctx, t, s.MustWait(), func() (int, error) {
		rows, err := t.Rows()
		if err != nil {
			return 0, err
		}
		n := 0
		for _, row := range rows {
			if !cond.match(row) {
				continue
			}
			for i, a := range s.Assignments {
				row.Cells[idxs[i]] = a.Value
			}
			n++
		}
		return n, nil
	})
}

func Delete(ctx context.Context, t *table.Table, s *parser.Delete) (int, error) {
	cond, err := newCondition(t, s.Where)
	if err != nil {
		return 0, err
	}

	return mutate(ctx, t, s.MustWait(), func() (int, error) {
		rows, err := t.Rows()
		if err != nil {
			return 0, err
		}
		return t.Remove(pkg.Filter(rows, cond.match)...), nil
	})
}

// Insert appends one row. Columns left out of an explicit column list are
// empty. The wait flag is accepted and ignored.
func Insert(ctx context.Context, t *table.Table, s *parser.Insert) error {
	cells := make([]string, t.Columns.Len())

	if s.Columns == nil {
		if len(s.Values) != len(cells) {
			return pkg.QueryErrorf(pkg.SemanticError,
				"table has %d columns but %d values were given", len(cells), len(s.Values))
		}
		copy(cells, s.Values)
	} else {
		if len(s.Columns) != len(s.Values) {
			return pkg.QueryErrorf(pkg.SemanticError,
				"%d columns but %d values were given", len(s.Columns), len(s.Values))
		}
		idxs, err := columnIndexes(t, s.Columns)
		if err != nil {
			return err
		}
		seen := make(pkg.Map[int, bool], len(idxs))
		for i, idx := range idxs {
			if seen.Has(idx) {
				return pkg.QueryErrorf(pkg.SemanticError, "column %q given more than once", s.Columns[i])
			}
			seen.Set(idx, true)
			cells[idx] = s.Values[i]
		}
	}

	var err error
	pkg.LockWrap(t, func() {
		if _, err = t.Append(cells); err == nil {
			t.Broadcast()
		}
	})
	return err
}
