package table

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tobsdb/sqlair/pkg"
	sorted "github.com/tobshub/go-sortedmap"
)

// Row holds one cell per column, aligned with the table's column order.
type Row struct {
	id    int
	Cells []string
}

func (r *Row) Id() int { return r.id }

type TableRows = sorted.SortedMap[int, *Row]

func rowsComparisonFunc(a, b *Row) bool { return a.id < b.id }

// Table is a set of named columns and the rows loaded for them.
//
// Columns never change after New. Rows are guarded by the table's locker:
// readers hold the read lock, writers and waiters the write lock. The
// condition variable is bound to the write lock.
type Table struct {
	locker sync.RWMutex
	cond   *sync.Cond

	// column name -> position, in header order
	Columns *pkg.InsertSortMap[string, int]

	rows    *TableRows
	next_id int

	// set once the table has been replaced and can no longer change
	retired error
}

func New(columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table must have at least one column")
	}

	cols := pkg.NewInsertSortMap[string, int]()
	for i, name := range columns {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("column %d has an empty name", i+1)
		}
		if !cols.Push(name, i) {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}
	}

	t := &Table{
		Columns: cols,
		rows:    sorted.New[int, *Row](0, rowsComparisonFunc),
	}
	t.cond = sync.NewCond(&t.locker)
	return t, nil
}

func (t *Table) GetLocker() *sync.RWMutex { return &t.locker }

func (t *Table) ColumnNames() []string { return t.Columns.Keys() }

// ColumnIndex returns the position of name or -1. An exact match wins over
// a case-insensitive one.
func (t *Table) ColumnIndex(name string) int {
	if t.Columns.Has(name) {
		return t.Columns.Get(name)
	}
	for _, col := range t.Columns.Sorted {
		if strings.EqualFold(col, name) {
			return t.Columns.Get(col)
		}
	}
	return -1
}

// The methods below touch rows and expect the caller to hold the locker.

func (t *Table) Len() int { return t.rows.Len() }

// Rows returns the rows in insertion order. The slice is a snapshot; the rows
// themselves are shared.
func (t *Table) Rows() ([]*Row, error) {
	rows := make([]*Row, 0, t.rows.Len())
	if t.rows.Len() == 0 {
		return rows, nil
	}

	iterCh, err := t.rows.IterCh()
	if err != nil {
		return nil, pkg.QueryErrorWrap(pkg.ConcurrencyInvariantViolation, err,
			"failed to iterate %d rows", t.rows.Len())
	}
	for rec := range iterCh.Records() {
		rows = append(rows, rec.Val)
	}
	return rows, nil
}

func (t *Table) Append(cells []string) (*Row, error) {
	if len(cells) != t.Columns.Len() {
		return nil, pkg.QueryErrorf(pkg.ConcurrencyInvariantViolation,
			"row has %d cells, table has %d columns", len(cells), t.Columns.Len())
	}
	t.next_id++
	row := &Row{id: t.next_id, Cells: cells}
	if !t.rows.Insert(row.id, row) {
		return nil, pkg.QueryErrorf(pkg.ConcurrencyInvariantViolation, "row id %d already in use", row.id)
	}
	return row, nil
}

func (t *Table) Remove(rows ...*Row) int {
	n := 0
	for _, row := range rows {
		if t.rows.Delete(row.id) {
			n++
		}
	}
	return n
}

// Broadcast wakes every statement waiting on the table.
func (t *Table) Broadcast() { t.cond.Broadcast() }

// Await calls ready until it reports true, sleeping on the table's condition
// variable between calls. The caller must hold the write lock; it is released
// while sleeping and held again when Await returns.
//
// When ctx ends the sleeper is woken and Await returns ctx.Err(). On a
// retired table Await returns the error it was retired with.
func (t *Table) Await(ctx context.Context, ready func() bool) error {
	stop := context.AfterFunc(ctx, func() {
		t.locker.Lock()
		defer t.locker.Unlock()
		t.cond.Broadcast()
	})
	defer stop()

	for {
		if t.retired != nil {
			return t.retired
		}
		if ready() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		t.cond.Wait()
	}
}

// Retire marks the table as replaced and wakes its waiters, which give up
// with err.
func (t *Table) Retire(err error) {
	pkg.LockWrap(t, func() {
		t.retired = err
		t.Broadcast()
	})
}
