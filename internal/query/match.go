package query

import (
	"strings"

	"github.com/tobsdb/sqlair/internal/parser"
	"github.com/tobsdb/sqlair/internal/table"
	"github.com/tobsdb/sqlair/pkg"
)

// Matches compares cell with literal as text. No numeric coercion is done:
// "10" and "010" are different values.
func Matches(cell string, op parser.Operator, literal string) bool {
	switch op {
	case parser.OpEquals:
		return cell == literal
	case parser.OpNotEquals:
		return cell != literal
	case parser.OpLike:
		return strings.Contains(cell, literal)
	}
	return false
}

// condition is a where-clause bound to a column position. A nil condition
// matches every row.
type condition struct {
	idx   int
	op    parser.Operator
	value string
}

func newCondition(t *table.Table, w *parser.Where) (*condition, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Op {
	case parser.OpEquals, parser.OpNotEquals, parser.OpLike:
	default:
		return nil, pkg.QueryErrorf(pkg.SyntaxError, "unknown operator %q", w.Op)
	}
	idx, err := columnIndex(t, w.Column)
	if err != nil {
		return nil, err
	}
	return &condition{idx: idx, op: w.Op, value: w.Value}, nil
}

func (c *condition) match(row *table.Row) bool {
	if c == nil {
		return true
	}
	return Matches(row.Cells[c.idx], c.op, c.value)
}

func columnIndex(t *table.Table, name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return -1, pkg.QueryErrorf(pkg.SemanticError, "unknown column %q", name)
	}
	return idx, nil
}

func columnIndexes(t *table.Table, names []string) ([]int, error) {
	idxs := make([]int, len(names))
	for i, name := range names {
		idx, err := columnIndex(t, name)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	return idxs, nil
}
