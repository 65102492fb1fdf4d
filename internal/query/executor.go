package query

import (
	"context"
	"fmt"
	"io"

	"github.com/tobsdb/sqlair/internal/parser"
	"github.com/tobsdb/sqlair/internal/table"
	"github.com/tobsdb/sqlair/pkg"
)

// Resolver hands out tables by identifier. An empty identifier means the
// most recently used table.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*table.Table, string, error)
	Save(ctx context.Context, id string) (string, error)
}

type Executor struct {
	tables Resolver
}

func NewExecutor(tables Resolver) *Executor {
	return &Executor{tables: tables}
}

// Execute runs stmt and writes its output to w. *parser.Exit is a no-op
// here; ending the session is up to the caller.
func (e *Executor) Execute(ctx context.Context, stmt parser.Statement, w io.Writer) error {
	switch s := stmt.(type) {
	case *parser.Exit:
		return nil
	case *parser.Save:
		id, err := e.tables.Save(ctx, s.TableName())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s saved.\n", id)
		return err
	}

	t, id, err := e.tables.Resolve(ctx, stmt.TableName())
	if err != nil {
		return err
	}
	pkg.DebugLog("executing statement", "type", fmt.Sprintf("%T", stmt), "table", id, "wait", stmt.MustWait())

	switch s := stmt.(type) {
	case *parser.Use:
		return nil
	case *parser.Select:
		sel, err := Select(ctx, t, s)
		if err != nil {
			return err
		}
		return sel.Write(w)
	case *parser.Update:
		n, err := Update(ctx, t, s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%d row(s) updated.\n", n)
		return err
	case *parser.Insert:
		if err := Insert(ctx, t, s); err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, "1 row(s) inserted.")
		return err
	case *parser.Delete:
		n, err := Delete(ctx, t, s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%d row(s) deleted.\n", n)
		return err
	}
	return pkg.QueryErrorf(pkg.UnsupportedError, "unsupported statement %T", stmt)
}
