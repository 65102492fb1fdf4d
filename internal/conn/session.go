package conn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tobsdb/sqlair/internal/parser"
	"github.com/tobsdb/sqlair/internal/query"
	"github.com/tobsdb/sqlair/pkg"
)

// Session runs statements for one client until it sends `exit`.
type Session struct {
	Id       uuid.UUID
	executor *query.Executor
	log      *slog.Logger
	closed   bool
}

func NewSession(executor *query.Executor) *Session {
	id := uuid.New()
	return &Session{
		Id:       id,
		executor: executor,
		log:      pkg.Logger().With("session", id.String()),
	}
}

func (s *Session) Closed() bool { return s.closed }

// Exec runs one statement and returns its output.
func (s *Session) Exec(ctx context.Context, sql string) (string, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return "", err
	}
	if _, ok := stmt.(*parser.Exit); ok {
		s.closed = true
		s.log.Debug("session closed by client")
		return "", nil
	}

	buf := bytes.Buffer{}
	err = s.executor.Execute(ctx, stmt, &buf)
	return buf.String(), err
}

// Process runs sql and writes its output, or a single `Error: ...` line, to
// w. It reports whether the session accepts more statements.
func (s *Session) Process(ctx context.Context, sql string, w io.Writer) bool {
	out, err := s.Exec(ctx, sql)
	io.WriteString(w, out)
	if err != nil {
		s.log.Debug("statement failed", "sql", sql, "err", err)
		fmt.Fprintf(w, "Error: %s\n", err)
	}
	return !s.closed
}
