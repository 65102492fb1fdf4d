package conn

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tobsdb/sqlair/internal/query"
)

const (
	replPrompt   = "sql-air> "
	replGreeting = "Welcome to SQL-AIR. It doesn't get any lite'r!"
	replFarewell = "Floating away. Bye!"
)

// splitStatements is a bufio.SplitFunc yielding `;`-terminated statements.
// A `;` inside a quoted literal does not end the statement.
func splitStatements(data []byte, atEOF bool) (int, []byte, error) {
	var quote byte
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ';':
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(bytes.TrimSpace(data)) > 0 {
		return len(data), data, nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// RunREPL reads statements from in until `exit`, EOF or the end of ctx,
// writing results and prompts to out. Ending ctx abandons a statement that
// is waiting on a table and then ends the session.
func RunREPL(ctx context.Context, executor *query.Executor, in io.Reader, out io.Writer) error {
	session := NewSession(executor)
	session.log.Info("repl session started")

	fmt.Fprintln(out, replGreeting)
	fmt.Fprint(out, replPrompt)

	read_ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statements := make(chan string)
	var scanErr error
	go func() {
		defer close(statements)
		scanner := bufio.NewScanner(in)
		scanner.Split(splitStatements)
		for scanner.Scan() {
			select {
			case statements <- strings.TrimSpace(scanner.Text()):
			case <-read_ctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			session.log.Info("repl interrupted")
			break loop
		case sql, ok := <-statements:
			if !ok {
				err = scanErr
				break loop
			}
			if ctx.Err() != nil {
				break loop
			}
			if sql != "" && !session.Process(ctx, sql, out) {
				break loop
			}
			if ctx.Err() != nil {
				session.log.Info("repl interrupted")
				break loop
			}
			fmt.Fprint(out, replPrompt)
		}
	}

	fmt.Fprintln(out, replFarewell)
	return err
}
