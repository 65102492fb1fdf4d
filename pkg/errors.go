package pkg

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind int

const (
	SyntaxError ErrorKind = iota
	SemanticError
	NotFoundError
	UnsupportedError
	IOError
	// Only raised when a table's own bookkeeping is found broken under its
	// lock. Never expected to reach a client.
	ConcurrencyInvariantViolation
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax error"
	case SemanticError:
		return "semantic error"
	case NotFoundError:
		return "not found"
	case UnsupportedError:
		return "unsupported"
	case IOError:
		return "i/o error"
	case ConcurrencyInvariantViolation:
		return "concurrency invariant violation"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) Status() int {
	switch k {
	case SyntaxError, SemanticError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case UnsupportedError:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

type QueryError struct {
	msg  string
	kind ErrorKind
	err  error
}

func NewQueryError(kind ErrorKind, msg string) *QueryError {
	return &QueryError{msg: msg, kind: kind}
}

func QueryErrorf(kind ErrorKind, format string, args ...any) *QueryError {
	return NewQueryError(kind, fmt.Sprintf(format, args...))
}

// QueryErrorWrap keeps err reachable through errors.Is/As and appends its
// text to the formatted message.
func QueryErrorWrap(kind ErrorKind, err error, format string, args ...any) *QueryError {
	return &QueryError{msg: fmt.Sprintf(format, args...) + ": " + err.Error(), kind: kind, err: err}
}

func (e *QueryError) Error() string   { return e.msg }
func (e *QueryError) Unwrap() error   { return e.err }
func (e *QueryError) Kind() ErrorKind { return e.kind }
func (e *QueryError) Status() int     { return e.kind.Status() }

func IsKind(err error, kind ErrorKind) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.kind == kind
}

// ErrorStatus maps any error to the HTTP status reported to clients.
func ErrorStatus(err error) int {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Status()
	}
	return http.StatusInternalServerError
}
