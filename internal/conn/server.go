package conn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/tobsdb/sqlair/internal/query"
	"github.com/tobsdb/sqlair/internal/registry"
	"github.com/tobsdb/sqlair/pkg"
)

type ServerOptions struct {
	Port int
	// Bounds HTTP statements and open websockets separately. A request over
	// either bound is refused with 503.
	MaxConns int
}

func DefaultServerOptions() ServerOptions {
	return ServerOptions{Port: 8080, MaxConns: 20}
}

type Server struct {
	tables   *registry.Registry
	executor *query.Executor
	opts     ServerOptions

	// A websocket holds its worker until it closes, so sockets get their own
	// pool and can never starve the HTTP statements a waiter depends on.
	statements *ants.Pool
	sockets    *ants.Pool
}

func newPool(size int, name string) (*ants.Pool, error) {
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			pkg.ErrorLog("request handler panic", "pool", name, "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s pool: %w", name, err)
	}
	return pool, nil
}

func NewServer(tables *registry.Registry, opts ServerOptions) (*Server, error) {
	statements, err := newPool(opts.MaxConns, "statement")
	if err != nil {
		return nil, err
	}
	sockets, err := newPool(opts.MaxConns, "websocket")
	if err != nil {
		statements.Release()
		return nil, err
	}
	return &Server{
		tables:     tables,
		executor:   query.NewExecutor(tables),
		opts:       opts,
		statements: statements,
		sockets:    sockets,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/sql-air", bounded(s.statements, s.handleQuery))
	mux.HandleFunc("/reload", bounded(s.statements, s.handleReload))
	mux.HandleFunc("/ws", bounded(s.sockets, s.handleWs))
	return mux
}

// bounded runs h on one of pool's workers. When every worker is busy the
// request is refused rather than queued.
func bounded(pool *ants.Pool, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		done := make(chan struct{})
		err := pool.Submit(func() {
			defer close(done)
			h(w, r)
		})
		if err != nil {
			pkg.WarnLog("rejecting request", "path", r.URL.Path, "err", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		<-done
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
	for _, id := range s.tables.Identifiers() {
		fmt.Fprintln(w, id)
	}
}

// handleQuery runs the statement in the `query` parameter on a fresh
// session. Statement errors are part of the plain text body, not the status.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sql := r.URL.Query().Get("query")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	session := NewSession(s.executor)
	session.log.Debug("http query", "remote", r.RemoteAddr, "sql", sql)
	session.Process(r.Context(), sql, w)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := s.tables.Reload(r.Context(), r.URL.Query().Get("table"))
	if err != nil {
		http.Error(w, err.Error(), pkg.ErrorStatus(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s reloaded.\n", id)
}

// Listen serves until ctx ends. Requests still waiting on a table are
// released through their contexts.
func (s *Server) Listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.opts.Port),
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	pkg.InfoLog("SQLAir listening", "port", s.opts.Port, "max_conns", s.opts.MaxConns)

	select {
	case err := <-errCh:
		s.Close()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	pkg.DebugLog("shutting down")
	shutdown_ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown_ctx); err != nil {
		pkg.WarnLog("server shutdown", "err", err)
	}
	s.Close()
	return nil
}

func (s *Server) Close() {
	if err := s.sockets.ReleaseTimeout(3 * time.Second); err != nil {
		pkg.WarnLog("releasing websocket pool", "err", err)
	}
	if err := s.statements.ReleaseTimeout(3 * time.Second); err != nil {
		pkg.WarnLog("releasing statement pool", "err", err)
	}
}
