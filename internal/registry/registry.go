package registry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tobsdb/sqlair/internal/table"
	"github.com/tobsdb/sqlair/pkg"
)

type Options struct {
	Format table.Format
	// Applies to remote sources only. Zero means no timeout.
	FetchTimeout time.Duration
	// Used for remote sources. Built from FetchTimeout when nil.
	Client *http.Client
}

func DefaultOptions() Options {
	return Options{Format: table.DefaultFormat, FetchTimeout: 30 * time.Second}
}

// Registry caches loaded tables by the identifier they were loaded from and
// remembers the most recently used one.
//
// The registry's locker only guards the cache. It is never held while a
// table is being read or written.
type Registry struct {
	locker sync.RWMutex
	tables pkg.Map[string, *table.Table]
	recent string

	format table.Format
	client *http.Client
}

func New(opts Options) *Registry {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.FetchTimeout}
	}
	return &Registry{
		tables: pkg.Map[string, *table.Table]{},
		format: opts.Format,
		client: client,
	}
}

// Current returns the most recently used identifier, or "".
func (r *Registry) Current() string {
	r.locker.RLock()
	defer r.locker.RUnlock()
	return r.recent
}

func (r *Registry) Identifiers() []string {
	r.locker.RLock()
	defer r.locker.RUnlock()
	return pkg.SortedKeys(r.tables)
}

// lookup returns the cached table for id, substituting the most recent
// identifier when id is empty.
func (r *Registry) lookup(id string) (*table.Table, string, error) {
	r.locker.Lock()
	defer r.locker.Unlock()
	if id == "" {
		if r.recent == "" {
			return nil, "", pkg.NewQueryError(pkg.NotFoundError, "no table selected")
		}
		id = r.recent
	}
	t := r.tables.Get(id)
	if t != nil {
		r.recent = id
	}
	return t, id, nil
}

// Resolve returns the table for id, loading it on first use. The resolved
// identifier becomes the most recent one.
//
// Loading happens without the registry lock. When two callers load the same
// identifier at once the first to publish wins and the other's table is
// dropped.
func (r *Registry) Resolve(ctx context.Context, id string) (*table.Table, string, error) {
	t, id, err := r.lookup(id)
	if err != nil || t != nil {
		return t, id, err
	}

	loaded, err := r.load(ctx, id)
	if err != nil {
		return nil, "", err
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if existing := r.tables.Get(id); existing != nil {
		pkg.DebugLog("table loaded concurrently, discarding copy", "table", id)
		loaded = existing
	} else {
		r.tables.Set(id, loaded)
	}
	r.recent = id
	return loaded, id, nil
}

// Reload replaces the cached table for id with a fresh copy from its source.
// The old table is retired: statements waiting on it fail with a NotFoundError.
func (r *Registry) Reload(ctx context.Context, id string) (string, error) {
	if id == "" {
		if id = r.Current(); id == "" {
			return "", pkg.NewQueryError(pkg.NotFoundError, "no table selected")
		}
	}

	loaded, err := r.load(ctx, id)
	if err != nil {
		return "", err
	}

	r.locker.Lock()
	old := r.tables.Get(id)
	r.tables.Set(id, loaded)
	r.recent = id
	r.locker.Unlock()

	if old != nil {
		old.Retire(pkg.QueryErrorf(pkg.NotFoundError, "table %q was reloaded", id))
	}
	pkg.InfoLog("table reloaded", "table", id)
	return id, nil
}

// Save writes the table for id back to the file it was loaded from.
func (r *Registry) Save(ctx context.Context, id string) (string, error) {
	if id == "" {
		if id = r.Current(); id == "" {
			return "", pkg.NewQueryError(pkg.NotFoundError, "no table selected")
		}
	}
	if IsURL(id) {
		return "", pkg.NewQueryError(pkg.UnsupportedError, "saving a table to a URL is not supported")
	}

	t, id, err := r.Resolve(ctx, id)
	if err != nil {
		return "", err
	}
	if err := r.store(t, id); err != nil {
		return "", pkg.QueryErrorWrap(pkg.IOError, err, "failed to save %q", id)
	}
	pkg.InfoLog("table saved", "table", id)
	return id, nil
}
