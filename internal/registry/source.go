package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tobsdb/sqlair/internal/table"
	"github.com/tobsdb/sqlair/pkg"
	"github.com/ulikunitz/xz"
)

const userAgent = "sqlair/1.0"

func IsURL(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://")
}

// isCompressed reports whether id names an xz stream, looking at the path
// only for URLs.
func isCompressed(id string) bool {
	path := id
	if IsURL(id) {
		if u, err := url.Parse(id); err == nil {
			path = u.Path
		}
	}
	return strings.HasSuffix(strings.ToLower(path), ".xz")
}

func (r *Registry) load(ctx context.Context, id string) (*table.Table, error) {
	t, err := r.read(ctx, id)
	if err != nil {
		pkg.WarnLog("failed to load table", "table", id, "err", err)
		return nil, pkg.QueryErrorWrap(pkg.NotFoundError, err, "failed to load %q", id)
	}
	pkg.InfoLog("table loaded", "table", id, "columns", t.Columns.Len(), "rows", t.Len())
	return t, nil
}

func (r *Registry) read(ctx context.Context, id string) (*table.Table, error) {
	var rc io.ReadCloser
	var err error
	if IsURL(id) {
		rc, err = r.fetch(ctx, id)
	} else {
		rc, err = os.Open(id)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var src io.Reader = rc
	if isCompressed(id) {
		if src, err = xz.NewReader(rc); err != nil {
			return nil, fmt.Errorf("reading xz stream: %w", err)
		}
	}
	return table.Load(src, r.format)
}

func (r *Registry) fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, id, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected response status: %s", resp.Status)
	}
	return resp.Body, nil
}

// store writes t next to path and renames it into place so a failed save
// leaves the old file intact.
func (r *Registry) store(t *table.Table, path string) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err := f.Chmod(0o644); err != nil {
		return err
	}

	if isCompressed(path) {
		xw, err := xz.NewWriter(f)
		if err != nil {
			return err
		}
		if err := t.Save(xw, r.format); err != nil {
			return err
		}
		if err := xw.Close(); err != nil {
			return err
		}
	} else if err := t.Save(f, r.format); err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
