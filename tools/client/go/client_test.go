package client_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/assert"

	"github.com/tobsdb/sqlair/internal/conn"
	"github.com/tobsdb/sqlair/internal/registry"
	client "github.com/tobsdb/sqlair/tools/client/go"
)

func newTestServer(t *testing.T) (string, string) {
	path := filepath.Join(t.TempDir(), "t.csv")
	assert.NilError(t, os.WriteFile(path, []byte("id,name\n1,a\n"), 0o644))

	s, err := conn.NewServer(registry.New(registry.DefaultOptions()), conn.DefaultServerOptions())
	assert.NilError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", path
}

func TestNewClient(t *testing.T) {
	c, err := client.NewClient("ws://localhost:8080/ws")
	assert.NilError(t, err)
	assert.Equal(t, c.Url.Host, "localhost:8080")

	_, err = client.NewClient("http://localhost:8080/ws")
	assert.ErrorContains(t, err, "unsupported url scheme")
}

func TestQuery(t *testing.T) {
	url, path := newTestServer(t)
	c, err := client.NewClient(url)
	assert.NilError(t, err)
	assert.NilError(t, c.Connect())

	res, err := c.Query("select name from '" + path + "'")
	assert.NilError(t, err)
	assert.Equal(t, res.Status, http.StatusOK)
	assert.Equal(t, res.Data, "name\na\n1 row(s) selected.\n")
	assert.Equal(t, res.RequestId, 1)

	res, err = c.Query("select bogus")
	assert.NilError(t, err)
	assert.Equal(t, res.Status, http.StatusBadRequest)
	assert.Equal(t, res.Message, "unknown column \"bogus\"")
	assert.Equal(t, res.RequestId, 2)

	assert.NilError(t, c.Disconnect())
}
