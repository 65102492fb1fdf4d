package conn_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/tobsdb/sqlair/internal/conn"
	"github.com/tobsdb/sqlair/internal/query"
	"github.com/tobsdb/sqlair/internal/registry"
	"gotest.tools/assert"
)

const testCSV = "id,name\n1,a\n2,b\n"

func newTestRegistry(t *testing.T) (*registry.Registry, string) {
	path := filepath.Join(t.TempDir(), "t.csv")
	assert.NilError(t, os.WriteFile(path, []byte(testCSV), 0o644))
	return registry.New(registry.DefaultOptions()), path
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	tables, path := newTestRegistry(t)
	session := NewSession(query.NewExecutor(tables))

	t.Run("no table selected", func(t *testing.T) {
		buf := bytes.Buffer{}
		assert.Assert(t, session.Process(ctx, "select * where id = 1", &buf))
		assert.Equal(t, buf.String(), "Error: no table selected\n")
	})

	t.Run("use then select", func(t *testing.T) {
		buf := bytes.Buffer{}
		assert.Assert(t, session.Process(ctx, "use '"+path+"'", &buf))
		assert.Equal(t, buf.String(), "")
		assert.Assert(t, session.Process(ctx, "select name where id = 2;", &buf))
		assert.Equal(t, buf.String(), "name\nb\n1 row(s) selected.\n")
	})

	t.Run("errors keep the session open", func(t *testing.T) {
		buf := bytes.Buffer{}
		assert.Assert(t, session.Process(ctx, "select bogus", &buf))
		assert.Equal(t, buf.String(), "Error: unknown column \"bogus\"\n")
		assert.Assert(t, session.Process(ctx, "frobnicate", &buf))
		assert.Assert(t, strings.Contains(buf.String(), "Error: invalid statement"))
	})

	t.Run("exit", func(t *testing.T) {
		buf := bytes.Buffer{}
		assert.Assert(t, !session.Process(ctx, "exit", &buf))
		assert.Assert(t, session.Closed())
		assert.Equal(t, buf.String(), "")
	})
}

func TestREPL(t *testing.T) {
	tables, path := newTestRegistry(t)
	in := strings.NewReader("use '" + path + "';\nselect *\n  where name = 'a;b';\n" +
		"insert into '" + path + "' values (3, 'a;b');\nselect id where name = 'a;b';\nexit;\nselect * ;\n")
	out := bytes.Buffer{}

	err := RunREPL(context.Background(), query.NewExecutor(tables), in, &out)
	assert.NilError(t, err)

	expected := "Welcome to SQL-AIR. It doesn't get any lite'r!\n" +
		"sql-air> " +
		"sql-air> id\tname\n0 row(s) selected.\n" +
		"sql-air> 1 row(s) inserted.\n" +
		"sql-air> id\n3\n1 row(s) selected.\n" +
		"sql-air> Floating away. Bye!\n"
	assert.Equal(t, out.String(), expected)
}

func runREPL(t *testing.T, ctx context.Context, tables *registry.Registry, in string) string {
	t.Helper()
	out := bytes.Buffer{}
	done := make(chan error, 1)
	go func() { done <- RunREPL(ctx, query.NewExecutor(tables), strings.NewReader(in), &out) }()
	select {
	case err := <-done:
		assert.NilError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("repl did not return")
	}
	return out.String()
}

func TestREPLContext(t *testing.T) {
	t.Run("ended before the first statement", func(t *testing.T) {
		tables, path := newTestRegistry(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out := runREPL(t, ctx, tables, "use '"+path+"';\nwait select * where name = q;\n")
		assert.Equal(t, out, "Welcome to SQL-AIR. It doesn't get any lite'r!\nsql-air> Floating away. Bye!\n")
		assert.Equal(t, tables.Current(), "")
	})

	t.Run("ends a waiting statement and the session", func(t *testing.T) {
		tables, path := newTestRegistry(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		time.AfterFunc(100*time.Millisecond, cancel)

		out := runREPL(t, ctx, tables, "use '"+path+"';\nwait select * where name = q;\nselect *;\n")
		expected := "Welcome to SQL-AIR. It doesn't get any lite'r!\n" +
			"sql-air> " +
			"sql-air> Error: context canceled\n" +
			"Floating away. Bye!\n"
		assert.Equal(t, out, expected)
	})
}

func TestREPLEndOfInput(t *testing.T) {
	tables, _ := newTestRegistry(t)
	out := bytes.Buffer{}
	err := RunREPL(context.Background(), query.NewExecutor(tables), strings.NewReader("select *"), &out)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(out.String(), "Error: no table selected\n"))
	assert.Assert(t, strings.HasSuffix(out.String(), "Floating away. Bye!\n"))
}

func newTestServer(t *testing.T, max_conns int) (*httptest.Server, *registry.Registry, string) {
	tables, path := newTestRegistry(t)
	s, err := NewServer(tables, ServerOptions{MaxConns: max_conns})
	assert.NilError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return srv, tables, path
}

func httpQuery(t *testing.T, srv *httptest.Server, sql string) string {
	res, err := http.Get(srv.URL + "/sql-air?query=" + url.QueryEscape(sql))
	assert.NilError(t, err)
	defer res.Body.Close()
	assert.Equal(t, res.StatusCode, http.StatusOK)
	body, err := io.ReadAll(res.Body)
	assert.NilError(t, err)
	return string(body)
}

func TestHTTP(t *testing.T) {
	srv, _, path := newTestServer(t, 8)

	t.Run("health", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/health")
		assert.NilError(t, err)
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		assert.Equal(t, res.StatusCode, http.StatusOK)
		assert.Assert(t, strings.HasPrefix(string(body), "ok\n"))
	})

	t.Run("query", func(t *testing.T) {
		body := httpQuery(t, srv, "select * from '"+path+"' where id = 1")
		assert.Equal(t, body, "id\tname\n1\ta\n1 row(s) selected.\n")
	})

	t.Run("error line", func(t *testing.T) {
		body := httpQuery(t, srv, "select * from '"+path+"' where bogus = 1")
		assert.Equal(t, body, "Error: unknown column \"bogus\"\n")
	})

	t.Run("reload", func(t *testing.T) {
		assert.NilError(t, os.WriteFile(path, []byte(testCSV+"3,c\n"), 0o644))
		res, err := http.Post(srv.URL+"/reload?table="+url.QueryEscape(path), "text/plain", nil)
		assert.NilError(t, err)
		res.Body.Close()
		assert.Equal(t, res.StatusCode, http.StatusOK)

		body := httpQuery(t, srv, "select id from '"+path+"' where name = c")
		assert.Equal(t, body, "id\n3\n1 row(s) selected.\n")
	})
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialWs(t *testing.T, srv *httptest.Server) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	assert.NilError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebsocket(t *testing.T) {
	srv, _, path := newTestServer(t, 8)

	t.Run("json request", func(t *testing.T) {
		conn := dialWs(t, srv)
		assert.NilError(t, conn.WriteJSON(WsRequest{Query: "use '" + path + "'", ReqId: 7}))
		var res Response
		assert.NilError(t, conn.ReadJSON(&res))
		assert.Equal(t, res.Status, http.StatusOK)
		assert.Equal(t, res.ReqId, 7)

		assert.NilError(t, conn.WriteMessage(websocket.TextMessage, []byte("delete where id = 9")))
		assert.NilError(t, conn.ReadJSON(&res))
		assert.Equal(t, res.Data, "0 row(s) deleted.\n")
	})

	t.Run("error status", func(t *testing.T) {
		conn := dialWs(t, srv)
		assert.NilError(t, conn.WriteJSON(WsRequest{Query: "save http://example.com/t.csv", ReqId: 1}))
		var res Response
		assert.NilError(t, conn.ReadJSON(&res))
		assert.Equal(t, res.Status, http.StatusNotImplemented)
		assert.Equal(t, res.Message, "saving a table to a URL is not supported")
	})

	t.Run("exit closes", func(t *testing.T) {
		conn := dialWs(t, srv)
		assert.NilError(t, conn.WriteJSON(WsRequest{Query: "exit"}))
		var res Response
		assert.NilError(t, conn.ReadJSON(&res))
		_, _, err := conn.ReadMessage()
		assert.Assert(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	})

	t.Run("wait released by http insert", func(t *testing.T) {
		conn := dialWs(t, srv)
		assert.NilError(t, conn.WriteJSON(WsRequest{Query: "wait select id from '" + path + "' where name = late"}))

		time.Sleep(50 * time.Millisecond)
		body := httpQuery(t, srv, "insert into '"+path+"' (id, name) values (5, late)")
		assert.Equal(t, body, "1 row(s) inserted.\n")

		var res Response
		assert.NilError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		assert.NilError(t, conn.ReadJSON(&res))
		assert.Equal(t, res.Data, "id\n5\n1 row(s) selected.\n")
	})
}

func TestConnectionBounds(t *testing.T) {
	srv, _, path := newTestServer(t, 2)

	waiter := dialWs(t, srv)
	assert.NilError(t, waiter.WriteJSON(WsRequest{Query: "wait select id from '" + path + "' where name = late", ReqId: 1}))
	idle := dialWs(t, srv)

	t.Run("websockets over the bound are refused", func(t *testing.T) {
		_, res, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
		assert.Assert(t, errors.Is(err, websocket.ErrBadHandshake))
		assert.Equal(t, res.StatusCode, http.StatusServiceUnavailable)
		res.Body.Close()
	})

	t.Run("open websockets do not block statements", func(t *testing.T) {
		time.Sleep(50 * time.Millisecond)
		body := httpQuery(t, srv, "insert into '"+path+"' (id, name) values (5, late)")
		assert.Equal(t, body, "1 row(s) inserted.\n")

		var res Response
		assert.NilError(t, waiter.SetReadDeadline(time.Now().Add(5*time.Second)))
		assert.NilError(t, waiter.ReadJSON(&res))
		assert.Equal(t, res.ReqId, 1)
		assert.Equal(t, res.Data, "id\n5\n1 row(s) selected.\n")
	})

	t.Run("idle websocket still serves", func(t *testing.T) {
		assert.NilError(t, idle.WriteJSON(WsRequest{Query: "select id from '" + path + "' where id = 5", ReqId: 2}))
		var res Response
		assert.NilError(t, idle.SetReadDeadline(time.Now().Add(5*time.Second)))
		assert.NilError(t, idle.ReadJSON(&res))
		assert.Equal(t, res.Data, "id\n5\n1 row(s) selected.\n")
	})
}
