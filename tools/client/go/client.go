// Golang client for SQLAir.
//
// Usage:
//
// start a server
//
//	```sh
//	sqlair serve --port 8080
//	```
//
// create a client and run statements
//
//	```go
//	func main() {
//	  c, err := client.NewClient("ws://localhost:8080/ws")
//	  res, err := c.Query("select * from people.csv where name like 'a'")
//	  fmt.Print(res.Data)
//	}
//	```
package client

import (
	"fmt"
	"net/url"
	"sync"

	ws "github.com/gorilla/websocket"
	"github.com/tobsdb/sqlair/pkg"
)

type (
	// SQLAir client
	//
	// Requests are sent one at a time over a single websocket.
	Client struct {
		locker sync.Mutex
		// The websocket connection used by the client
		conn *ws.Conn
		// The websocket url of the SQLAir server
		Url    *url.URL
		req_id int
	}

	Response struct {
		Status    int    `json:"status"`
		Message   string `json:"message"`
		Data      string `json:"data"`
		RequestId int    `json:"__sqlair_client_req_id__"`
	}

	request struct {
		Query     string `json:"query"`
		RequestId int    `json:"__sqlair_client_req_id__"`
	}
)

func NewClient(urlStr string) (*Client, error) {
	Url, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}
	if Url.Scheme != "ws" && Url.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported url scheme %q", Url.Scheme)
	}
	return &Client{Url: Url}, nil
}

func (c *Client) Connect() error {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.connect()
}

func (c *Client) connect() error {
	if c.conn != nil {
		return nil
	}
	conn, _, err := ws.DefaultDialer.Dial(c.Url.String(), nil)
	if err != nil {
		return err
	}

	pkg.InfoLog("connected to SQLAir server", "url", c.Url.String())
	c.conn = conn
	return nil
}

func (c *Client) Disconnect() error {
	c.locker.Lock()
	defer c.locker.Unlock()
	if c.conn == nil {
		return nil
	}
	defer func() { c.conn = nil }()

	err := c.conn.WriteMessage(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, "Disconnect"))
	if err != nil {
		pkg.ErrorLog("disconnect", "err", err)
		c.conn.Close()
		return err
	}
	if err := c.conn.Close(); err != nil {
		pkg.ErrorLog("disconnect", "err", err)
		return err
	}

	pkg.InfoLog("disconnected from SQLAir server")
	return nil
}

// Query runs one statement on the server. A statement error is reported in
// the response, not as err.
func (c *Client) Query(sql string) (Response, error) {
	c.locker.Lock()
	defer c.locker.Unlock()

	if err := c.connect(); err != nil {
		return Response{}, err
	}

	c.req_id++
	if err := c.conn.WriteJSON(request{Query: sql, RequestId: c.req_id}); err != nil {
		return Response{}, err
	}

	var res Response
	if err := c.conn.ReadJSON(&res); err != nil {
		return res, err
	}
	if res.RequestId != c.req_id {
		return res, fmt.Errorf("response for request %d, expected %d", res.RequestId, c.req_id)
	}
	return res, nil
}
