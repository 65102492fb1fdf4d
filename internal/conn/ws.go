package conn

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/tobsdb/sqlair/pkg"
)

// WsRequest is the JSON form of a websocket message. A message that is not
// a JSON object is taken as the statement itself.
type WsRequest struct {
	Query string `json:"query"`
	ReqId int    `json:"__sqlair_client_req_id__"` // echoed back to clients
}

var Upgrader = websocket.Upgrader{
	WriteBufferSize: 1024 * 10,
	ReadBufferSize:  1024 * 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func parseWsRequest(buf []byte) (WsRequest, error) {
	var req WsRequest
	if !bytes.HasPrefix(bytes.TrimSpace(buf), []byte("{")) {
		req.Query = string(buf)
		return req, nil
	}
	err := json.Unmarshal(buf, &req)
	return req, err
}

// handleWs runs one session per websocket. Messages are read on their own
// goroutine so a client that goes away releases a statement that is still
// waiting on a table.
func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		pkg.ErrorLog("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	session := NewSession(s.executor)
	session.log.Info("websocket connected", "remote", r.RemoteAddr)
	defer session.log.Info("websocket closed", "remote", r.RemoteAddr)

	messages := make(chan []byte)
	go func() {
		defer cancel()
		defer close(messages)
		for {
			_, buf, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					session.log.Debug("websocket read", "err", err)
				}
				return
			}
			select {
			case messages <- buf:
			case <-ctx.Done():
				return
			}
		}
	}()

	for buf := range messages {
		req, err := parseWsRequest(buf)
		var res Response
		if err != nil {
			res = NewErrorResponse(http.StatusBadRequest, err.Error())
		} else {
			res = statementResponse(session.Exec(ctx, req.Query))
		}
		res.ReqId = req.ReqId

		if err := conn.WriteMessage(websocket.TextMessage, res.Marshal()); err != nil {
			session.log.Debug("websocket write", "err", err)
			return
		}

		if session.Closed() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, replFarewell))
			return
		}
	}
}
