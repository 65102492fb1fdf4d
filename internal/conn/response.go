package conn

import (
	"encoding/json"
	"net/http"

	"github.com/tobsdb/sqlair/pkg"
)

type Response struct {
	Data    string `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// don't manually set this. it comes from the client
	ReqId int `json:"__sqlair_client_req_id__"`
}

func NewErrorResponse(status int, err string) Response {
	return Response{Message: err, Status: status}
}

func NewResponse(status int, message string, data string) Response {
	return Response{Data: data, Message: message, Status: status}
}

// statementResponse reports the output of a statement, or its error with
// the status matching the error's kind.
func statementResponse(out string, err error) Response {
	if err != nil {
		res := NewErrorResponse(pkg.ErrorStatus(err), err.Error())
		res.Data = out
		return res
	}
	return NewResponse(http.StatusOK, "", out)
}

func (r Response) Marshal() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		pkg.ErrorLog("failed to marshal response", "err", err)
		return nil
	}
	return data
}
