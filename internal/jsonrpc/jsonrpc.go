// Package jsonrpc implements the JSON-RPC 2.0 framing spoken on the tool
// bridge listener: request/response envelopes, the standard error codes, and
// HTTP write helpers.
package jsonrpc

import (
	"encoding/json"
	"net/http"
)

// Version is the only protocol version accepted or emitted.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var defaultMessages = map[int]string{
	CodeParseError:     "Parse error",
	CodeInvalidRequest: "Invalid Request",
	CodeMethodNotFound: "Method not found",
	CodeInvalidParams:  "Invalid params",
	CodeInternalError:  "Internal error",
}

// Request is a single JSON-RPC request or notification. The id is kept raw so
// number, string, and null ids round-trip untouched.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a single JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the error member of a failed response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NewResult builds a success response for id.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewError builds an error response for id. An empty message falls back to
// the standard text for the code.
func NewError(id json.RawMessage, code int, message string) *Response {
	if message == "" {
		message = defaultMessages[code]
	}
	return &Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}

// Write encodes resp to w as a JSON body. JSON-RPC errors ride on HTTP 200;
// transport-level failures use plain HTTP statuses instead.
func Write(w http.ResponseWriter, resp *Response) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}
