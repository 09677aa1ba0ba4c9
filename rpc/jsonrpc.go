package rpc

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Solana RPC methods the gateway issues on its own behalf.
const (
	MethodSendTransaction      = "sendTransaction"
	MethodSimulateTransaction  = "simulateTransaction"
	MethodGetLatestBlockhash   = "getLatestBlockhash"
	MethodGetSignatureStatuses = "getSignatureStatuses"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// NewRequest builds a request with a fresh uuid id.
func NewRequest(method string, params ...interface{}) Request {
	return Request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}
}

// Marshal encodes the request for the wire.
func (r Request) Marshal() ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", r.Method, err)
	}
	return body, nil
}

// ResponseError extracts the JSON-RPC error member from a response body.
// A present error member means the call failed even when the HTTP status
// was 200.
func ResponseError(body []byte) (code int64, message string, found bool) {
	errField := gjson.GetBytes(body, "error")
	if !errField.Exists() {
		return 0, "", false
	}
	return errField.Get("code").Int(), errField.Get("message").String(), true
}

// Result returns the result member of a response body.
func Result(body []byte) gjson.Result {
	return gjson.GetBytes(body, "result")
}

// unavailableTemplate is the body synthesized when no upstream answered.
// Code -32000 is the generic server-error code; the message deliberately
// carries no upstream-specific detail.
const unavailableTemplate = `{"jsonrpc":"2.0","id":null,"error":{"code":-32000,"message":"all upstream endpoints unavailable"}}`

// UnavailableBody builds the synthesized failure body, echoing the caller's
// request id (string, number or null) so JSON-RPC clients can correlate it.
func UnavailableBody(reqBody []byte) []byte {
	id := gjson.GetBytes(reqBody, "id")
	if !id.Exists() {
		return []byte(unavailableTemplate)
	}
	body, err := sjson.SetRawBytes([]byte(unavailableTemplate), "id", []byte(id.Raw))
	if err != nil {
		return []byte(unavailableTemplate)
	}
	return body
}
