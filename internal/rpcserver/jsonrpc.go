package rpcserver

import (
	"encoding/json"
	"fmt"
)

// decodeJSONRPC parses a JSON-RPC request body into a parsedCall.
func decodeJSONRPC(body []byte) (parsedCall, any, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return parsedCall{}, nil, fmt.Errorf("jsonrpc: %w", err)
	}
	return parsedCall{Method: req.Method, Params: req.Params}, req.ID, nil
}

// encodeJSONRPCResponse wraps a successful result for the given request id.
func encodeJSONRPCResponse(result any, id any) []byte {
	resp := JSONRPCResponse{JSONRPC: "2.0", Result: result, ID: id}
	out, _ := json.Marshal(resp)
	return out
}

// encodeJSONRPCError wraps an RPCError for the given request id.
func encodeJSONRPCError(e RPCError, id any) []byte {
	resp := JSONRPCResponse{JSONRPC: "2.0", Error: &e, ID: id}
	out, _ := json.Marshal(resp)
	return out
}
