package rpcserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeXMLRPC(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<methodCall>
  <methodName>Plugin.Local.register</methodName>
  <params>
    <param>
      <value>
        <struct>
          <member><name>name</name><value><string>demo</string></value></member>
        </struct>
      </value>
    </param>
  </params>
</methodCall>`)

	call, err := decodeXMLRPC(body)
	require.NoError(t, err)
	require.Equal(t, "Plugin.Local.register", call.Method)
	require.Equal(t, "demo", call.Params["name"])
}

func TestEncodeXMLRPCResponseAndFault(t *testing.T) {
	resp := encodeXMLRPCResponse("1")
	require.Contains(t, string(resp), "<methodResponse>")
	require.Contains(t, string(resp), "<string>1</string>")

	fault := encodeXMLRPCFault(RPCError{Code: ErrMethodNotFound, Message: "nope"})
	require.Contains(t, string(fault), "<fault>")
	require.Contains(t, string(fault), "faultCode")
	require.Contains(t, string(fault), "-32601")
}

func TestJSONRPCRoundTrip(t *testing.T) {
	body := []byte(`{"jsonrpc":"2.0","method":"Plugin.Local.next_reading","id":7}`)
	call, id, err := decodeJSONRPC(body)
	require.NoError(t, err)
	require.Equal(t, "Plugin.Local.next_reading", call.Method)
	require.EqualValues(t, 7, id)

	out := encodeJSONRPCResponse(5.0, id)
	require.Contains(t, string(out), `"result":5`)

	errOut := encodeJSONRPCError(RPCError{Code: ErrInvalidParams, Message: "bad"}, id)
	require.Contains(t, string(errOut), `"code":-32602`)
}
