package rpcserver

import (
	"encoding/xml"
	"fmt"
)

// xmlMethodCall mirrors the on-wire XML-RPC methodCall element this daemon
// accepts: a method name and a single struct parameter (spec §4.9).
type xmlMethodCall struct {
	XMLName    xml.Name      `xml:"methodCall"`
	MethodName string        `xml:"methodName"`
	Params     xmlParamsElem `xml:"params"`
}

type xmlParamsElem struct {
	Param []xmlParamElem `xml:"param"`
}

type xmlParamElem struct {
	Value xmlValueElem `xml:"value"`
}

type xmlValueElem struct {
	Struct *xmlStructElem `xml:"struct"`
	String string         `xml:"string"`
}

type xmlStructElem struct {
	Member []xmlMemberElem `xml:"member"`
}

type xmlMemberElem struct {
	Name  string       `xml:"name"`
	Value xmlValueElem `xml:"value"`
}

// parsedCall is the carrier-neutral shape both xmlrpc and jsonrpc decode
// into before dispatch.
type parsedCall struct {
	Method string
	Params map[string]any
}

// decodeXMLRPC parses a methodCall body into its method name and the single
// struct parameter's members (spec: "XML-RPC methodCall with a single
// struct parameter").
func decodeXMLRPC(body []byte) (parsedCall, error) {
	var call xmlMethodCall
	if err := xml.Unmarshal(body, &call); err != nil {
		return parsedCall{}, fmt.Errorf("xmlrpc: %w", err)
	}

	params := make(map[string]any)
	if len(call.Params.Param) > 0 && call.Params.Param[0].Value.Struct != nil {
		for _, m := range call.Params.Param[0].Value.Struct.Member {
			params[m.Name] = m.Value.String
		}
	}

	return parsedCall{Method: call.MethodName, Params: params}, nil
}

// encodeXMLRPCResponse wraps result as a single-string-valued methodResponse.
func encodeXMLRPCResponse(result string) []byte {
	type value struct {
		String string `xml:"string"`
	}
	type param struct {
		Value value `xml:"value"`
	}
	type params struct {
		Param param `xml:"param"`
	}
	type methodResponse struct {
		XMLName xml.Name `xml:"methodResponse"`
		Params  params   `xml:"params"`
	}

	doc := methodResponse{Params: params{Param: param{Value: value{String: result}}}}
	out, _ := xml.Marshal(doc)
	return append([]byte(xml.Header), out...)
}

// encodeXMLRPCFault wraps an RPCError as a methodResponse fault struct.
func encodeXMLRPCFault(e RPCError) []byte {
	type member struct {
		Name  string `xml:"name"`
		Value struct {
			Int    int    `xml:"int,omitempty"`
			String string `xml:"string,omitempty"`
		} `xml:"value"`
	}
	type faultStruct struct {
		Member []member `xml:"member"`
	}
	type value struct {
		Struct faultStruct `xml:"struct"`
	}
	type fault struct {
		Value value `xml:"value"`
	}
	type methodResponse struct {
		XMLName xml.Name `xml:"methodResponse"`
		Fault   fault    `xml:"fault"`
	}

	codeMember := member{Name: "faultCode"}
	codeMember.Value.Int = e.Code
	stringMember := member{Name: "faultString"}
	stringMember.Value.String = e.Message

	doc := methodResponse{Fault: fault{Value: value{Struct: faultStruct{Member: []member{codeMember, stringMember}}}}}
	out, _ := xml.Marshal(doc)
	return append([]byte(xml.Header), out...)
}
