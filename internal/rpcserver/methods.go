package rpcserver

import (
	"context"
	"fmt"

	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
	"github.com/xcp-ng/xcp-metrics-go/internal/producer"
	"github.com/xcp-ng/xcp-metrics-go/internal/export"
)

// openMetricsVersion is the only version string Plugin.Metrics.register
// accepts (spec §4.9).
const openMetricsVersion = "OpenMetrics 1.0.0"

// methodResult is a dispatch outcome: ContentType marks an OpenMetrics-family
// encoding so the transport layer can set the right Content-Type, with the
// payload in Binary (binary OpenMetrics, Avro) or Value (text); every other
// method returns a carrier-neutral Value.
type methodResult struct {
	Value       any
	Binary      []byte
	ContentType string
}

// Router owns the hub handle and producer registry every method needs.
type Router struct {
	Hub      *hub.Hub
	Registry *ProducerRegistry
}

func paramString(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Dispatch runs one parsed RPC call against the method table (spec §4.9).
func (rt *Router) Dispatch(ctx context.Context, call parsedCall) (methodResult, *RPCError) {
	switch call.Method {
	case "Plugin.Local.register":
		name := paramString(call.Params, "name")
		if name == "" {
			return methodResult{}, &RPCError{Code: ErrInvalidParams, Message: "missing 'name'"}
		}
		path := paramString(call.Params, "path")
		if path == "" {
			path = "/dev/shm/metrics/" + name
		}
		if err := rt.Registry.RegisterLegacy(name, producer.NewLegacyFileCollector(path, nil)); err != nil {
			return methodResult{}, &RPCError{Code: ErrInternal, Message: err.Error()}
		}
		return methodResult{Value: true}, nil

	case "Plugin.Local.deregister":
		name := paramString(call.Params, "name")
		rt.Registry.Deregister(name)
		return methodResult{Value: true}, nil

	case "Plugin.Local.next_reading":
		return methodResult{Value: 5.0}, nil

	case "Plugin.Metrics.register":
		name := paramString(call.Params, "name")
		version := paramString(call.Params, "version")
		if version != openMetricsVersion {
			return methodResult{}, &RPCError{Code: ErrAppSpecific, Message: fmt.Sprintf("unsupported version %q", version)}
		}
		if name == "" {
			return methodResult{}, &RPCError{Code: ErrInvalidParams, Message: "missing 'name'"}
		}
		if err := rt.Registry.RegisterTyped(name, producer.NewDemoCollector(name, 1)); err != nil {
			return methodResult{}, &RPCError{Code: ErrInternal, Message: err.Error()}
		}
		return methodResult{Value: true}, nil

	case "Plugin.Metrics.get_versions":
		return methodResult{Value: []string{openMetricsVersion}}, nil

	case "OpenMetrics":
		set, err := rt.Hub.Pull(ctx)
		if err != nil {
			return methodResult{}, &RPCError{Code: ErrInternal, Message: "Unable to fetch metrics from hub"}
		}
		if call.Params["protobuf"] == true || call.Params["protobuf"] == "true" {
			return methodResult{Binary: export.WriteBinary(set), ContentType: "application/openmetrics-binary"}, nil
		}
		return methodResult{Value: export.WriteText(set), ContentType: "application/openmetrics-text; version=1.0.0; charset=utf-8"}, nil

	case "OpenMetrics.Avro":
		set, err := rt.Hub.Pull(ctx)
		if err != nil {
			return methodResult{}, &RPCError{Code: ErrInternal, Message: "Unable to fetch metrics from hub"}
		}
		data, err := export.WriteAvroOCF(set)
		if err != nil {
			return methodResult{}, &RPCError{Code: ErrInternal, Message: err.Error()}
		}
		return methodResult{Binary: data, ContentType: "application/avro-ocf"}, nil

	default:
		return methodResult{}, &RPCError{Code: ErrMethodNotFound, Message: "method not found: " + call.Method}
	}
}
