package rpcserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
	"github.com/xcp-ng/xcp-metrics-go/internal/producer"
	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
)

// connLimiter caps how many RPC requests this socket admits per second,
// guarding the hub against a misbehaving plugin hammering the local socket.
var connLimiter = rate.NewLimiter(rate.Limit(200), 50)

// Server wraps the RPC router's Unix-socket listener (spec §4.9). It follows
// cc-backend's net.Listen + http.Server + gorilla/mux + gorilla/handlers
// convention, adapted from a TCP address to a filesystem socket path.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	socketPath string
}

// NewServer builds the RPC router listening at socketPath, dispatching onto
// rt.
func NewServer(socketPath string, rt *Router) *Server {
	r := mux.NewRouter()
	s := &Server{router: r, socketPath: socketPath}

	r.HandleFunc("/", s.handleRPC(rt)).Methods(http.MethodPost)

	logged := handlers.CombinedLoggingHandler(xlog.InfoWriter, r)
	s.httpServer = &http.Server{
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
		Handler:      logged,
	}
	return s
}

// handleRPC dispatches a POST body by Content-Type: text/xml (or anything
// unrecognized) decodes as XML-RPC, application/json and its json-rpc
// variants decode as JSON-RPC (spec §4.9).
func (s *Server) handleRPC(rt *Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !connLimiter.Allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		ct := r.Header.Get("Content-Type")
		if isJSONContentType(ct) {
			s.serveJSONRPC(w, r.Context(), rt, body)
			return
		}
		s.serveXMLRPC(w, r.Context(), rt, body)
	}
}

func isJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	switch ct {
	case "application/json", "application/json-rpc", "application/jsonrequest":
		return true
	default:
		return false
	}
}

func (s *Server) serveXMLRPC(w http.ResponseWriter, ctx context.Context, rt *Router, body []byte) {
	call, err := decodeXMLRPC(body)
	if err != nil {
		w.Header().Set("Content-Type", "text/xml")
		w.Write(encodeXMLRPCFault(RPCError{Code: ErrParse, Message: err.Error()}))
		return
	}

	result, rpcErr := rt.Dispatch(ctx, call)
	w.Header().Set("Content-Type", "text/xml")
	if rpcErr != nil {
		w.Write(encodeXMLRPCFault(*rpcErr))
		return
	}
	if result.ContentType != "" {
		w.Header().Set("Content-Type", result.ContentType)
		if result.Binary != nil {
			w.Write(result.Binary)
			return
		}
		if text, ok := result.Value.(string); ok {
			w.Write([]byte(text))
			return
		}
	}
	w.Write(encodeXMLRPCResponse(xmlRPCResultString(result.Value)))
}

func (s *Server) serveJSONRPC(w http.ResponseWriter, ctx context.Context, rt *Router, body []byte) {
	call, id, err := decodeJSONRPC(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(encodeJSONRPCError(RPCError{Code: ErrParse, Message: err.Error()}, nil))
		return
	}

	result, rpcErr := rt.Dispatch(ctx, call)
	if rpcErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(encodeJSONRPCError(*rpcErr, id))
		return
	}
	if result.ContentType != "" {
		w.Header().Set("Content-Type", result.ContentType)
		if result.Binary != nil {
			w.Write(result.Binary)
			return
		}
		if text, ok := result.Value.(string); ok {
			w.Write([]byte(text))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(encodeJSONRPCResponse(result.Value, id))
}

// xmlRPCResultString renders a dispatch Value as the single string an
// XML-RPC methodResponse carries; this router's non-OpenMetrics methods
// only ever return booleans, numbers or string slices.
func xmlRPCResultString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// Listen binds the Unix socket, removing any stale one left behind by a
// previous run. Split from Serve so a caller can drop privileges between
// binding and serving, the same ordering cmd/cc-backend/server.go uses for
// a privileged TCP port.
func (s *Server) Listen() (net.Listener, error) {
	_ = os.Remove(s.socketPath)
	return net.Listen("unix", s.socketPath)
}

// Serve runs the RPC server on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		s.httpServer.Close()
	}()

	xlog.Infof("rpc server listening at %s", s.socketPath)
	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// NewRouter wires up a Router over a fresh ProducerRegistry.
func NewRouter(h *hub.Hub, sched *producer.Scheduler) *Router {
	return &Router{Hub: h, Registry: NewProducerRegistry(h, sched)}
}
