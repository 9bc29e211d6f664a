package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Handler serves one shard's RPCs, implemented by a wrapper around
// internal/searcher/local.Searcher.
type Handler interface {
	HandleSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	HandleRetrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResponse, error)
	HandleSize(ctx context.Context) (*SizeResponse, error)
	HandleGetWebpage(ctx context.Context, req GetWebpageRequest) (*GetPageResponse, error)
	HandleGetHomepage(ctx context.Context, req GetHomepageRequest) (*GetPageResponse, error)
}

// Server listens on a TCP address and serves one shard replica's RPCs,
// generalizing the teacher daemon server's unix-socket accept loop to
// TCP with length-prefixed CBOR framing.
type Server struct {
	addr     string
	handler  Handler
	listener net.Listener

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer builds a server that will listen on addr.
func NewServer(addr string, handler Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Addr returns the listener's actual address, valid after
// ListenAndServe has started listening (useful when addr was ":0").
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	defer listener.Close()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("rpc: accept error", slog.String("error", err.Error()))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		slog.Warn("rpc: set connection deadline", slog.String("error", err.Error()))
	}

	reqBytes, err := readFrame(conn)
	if err != nil {
		return
	}
	var req Request
	if err := cbor.Unmarshal(reqBytes, &req); err != nil {
		s.writeError(conn, 0, fmt.Sprintf("decode request: %v", err))
		return
	}

	resp := s.handle(ctx, req)
	respBytes, err := cbor.Marshal(resp)
	if err != nil {
		slog.Error("rpc: encode response", slog.String("error", err.Error()))
		return
	}
	_ = writeFrame(conn, respBytes)
}

func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodSearch:
		var payload SearchRequest
		if err := cbor.Unmarshal(req.Payload, &payload); err != nil {
			return errorResponse(req.ID, err)
		}
		resp, err := s.handler.HandleSearch(ctx, payload)
		return encodeOrError(req.ID, resp, err)

	case MethodRetrieve:
		var payload RetrieveRequest
		if err := cbor.Unmarshal(req.Payload, &payload); err != nil {
			return errorResponse(req.ID, err)
		}
		resp, err := s.handler.HandleRetrieve(ctx, payload)
		return encodeOrError(req.ID, resp, err)

	case MethodSize:
		resp, err := s.handler.HandleSize(ctx)
		return encodeOrError(req.ID, resp, err)

	case MethodGetWebpage:
		var payload GetWebpageRequest
		if err := cbor.Unmarshal(req.Payload, &payload); err != nil {
			return errorResponse(req.ID, err)
		}
		resp, err := s.handler.HandleGetWebpage(ctx, payload)
		return encodeOrError(req.ID, resp, err)

	case MethodGetHomepage:
		var payload GetHomepageRequest
		if err := cbor.Unmarshal(req.Payload, &payload); err != nil {
			return errorResponse(req.ID, err)
		}
		resp, err := s.handler.HandleGetHomepage(ctx, payload)
		return encodeOrError(req.ID, resp, err)

	default:
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method %q", req.Method)}
	}
}

func encodeOrError(id uint64, v any, err error) Response {
	if err != nil {
		return errorResponse(id, err)
	}
	payload, encErr := cbor.Marshal(v)
	if encErr != nil {
		return errorResponse(id, encErr)
	}
	return Response{ID: id, Payload: payload}
}

func errorResponse(id uint64, err error) Response {
	return Response{ID: id, Error: err.Error()}
}

func (s *Server) writeError(conn net.Conn, id uint64, message string) {
	respBytes, err := cbor.Marshal(Response{ID: id, Error: message})
	if err != nil {
		return
	}
	_ = writeFrame(conn, respBytes)
}

// Close stops the server, unblocking ListenAndServe.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		return listener.Close()
	}
	return nil
}
