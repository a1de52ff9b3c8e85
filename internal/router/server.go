package router

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/you/extraneous/internal/protocol"
)

// Server exposes the message channel plus health and metrics endpoints.
type Server struct {
	httpServer *http.Server
	handler    *Handler
	metrics    *Metrics
	limiter    *ipLimiter
}

type Options struct {
	Addr      string
	RateRPS   int
	RateBurst int
	Metrics   bool
}

func NewServer(handler *Handler, opts Options) *Server {
	srv := &Server{
		handler: handler,
		metrics: handler.Metrics,
		limiter: newIPLimiter(opts.RateRPS, opts.RateBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/channel", srv.handleChannel)
	if opts.Metrics && srv.metrics != nil {
		mux.Handle("/metrics", srv.metrics.Handler())
	}

	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.rateLimit(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleChannel upgrades to a WebSocket and serves one-shot exchanges:
// every received request produces exactly one response on the same
// connection, in order. A malformed frame answers with the error variant
// rather than tearing the channel down.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("channel: accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	s.metrics.IncChannelClients(1)
	defer s.metrics.IncChannelClients(-1)

	ctx := r.Context()
	for {
		// Frames are read raw: wsjson.Read tears the connection down on a
		// decode failure, and a malformed frame must be answered instead.
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
			}
			return
		}
		req, err := protocol.DecodeRequest(data)
		if err != nil {
			if writeErr := wsjson.Write(ctx, conn, protocol.Errorf("%v", err)); writeErr != nil {
				return
			}
			continue
		}

		resp := s.handler.Handle(ctx, req)
		if err := wsjson.Write(ctx, conn, resp); err != nil {
			return
		}
	}
}

// rateLimit applies a per-client token bucket ahead of every endpoint.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.allow(host) {
			s.metrics.IncRateLimited()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	log.Printf("background channel listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type ipLimiter struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	perIP map[string]*rate.Limiter
}

func newIPLimiter(rps, burst int) *ipLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	return &ipLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		perIP: make(map[string]*rate.Limiter),
	}
}

func (l *ipLimiter) allow(host string) bool {
	l.mu.Lock()
	limiter, ok := l.perIP[host]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.perIP[host] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
