// Package metrics runs the optional observability HTTP server: Prometheus
// /metrics, a liveness endpoint, and (optionally) net/http/pprof.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	rtsup "punchd/internal/runtime/supervisor"
	logx "punchd/pkg/logx"
)

// Config controls the observability HTTP server.
//
// Security:
//   - Prefer binding to localhost (default).
//   - Binding to a non-loopback address requires AllowInsecure.
type Config struct {
	Enabled       bool
	Addr          string
	Pprof         bool
	AllowInsecure bool
}

type Server struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	ln  net.Listener
	srv *http.Server
	sup *rtsup.Supervisor
}

func New(cfg Config, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, log: log}
}

// Addr returns the bound listen address, or "" when not running. Useful in
// tests with Addr ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start is idempotent. A disabled config or a failed bind is logged and
// swallowed; observability must never take the daemon down.
func (s *Server) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || !s.cfg.Enabled {
		return
	}
	cur := s.cfg

	addr := strings.TrimSpace(cur.Addr)
	if addr == "" {
		addr = "127.0.0.1:9090"
	}
	if !cur.AllowInsecure && !isLoopbackAddr(addr) {
		s.log.Error("metrics refused to start: non-loopback addr requires allow_insecure",
			logx.String("addr", addr),
		)
		return
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error("metrics listen failed", logx.String("addr", addr), logx.Err(err))
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cur.Pprof {
		mux.HandleFunc("/debug/pprof/", hpprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)
	}

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.ln = ln
	s.srv = srv
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "metrics"))),
	)

	s.sup.Go("http.serve", func(c context.Context) error {
		err := srv.Serve(ln)
		if c.Err() != nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	s.sup.Go0("http.shutdown", func(c context.Context) {
		<-c.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	})

	s.log.Info("metrics started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("pprof", cur.Pprof),
	)
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	srv := s.srv
	ln := s.ln
	s.sup = nil
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}

	if srv != nil {
		sctx := ctx
		if sctx == nil {
			sctx = context.Background()
		}
		_ = srv.Shutdown(sctx)
		_ = srv.Close()
	}
	if ln != nil {
		_ = ln.Close()
	}
	_ = sup.Stop(5 * time.Second)
	s.log.Info("metrics stopped")
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
