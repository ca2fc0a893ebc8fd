package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	logx "punchd/pkg/logx"
)

func TestServerServesMetricsAndHealth(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	addr := s.Addr()
	if addr == "" {
		t.Fatal("server did not bind")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatal("metrics output missing runtime collectors")
	}

	// pprof disabled by default
	resp, err = http.Get("http://" + addr + "/debug/pprof/")
	if err != nil {
		t.Fatalf("GET pprof: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("pprof served without being enabled")
	}
}

func TestServerRefusesNonLoopbackWithoutOverride(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "0.0.0.0:0"}, logx.Nop())
	s.Start(context.Background())
	defer s.Stop(context.Background())
	if s.Addr() != "" {
		t.Fatal("server bound to a non-loopback address without allow_insecure")
	}
}

func TestServerDisabled(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	s.Start(context.Background())
	if s.Addr() != "" {
		t.Fatal("disabled server bound a listener")
	}
	s.Stop(context.Background())
}
