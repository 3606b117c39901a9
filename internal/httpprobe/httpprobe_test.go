package httpprobe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/hakim/reconsweep/internal/config"
	"github.com/hakim/reconsweep/internal/logging"
	"github.com/hakim/reconsweep/internal/models"
	"github.com/hakim/reconsweep/internal/reconerr"
	"github.com/hakim/reconsweep/internal/storage"
)

func TestReconcile(t *testing.T) {
	candidates := []string{"a.example.com", "b.example.com", "c.example.com"}
	results := []models.LivenessResult{
		{Host: "a.example.com", Alive: true, Scheme: models.SchemeHTTP, URL: "http://a.example.com"},
		{Host: "a.example.com", Alive: true, Scheme: models.SchemeHTTPS, URL: "https://a.example.com"},
		{Alive: true, Scheme: models.SchemeHTTP, URL: "http://b.example.com"},
		{Host: "b.example.com", Error: "refused"},
		{Host: "evil.example.net", Alive: true, Scheme: models.SchemeHTTPS, URL: "https://evil.example.net"},
	}

	got := Reconcile(candidates, results)
	if len(got) != 3 {
		t.Fatalf("Reconcile() returned %d results, want one per candidate: %+v", len(got), got)
	}

	byHost := map[string]models.LivenessResult{}
	for _, r := range got {
		if _, dup := byHost[r.Host]; dup {
			t.Fatalf("host %s appears twice", r.Host)
		}
		byHost[r.Host] = r
	}

	if a := byHost["a.example.com"]; !a.Alive || a.Scheme != models.SchemeHTTPS {
		t.Errorf("a.example.com = %+v, want alive over https", a)
	}
	if b := byHost["b.example.com"]; !b.Alive || b.Scheme != models.SchemeHTTP {
		t.Errorf("b.example.com = %+v, want alive over http", b)
	}
	if c := byHost["c.example.com"]; c.Alive || c.Error != noResponse {
		t.Errorf("c.example.com = %+v, want dead with placeholder error", c)
	}
	if _, ok := byHost["evil.example.net"]; ok {
		t.Error("result for a non-candidate survived reconciliation")
	}
	if !slices.IsSortedFunc(got, func(a, b models.LivenessResult) int { return strings.Compare(a.Host, b.Host) }) {
		t.Error("results not sorted by host")
	}
}

func TestReconcileKeepsConcreteError(t *testing.T) {
	got := Reconcile([]string{"a.example.com"}, []models.LivenessResult{{Host: "a.example.com", Error: "tls handshake"}})
	if got[0].Error != "tls handshake" {
		t.Errorf("Error = %q", got[0].Error)
	}
}

func TestReconcileMatchesPortfulURL(t *testing.T) {
	got := Reconcile([]string{"a.example.com"}, []models.LivenessResult{
		{Alive: true, Scheme: models.SchemeHTTPS, URL: "https://a.example.com:8443"},
	})
	if !got[0].Alive {
		t.Errorf("result with port not matched to candidate: %+v", got)
	}
}

func TestAliveSubsetOfCandidates(t *testing.T) {
	candidates := []string{"a.example.com", "b.example.com"}
	prober := fakeProber{results: []models.LivenessResult{
		{Host: "a.example.com", Alive: true, Scheme: models.SchemeHTTPS},
		{Host: "z.example.com", Alive: true, Scheme: models.SchemeHTTPS},
	}}

	results, err := Run(context.Background(), candidates, prober, RunOptions{Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range Alive(results) {
		if !slices.Contains(candidates, r.Host) {
			t.Errorf("alive host %s not in candidate set", r.Host)
		}
	}
}

type fakeProber struct {
	results []models.LivenessResult
	err     error
	calls   *atomic.Int32
}

func (f fakeProber) Probe(context.Context, []string) ([]models.LivenessResult, error) {
	if f.calls != nil {
		f.calls.Add(1)
	}
	return f.results, f.err
}

func TestRunEmptyInput(t *testing.T) {
	var calls atomic.Int32
	results, err := Run(context.Background(), nil, fakeProber{calls: &calls}, RunOptions{Logger: logging.Discard()})
	if err != nil || len(results) != 0 {
		t.Errorf("Run() = %v, %v; want empty, nil", results, err)
	}
	if calls.Load() != 0 {
		t.Error("prober invoked for an empty host list")
	}
}

func TestRunEnvironmentCheck(t *testing.T) {
	allDead := fakeProber{results: []models.LivenessResult{
		{Host: "a.example.com", Error: "dial tcp: network is unreachable"},
	}}

	t.Run("resolver unreachable", func(t *testing.T) {
		_, err := Run(context.Background(), []string{"a.example.com"}, allDead, RunOptions{
			Resolver:        closedUDPAddr(t),
			ResolverTimeout: 300 * time.Millisecond,
			Logger:          logging.Discard(),
		})
		var envErr *reconerr.ProbeEnvironmentError
		if !errors.As(err, &envErr) {
			t.Fatalf("error = %v, want *ProbeEnvironmentError", err)
		}
		if reconerr.IsFatal(err) {
			t.Error("environment errors must be recoverable")
		}
	})

	t.Run("resolver answers", func(t *testing.T) {
		results, err := Run(context.Background(), []string{"a.example.com"}, allDead, RunOptions{
			Resolver:        startDNSServer(t),
			ResolverTimeout: 2 * time.Second,
			Logger:          logging.Discard(),
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(Alive(results)) != 0 {
			t.Errorf("unexpected alive results: %+v", results)
		}
	})

	t.Run("no resolver configured", func(t *testing.T) {
		if _, err := Run(context.Background(), []string{"a.example.com"}, allDead, RunOptions{Logger: logging.Discard()}); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
}

func TestRunPropagatesEngineError(t *testing.T) {
	_, err := Run(context.Background(), []string{"a.example.com"}, fakeProber{err: errors.New("httprobe exited 2")}, RunOptions{Logger: logging.Discard()})
	if err == nil || !strings.Contains(err.Error(), "httprobe exited 2") {
		t.Errorf("error = %v", err)
	}
}

func closedUDPAddr(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := pc.LocalAddr().String()
	pc.Close()
	return addr
}

func startDNSServer(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			w.WriteMsg(m)
		}),
	}
	go srv.ActivateAndServe()
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

// steeringClient sends :443 to tlsAddr and everything else to plainAddr
func steeringClient(tlsAddr, plainAddr string) *http.Client {
	dialer := &net.Dialer{Timeout: time.Second}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				_, port, _ := net.SplitHostPort(addr)
				if port == "443" {
					return dialer.DialContext(ctx, network, tlsAddr)
				}
				return dialer.DialContext(ctx, network, plainAddr)
			},
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func TestNativeProberPrefersHTTPS(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer tlsSrv.Close()
	plainSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer plainSrv.Close()

	p := NewNativeProber(NativeOptions{
		Concurrency: 2,
		Timeout:     2 * time.Second,
		Client:      steeringClient(tlsSrv.Listener.Addr().String(), plainSrv.Listener.Addr().String()),
	})

	results, err := p.Probe(context.Background(), []string{"both.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !results[0].Alive || results[0].Scheme != models.SchemeHTTPS {
		t.Fatalf("results = %+v, want one alive https result", results)
	}
	if results[0].URL != "https://both.example.com" {
		t.Errorf("URL = %q", results[0].URL)
	}
}

func TestNativeProberFallsBackToHTTP(t *testing.T) {
	plainSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://elsewhere.example.com/", http.StatusMovedPermanently)
	}))
	defer plainSrv.Close()

	host := strings.TrimPrefix(plainSrv.URL, "http://")
	var seen atomic.Int32
	p := NewNativeProber(NativeOptions{
		Timeout:  2 * time.Second,
		Insecure: true,
		OnResult: func(models.LivenessResult) { seen.Add(1) },
	})

	results, err := p.Probe(context.Background(), []string{host})
	if err != nil {
		t.Fatal(err)
	}
	r := results[0]
	if !r.Alive || r.Scheme != models.SchemeHTTP {
		t.Fatalf("result = %+v, want alive over http", r)
	}
	if r.StatusCode != http.StatusMovedPermanently {
		t.Errorf("StatusCode = %d, redirects must not be followed", r.StatusCode)
	}
	if seen.Load() != 1 {
		t.Errorf("OnResult called %d times", seen.Load())
	}
}

func TestNativeProberDeadHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host := ln.Addr().String()
	ln.Close()

	p := NewNativeProber(NativeOptions{Timeout: time.Second, RateLimit: 100})
	results, err := p.Probe(context.Background(), []string{host})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Alive || results[0].Error == "" {
		t.Errorf("result = %+v, want dead with error", results[0])
	}
}

func TestNativeTimesOutStalledHost(t *testing.T) {
	release := make(chan struct{})
	stall := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	tlsSrv := httptest.NewTLSServer(stall)
	defer tlsSrv.Close()
	plainSrv := httptest.NewServer(stall)
	defer plainSrv.Close()
	defer close(release)

	const timeout = 200 * time.Millisecond
	var seen []models.LivenessResult
	p := NewNativeProber(NativeOptions{
		Concurrency: 1,
		Timeout:     timeout,
		Client:      steeringClient(tlsSrv.Listener.Addr().String(), plainSrv.Listener.Addr().String()),
		OnResult:    func(r models.LivenessResult) { seen = append(seen, r) },
	})

	// one attempt per scheme, each bounded by Timeout
	start := time.Now()
	_, err := p.checkHost(context.Background(), "stalled.example.com")
	elapsed := time.Since(start)

	var failure *reconerr.ProbeFailure
	if !errors.As(err, &failure) || failure.Host != "stalled.example.com" {
		t.Fatalf("checkHost() error = %v, want *reconerr.ProbeFailure", err)
	}
	if !errors.Is(err, reconerr.ErrTimeout) {
		t.Errorf("checkHost() error = %v, want reconerr.ErrTimeout", err)
	}
	if limit := 2*timeout + 500*time.Millisecond; elapsed > limit {
		t.Errorf("stalled host took %s, want under %s", elapsed, limit)
	}

	results, err := p.Probe(context.Background(), []string{"stalled.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Alive {
		t.Fatalf("results = %+v, want one dead host", results)
	}
	if !strings.Contains(results[0].Error, reconerr.ErrTimeout.Error()) {
		t.Errorf("Error = %q, want it to mention %q", results[0].Error, reconerr.ErrTimeout)
	}
	if len(seen) != 1 {
		t.Errorf("OnResult called %d times", len(seen))
	}
}

func TestNativeRespectsConcurrency(t *testing.T) {
	var inFlight, maxSeen, served atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		served.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hosts := make([]string, 10)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("h%d.example.com", i)
	}

	p := NewNativeProber(NativeOptions{
		Concurrency: 2,
		Timeout:     2 * time.Second,
		Client:      steeringClient(srv.Listener.Addr().String(), srv.Listener.Addr().String()),
	})
	results, err := p.Probe(context.Background(), hosts)
	if err != nil {
		t.Fatal(err)
	}

	if len(Alive(results)) != len(hosts) {
		t.Fatalf("alive = %d, want %d", len(Alive(results)), len(hosts))
	}
	if got := served.Load(); got != int32(len(hosts)) {
		t.Errorf("server handled %d requests, want %d", got, len(hosts))
	}
	if got := maxSeen.Load(); got > 2 || got < 1 {
		t.Errorf("peak in-flight requests = %d, want between 1 and 2", got)
	}
}

func TestNativeFinishesInFlightHostsWithinGrace(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hosts := []string{"a.example.com", "b.example.com", "c.example.com", "d.example.com", "e.example.com"}
	const grace = 2 * time.Second
	p := NewNativeProber(NativeOptions{
		Concurrency: 1,
		Timeout:     5 * time.Second,
		Grace:       grace,
		Client:      steeringClient(srv.Listener.Addr().String(), srv.Listener.Addr().String()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	start := time.Now()
	results, err := p.Probe(ctx, hosts)
	elapsed := time.Since(start)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Probe() error = %v, want context.Canceled", err)
	}
	if len(results) == 0 || len(results) >= len(hosts) {
		t.Fatalf("results = %d, want the in-flight hosts only", len(results))
	}
	for _, r := range results {
		if !r.Alive {
			t.Errorf("in-flight host %s was cut off: %+v", r.Host, r)
		}
	}
	if elapsed > grace {
		t.Errorf("Probe() took %s, want under the %s grace period", elapsed, grace)
	}
}

func TestNativeProberEmptyInput(t *testing.T) {
	results, err := NewNativeProber(NativeOptions{}).Probe(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Errorf("Probe(nil) = %v, %v", results, err)
	}
}

func TestNativeProberCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewNativeProber(NativeOptions{}).Probe(ctx, []string{"a.example.com", "b.example.com"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(results) != 0 {
		t.Errorf("no host should start after cancellation, got %+v", results)
	}
}

func TestHttprobeProber(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	bin := filepath.Join(t.TempDir(), "httprobe")
	script := "#!/bin/sh\nwhile read h; do echo \"https://$h\"; echo \"http://$h\"; done\n"
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	p := &HttprobeProber{Binary: bin, Concurrency: 5, Timeout: time.Second}
	hosts := []string{"a.example.com", "b.example.com"}
	results, err := Run(context.Background(), hosts, p, RunOptions{Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	for _, r := range results {
		if !r.Alive || r.Scheme != models.SchemeHTTPS {
			t.Errorf("%s = %+v, want https", r.Host, r)
		}
	}
}

func TestNewProberEngines(t *testing.T) {
	cfg := config.DefaultConfig()
	for engine, want := range map[string]string{
		"native":   "*httpprobe.NativeProber",
		"httprobe": "*httpprobe.HttprobeProber",
		"httpx":    "*httpprobe.HttpxProber",
	} {
		cfg.Probe.Engine = engine
		p, err := NewProber(cfg, logging.Discard(), nil)
		if err != nil {
			t.Fatalf("NewProber(%s) error = %v", engine, err)
		}
		if got := typeName(p); got != want {
			t.Errorf("NewProber(%s) = %s, want %s", engine, got, want)
		}
	}

	cfg.Probe.Engine = "curl"
	if _, err := NewProber(cfg, logging.Discard(), nil); err == nil {
		t.Error("expected an error for an unknown engine")
	}
}

func typeName(p Prober) string {
	switch p.(type) {
	case *NativeProber:
		return "*httpprobe.NativeProber"
	case *HttprobeProber:
		return "*httpprobe.HttprobeProber"
	case *HttpxProber:
		return "*httpprobe.HttpxProber"
	default:
		return "unknown"
	}
}

func TestWriteArtifactsAndReadAlive(t *testing.T) {
	layout, err := storage.CreateRunDir(t.TempDir(), "example.com", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	results := []models.LivenessResult{
		{Host: "a.example.com", Alive: true, Scheme: models.SchemeHTTPS, URL: "https://a.example.com", StatusCode: 200},
		{Host: "b.example.com", Error: "refused"},
		{Host: "c.example.com", Alive: true, Scheme: models.SchemeHTTP, URL: "http://c.example.com", StatusCode: 403},
	}
	if err := WriteArtifacts(layout, results); err != nil {
		t.Fatal(err)
	}

	lines, err := storage.ReadLines(layout.AlivePath())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(lines, []string{"a.example.com", "c.example.com"}) {
		t.Errorf("alive.txt = %v", lines)
	}

	alive, err := ReadAlive(layout)
	if err != nil {
		t.Fatal(err)
	}
	if len(alive) != 2 || alive[1].Scheme != models.SchemeHTTP {
		t.Errorf("ReadAlive() = %+v", alive)
	}

	os.Remove(layout.LivenessPath())
	alive, err = ReadAlive(layout)
	if err != nil || len(alive) != 2 || alive[0].URL != "https://a.example.com" {
		t.Errorf("ReadAlive() fallback = %+v, %v", alive, err)
	}
}

func TestWriteArtifactsEmpty(t *testing.T) {
	layout, err := storage.CreateRunDir(t.TempDir(), "example.com", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteArtifacts(layout, nil); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(layout.AlivePath())
	if err != nil || info.Size() != 0 {
		t.Errorf("alive.txt should exist and be empty: %v %v", info, err)
	}
}
