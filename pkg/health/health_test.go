package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// --- Mock implementations ---

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// --- Helpers ---

func passing() CheckFunc { return func(context.Context) error { return nil } }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type statusBody struct {
	Status string
	Checks map[string]string
}

func serve(t *testing.T, h *Health, kind Kind) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	h.Handler(kind)(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := statusBody{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			return d.ObjBytes(func(d *jx.Decoder, name []byte) error {
				msg, err := d.Str()
				body.Checks[string(name)] = msg
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return w.Code, body
}

func runN(h *Health, n int) {
	for _, p := range h.probes {
		for range n {
			p.run(context.Background())
		}
	}
}

// --- Tests ---

func TestLiveness_Passing(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	h.Register(Liveness, Check{Name: "a", Func: passing()})
	h.Register(Liveness, Check{Name: "b", Func: passing()})
	runN(h, 1)

	code, body := serve(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)
}

func TestLiveness_Thresholds(t *testing.T) {
	tests := []struct {
		name    string
		runs    int
		healthy bool
	}{
		{name: "BelowThreshold", runs: 2, healthy: true},
		{name: "AtThreshold", runs: 3, healthy: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			h.Register(Liveness, Check{Name: "db", Func: failing("connection refused")})
			runN(h, tt.runs)

			code, body := serve(t, h, Liveness)
			if tt.healthy {
				assert.Equal(t, http.StatusOK, code)
				return
			}
			assert.Equal(t, http.StatusServiceUnavailable, code)
			assert.Equal(t, "unhealthy", body.Status)
			assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)
		})
	}
}

func TestReadiness_ManualFlag(t *testing.T) {
	h := New(nil)
	h.Register(Readiness, Check{Name: "postgres", Func: passing()})

	code, body := serve(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = serve(t, h, Readiness)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = serve(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadiness_IgnoresLivenessChecks(t *testing.T) {
	h := New(nil)
	h.SetReady(true)
	h.Register(Liveness, Check{Name: "goroutines", Func: failing("too many"), FailureThreshold: 1})
	h.Register(Readiness, Check{Name: "postgres", Func: passing()})
	runN(h, 1)

	code, _ := serve(t, h, Readiness)
	assert.Equal(t, http.StatusOK, code)
	code, body := serve(t, h, Liveness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "goroutines")
}

func TestCheck_Recovers(t *testing.T) {
	h := New(nil)
	var mu sync.Mutex
	fail := true
	h.Register(Readiness, Check{Name: "flaky", FailureThreshold: 1, SuccessThreshold: 2, Func: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("down")
		}
		return nil
	}})
	h.SetReady(true)
	p := h.probes[0]

	assert.True(t, p.run(context.Background()))
	assert.False(t, h.IsReady())

	mu.Lock()
	fail = false
	mu.Unlock()

	assert.False(t, p.run(context.Background()))
	assert.False(t, h.IsReady())
	assert.True(t, p.run(context.Background()))
	assert.True(t, h.IsReady())
}

func TestCheck_Timeout(t *testing.T) {
	h := New(nil)
	h.Register(Readiness, Check{Name: "slow", Timeout: 10 * time.Millisecond, FailureThreshold: 1, Func: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	runN(h, 1)

	assert.Equal(t, context.DeadlineExceeded.Error(), h.failures(Readiness)["slow"])
}

func TestStartStop(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	h.Register(Readiness, Check{Name: "db", Func: failing("down"), FailureThreshold: 1})
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New(nil)
	h.Register(Readiness, Check{Name: "db", Func: passing()})
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.Handler(Readiness)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			_ = h.IsReady()
		}()
	}
	wg.Wait()
}

func TestPingCheck(t *testing.T) {
	require.NoError(t, PingCheck(fakePinger{})(context.Background()))

	err := PingCheck(fakePinger{err: errors.New("refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
