package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/upchat/upchat-server/internal/config"
	"github.com/upchat/upchat-server/internal/core"
	"github.com/upchat/upchat-server/internal/dispatch"
	"github.com/upchat/upchat-server/internal/store"
	"github.com/upchat/upchat-server/internal/store/memory"
)

// testEnv bundles the pieces transport tests need to observe server state.
type testEnv struct {
	ts       *httptest.Server
	registry *core.Registry
	store    store.Store
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	return startTestServerWithConfig(t, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		SendBuffer:        32,
	})
}

func startTestServerWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	registry := core.NewRegistry(&logger)
	st := memory.New(&logger)
	dispatcher := dispatch.New(registry, st, &logger)

	server := NewServer(dispatcher, st, cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, registry: registry, store: st}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
