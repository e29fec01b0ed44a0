package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/auth"
	"github.com/vovakirdan/babelchat-server/internal/config"
	"github.com/vovakirdan/babelchat-server/internal/core"
	"github.com/vovakirdan/babelchat-server/internal/language"
	"github.com/vovakirdan/babelchat-server/internal/metrics"
	"github.com/vovakirdan/babelchat-server/internal/session"
	"github.com/vovakirdan/babelchat-server/internal/store"
	"github.com/vovakirdan/babelchat-server/internal/store/sqlite"
	"github.com/vovakirdan/babelchat-server/internal/translate"
)

// fakeTranslator is a LibreTranslate-compatible server with a tiny dictionary.
type fakeTranslator struct {
	server   *httptest.Server
	failNext atomic.Bool
	calls    atomic.Int32
}

var dictionary = map[string]map[string]string{
	"es": {"hello": "hola", "how are you?": "¿cómo estás?"},
	"en": {"hola": "hello", "gracias": "thank you"},
}

func newFakeTranslator(t *testing.T) *fakeTranslator {
	t.Helper()

	f := &fakeTranslator{}
	f.server = httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		f.calls.Add(1)
		var req struct {
			Q      string `json:"q"`
			Source string `json:"source"`
			Target string `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(stdhttp.StatusBadRequest)
			return
		}
		if f.failNext.CompareAndSwap(true, false) {
			w.WriteHeader(stdhttp.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
			return
		}
		text, ok := dictionary[req.Target][req.Q]
		if !ok {
			text = "[" + req.Target + "] " + req.Q
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"translatedText": text})
	}))
	t.Cleanup(f.server.Close)
	return f
}

type testEnv struct {
	ts         *httptest.Server
	store      store.Store
	auth       *auth.Service
	hub        *core.Hub
	translator *fakeTranslator

	mu      sync.Mutex
	changed []int64
}

func (e *testEnv) languageChanges() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.changed...)
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	disabledLogger := zerolog.Nop()
	st := createTestStore(t)
	authService := createTestAuthService(t, st, "test-secret")
	m := metrics.New(metrics.NewRegistry())

	hub := core.NewHub(&disabledLogger, m)
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(hubDone)
	}()

	translator := newFakeTranslator(t)
	gateway := translate.NewGateway(
		translate.NewLibreBackend(translator.server.URL, "", translator.server.Client()),
		translate.Options{Timeout: 2 * time.Second, MaxConcurrent: 4},
		&disabledLogger, m,
	)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second

	env := &testEnv{store: st, auth: authService, hub: hub, translator: translator}
	handler := NewHandler(Deps{
		Auth:  authService,
		Store: st,
		Bus:   hub,
		OnLanguageChange: func(_ context.Context, userID int64) {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.changed = append(env.changed, userID)
		},
		Session: session.Deps{
			Bus:        hub,
			Resolver:   language.NewStoreResolver(st, cfg.DefaultLanguage, &disabledLogger),
			Translator: gateway,
			Metrics:    m,
			Logger:     &disabledLogger,
		},
	}, &cfg, &disabledLogger)

	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.CloseClientConnections()
		ts.Close()
		cancel()
		<-hubDone
	})

	env.ts = ts
	return env
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()

	account, err := e.auth.Register(context.Background(), auth.Registration{Username: username, Password: "password123"})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return account.Token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *stdhttp.Response {
	t.Helper()

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) wsURL(room, token string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/rooms/" + room
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func (e *testEnv) waitMembers(t *testing.T, room string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := e.hub.Members(context.Background(), room)
		if err != nil {
			t.Fatalf("members: %v", err)
		}
		if n == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d members in %q, got %d", want, room, n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
