package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/babelchat-server/internal/proto"
	"github.com/vovakirdan/babelchat-server/internal/session"
)

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, frame string) {
	t.Helper()

	if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Outbound {
	t.Helper()

	var out proto.Outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return out
}

func expectSilence(t *testing.T, ctx context.Context, conn *websocket.Conn) {
	t.Helper()

	readCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	var out proto.Outbound
	if err := wsjson.Read(readCtx, conn, &out); err == nil {
		t.Fatalf("unexpected frame %+v", out)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp := env.do(t, stdhttp.MethodGet, "/health", "", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestLobbyTranslation(t *testing.T) {
	env := startTestServer(t)
	tokenA := env.register(t, "alice")
	tokenB := env.register(t, "bruno")

	if resp := env.do(t, stdhttp.MethodPatch, "/api/profile", tokenA, `{"language":"en"}`); resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("set language: status %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dial(t, ctx, env.wsURL("lobby", tokenA))
	connB := dial(t, ctx, env.wsURL("lobby", tokenB))
	env.waitMembers(t, "lobby", 2)

	send(t, ctx, connA, `{"message":"hello"}`)

	if got := read(t, ctx, connA); got != (proto.Outbound{Message: "hello", Username: "alice"}) {
		t.Fatalf("sender got %+v", got)
	}
	if got := read(t, ctx, connB); got != (proto.Outbound{Message: "hola", Username: "alice"}) {
		t.Fatalf("recipient got %+v", got)
	}
	if n := env.translator.calls.Load(); n != 1 {
		t.Fatalf("expected 1 translator call, got %d", n)
	}
}

func TestTranslationFailureKeepsRecipientJoined(t *testing.T) {
	env := startTestServer(t)
	tokenA := env.register(t, "alice")
	tokenB := env.register(t, "bruno")
	env.do(t, stdhttp.MethodPatch, "/api/profile", tokenA, `{"language":"en"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dial(t, ctx, env.wsURL("lobby", tokenA))
	connB := dial(t, ctx, env.wsURL("lobby", tokenB))
	env.waitMembers(t, "lobby", 2)

	env.translator.failNext.Store(true)
	send(t, ctx, connA, `{"message":"hello"}`)
	read(t, ctx, connA)

	got := read(t, ctx, connB)
	if got.Username != "alice" || got.Message != session.Fallback("hello") {
		t.Fatalf("expected fallback frame, got %+v", got)
	}
	if !strings.Contains(got.Message, "hello") {
		t.Fatalf("fallback lost the original text: %q", got.Message)
	}

	send(t, ctx, connB, `{"message":"gracias"}`)
	if got := read(t, ctx, connA); got != (proto.Outbound{Message: "thank you", Username: "bruno"}) {
		t.Fatalf("sender A got %+v", got)
	}
	if got := read(t, ctx, connB); got != (proto.Outbound{Message: "gracias", Username: "bruno"}) {
		t.Fatalf("sender B got %+v", got)
	}
}

func TestMalformedFrameIsIgnored(t *testing.T) {
	env := startTestServer(t)
	tokenA := env.register(t, "alice")
	tokenB := env.register(t, "bruno")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dial(t, ctx, env.wsURL("lobby", tokenA))
	connB := dial(t, ctx, env.wsURL("lobby", tokenB))
	env.waitMembers(t, "lobby", 2)

	send(t, ctx, connA, `{"foo":"bar"}`)
	expectSilence(t, ctx, connB)

	send(t, ctx, connA, `{"message":"hola"}`)
	if got := read(t, ctx, connB); got.Message != "hola" {
		t.Fatalf("expected relay after malformed frame, got %+v", got)
	}
	if got := read(t, ctx, connA); got.Message != "hola" {
		t.Fatalf("expected echo after malformed frame, got %+v", got)
	}
}

func TestWebSocketRejectsBadCredentials(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, token := range []string{"", "not-a-jwt"} {
		conn, resp, err := websocket.Dial(ctx, env.wsURL("lobby", token), nil)
		if err == nil {
			_ = conn.Close(websocket.StatusNormalClosure, "done")
			t.Fatalf("expected dial with token %q to fail", token)
		}
		if resp == nil || resp.StatusCode != stdhttp.StatusUnauthorized {
			t.Fatalf("expected 401 for token %q, got %v", token, resp)
		}
		env.waitMembers(t, "lobby", 0)
	}
}

func TestWebSocketAcceptsBearerHeader(t *testing.T) {
	env := startTestServer(t)
	token := env.register(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL("lobby", ""), &websocket.DialOptions{
		HTTPHeader: stdhttp.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	env.waitMembers(t, "lobby", 1)

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	env.waitMembers(t, "lobby", 0)
}
