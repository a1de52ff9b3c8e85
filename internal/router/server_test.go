package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/you/extraneous/internal/protocol"
)

// startTestServer serves the channel mux over httptest and returns the
// host:port to dial.
func startTestServer(t *testing.T, opts Options) string {
	t.Helper()
	srv := NewServer(newTestHandler(t, nil), opts)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestClientServer_Exchanges(t *testing.T) {
	addr := startTestServer(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Dial already performs the echo probe.
	client, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	resp, err := client.Send(ctx, protocol.Request{Type: protocol.RequestSetWatched, VideoID: "v1", Value: true})
	if err != nil {
		t.Fatalf("Send setWatched: %v", err)
	}
	if resp.Type != protocol.ResponseCompleted {
		t.Fatalf("setWatched = %+v", resp)
	}

	resp, err = client.Send(ctx, protocol.Request{Type: protocol.RequestIsWatched, VideoID: "v1"})
	if err != nil {
		t.Fatalf("Send isWatched: %v", err)
	}
	if resp.Type != protocol.ResponseIsWatched || !resp.Value {
		t.Fatalf("isWatched = %+v, want true", resp)
	}

	// Unknown tags pass client validation and come back as the error
	// variant, not a dropped exchange.
	resp, err = client.Send(ctx, protocol.Request{Type: "frobnicate"})
	if err != nil {
		t.Fatalf("Send unknown: %v", err)
	}
	if resp.Type != protocol.ResponseError {
		t.Fatalf("unknown tag = %+v, want error variant", resp)
	}
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	addr := startTestServer(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if _, err := client.Send(ctx, protocol.Request{Type: protocol.RequestIsWatched}); err == nil {
		t.Fatalf("Send without videoId: want validation error")
	}
}

func TestServer_MalformedFrameAnswersError(t *testing.T) {
	addr := startTestServer(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/channel", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	var resp protocol.Response
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != protocol.ResponseError {
		t.Fatalf("garbage frame = %+v, want error variant", resp)
	}

	// The channel survives: a well-formed exchange still works.
	if err := wsjson.Write(ctx, conn, protocol.Request{Type: protocol.RequestEcho}); err != nil {
		t.Fatalf("write echo: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if resp.Type != protocol.ResponseEcho {
		t.Fatalf("echo after garbage = %+v", resp)
	}
}

func TestServer_MissingPayloadAnswersError(t *testing.T) {
	addr := startTestServer(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/channel", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, conn, protocol.Request{Type: protocol.RequestIsWatched}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp protocol.Response
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != protocol.ResponseError || !strings.Contains(resp.Description, "videoId") {
		t.Fatalf("missing payload = %+v, want error naming videoId", resp)
	}
}

func TestServer_Healthz(t *testing.T) {
	addr := startTestServer(t, Options{})

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestServer_RateLimit(t *testing.T) {
	addr := startTestServer(t, Options{RateRPS: 1, RateBurst: 1})

	first, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", first.StatusCode)
	}

	second, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.StatusCode)
	}
}

func TestServer_MetricsEndpointOptIn(t *testing.T) {
	withMetrics := startTestServer(t, Options{Metrics: true})
	resp, err := http.Get("http://" + withMetrics + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}

	without := startTestServer(t, Options{})
	resp, err = http.Get("http://" + without + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("metrics status without opt-in = %d, want 404", resp.StatusCode)
	}
}
