package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweetpotato0/tutorgraph/middleware"
	"github.com/sweetpotato0/tutorgraph/middleware/limiter"
	"github.com/sweetpotato0/tutorgraph/middleware/validator"
	"github.com/sweetpotato0/tutorgraph/tutor"
)

type fakeTutor struct {
	response    string
	err         error
	health      tutor.Health
	lastSession string
	lastPrompt  string
}

func (f *fakeTutor) Invoke(ctx context.Context, sessionID, prompt string) (string, string, error) {
	f.lastSession = sessionID
	f.lastPrompt = prompt
	if f.err != nil {
		return "", "", f.err
	}
	return f.response, sessionID, nil
}

func (f *fakeTutor) Health(ctx context.Context) tutor.Health {
	return f.health
}

func healthyFake(response string) *fakeTutor {
	return &fakeTutor{
		response: response,
		health: tutor.Health{
			Status:              tutor.StatusHealthy,
			GraphAvailable:      true,
			CheckpointAvailable: true,
			CheckpointType:      "sqlite",
		},
	}
}

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	fake := healthyFake("A binary tree is a tree where each node has at most two children.")
	srv := New(fake)
	handler := srv.Handler()

	w := postChat(t, handler, `{"prompt":"What is a binary tree?","session_id":"s1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "s1" {
		t.Errorf("expected session id s1, got %q", resp.SessionID)
	}
	if resp.Response != fake.response {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if fake.lastPrompt != "What is a binary tree?" {
		t.Errorf("prompt not forwarded: %q", fake.lastPrompt)
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	fake := healthyFake("hello")
	srv := New(fake)

	w := postChat(t, srv.Handler(), `{"prompt":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if fake.lastSession != resp.SessionID {
		t.Errorf("generated id not forwarded to the pipeline: %q vs %q", fake.lastSession, resp.SessionID)
	}
}

func TestChatRejectsInvalidBody(t *testing.T) {
	srv := New(healthyFake("x"))

	w := postChat(t, srv.Handler(), `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestChatValidatesPrompt(t *testing.T) {
	fake := healthyFake("x")
	srv := New(fake, WithChain(middleware.NewChain(validator.NewPromptValidator(100))))

	w := postChat(t, srv.Handler(), `{"prompt":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank prompt, got %d", w.Code)
	}
	if fake.lastPrompt != "" {
		t.Errorf("pipeline must not run for an invalid prompt")
	}
}

func TestChatRateLimited(t *testing.T) {
	srv := New(healthyFake("x"), WithChain(middleware.NewChain(
		limiter.NewRateLimiter(1, time.Minute),
	)))
	handler := srv.Handler()

	if w := postChat(t, handler, `{"prompt":"one","session_id":"s1"}`); w.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", w.Code)
	}
	if w := postChat(t, handler, `{"prompt":"two","session_id":"s1"}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	// A different session has its own budget.
	if w := postChat(t, handler, `{"prompt":"three","session_id":"s2"}`); w.Code != http.StatusOK {
		t.Errorf("other session should pass, got %d", w.Code)
	}
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"no response", tutor.ErrNoResponse, http.StatusInternalServerError, "No response generated"},
		{"store down", tutor.ErrStoreUnavailable, http.StatusServiceUnavailable, ""},
		{"unknown agent", tutor.ErrUnknownAgent, http.StatusInternalServerError, ""},
		{"generation failure", tutor.ErrGenerationFailure, http.StatusInternalServerError, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := healthyFake("")
			fake.err = tc.err
			srv := New(fake)

			w := postChat(t, srv.Handler(), `{"prompt":"hi","session_id":"s1"}`)
			if w.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, w.Code)
			}
			if tc.detail != "" && !strings.Contains(w.Body.String(), tc.detail) {
				t.Errorf("expected detail %q, got %s", tc.detail, w.Body.String())
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := New(healthyFake("x"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var h tutor.Health
		if err := json.NewDecoder(w.Body).Decode(&h); err != nil {
			t.Fatal(err)
		}
		if h.Status != tutor.StatusHealthy || !h.GraphAvailable || !h.CheckpointAvailable {
			t.Errorf("unexpected health payload: %+v", h)
		}
		if h.CheckpointType != "sqlite" {
			t.Errorf("expected checkpoint_type sqlite, got %q", h.CheckpointType)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		fake := &fakeTutor{health: tutor.Health{
			Status:         tutor.StatusDegraded,
			GraphAvailable: true,
		}}
		srv := New(fake)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", w.Code)
		}
	})
}

func wsDial(t *testing.T, baseURL, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestWebSocketChat(t *testing.T) {
	fake := healthyFake("It is a hierarchical data structure.")
	srv := New(fake)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	alice := wsDial(t, ts.URL, "/ws/s1?client_id=alice")
	defer alice.Close()
	bob := wsDial(t, ts.URL, "/ws/s1?client_id=bob")
	defer bob.Close()

	// Wait until both clients are registered in the room.
	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().RoomSize("s1") < 2 {
		if time.Now().After(deadline) {
			t.Fatal("clients never joined the room")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := alice.WriteMessage(websocket.TextMessage, []byte("What is a binary tree?")); err != nil {
		t.Fatal(err)
	}

	// The sender receives the assistant reply directly.
	if got := readText(t, alice); got != fake.response {
		t.Errorf("sender reply: expected %q, got %q", fake.response, got)
	}

	// The other participant sees the prompt and then the reply.
	if got := readText(t, bob); got != "alice: What is a binary tree?" {
		t.Errorf("peer prompt broadcast: got %q", got)
	}
	if got := readText(t, bob); got != fake.response {
		t.Errorf("peer reply broadcast: got %q", got)
	}
}

func TestWebSocketLeaveBroadcast(t *testing.T) {
	srv := New(healthyFake("x"))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	alice := wsDial(t, ts.URL, "/ws/s1?client_id=alice")
	bob := wsDial(t, ts.URL, "/ws/s1?client_id=bob")
	defer bob.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().RoomSize("s1") < 2 {
		if time.Now().After(deadline) {
			t.Fatal("clients never joined the room")
		}
		time.Sleep(5 * time.Millisecond)
	}

	alice.Close()

	if got := readText(t, bob); got != "alice has left s1." {
		t.Errorf("leave broadcast: got %q", got)
	}
}

func TestWebSocketRoomsAreIsolated(t *testing.T) {
	fake := healthyFake("reply")
	srv := New(fake)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	alice := wsDial(t, ts.URL, "/ws/s1?client_id=alice")
	defer alice.Close()
	carol := wsDial(t, ts.URL, "/ws/s2?client_id=carol")
	defer carol.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().RoomSize("s1") < 1 || srv.Hub().RoomSize("s2") < 1 {
		if time.Now().After(deadline) {
			t.Fatal("clients never joined their rooms")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := alice.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
		t.Fatal(err)
	}
	if got := readText(t, alice); got != "reply" {
		t.Fatalf("sender reply: got %q", got)
	}

	// Carol, in another session, must receive nothing.
	carol.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := carol.ReadMessage(); err == nil {
		t.Errorf("unexpected cross-session message: %q", string(data))
	}
}
