package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/ringctl/internal/ring"
	"github.com/danmuck/ringctl/internal/testutil/testlog"
)

type fakeControl struct {
	injected  []string
	maxCycles []*int
	delays    []time.Duration
}

func (f *fakeControl) Inject(message string) {
	f.injected = append(f.injected, message)
}

func (f *fakeControl) ConfigChanged(maxCycles *int, delay time.Duration) {
	f.maxCycles = append(f.maxCycles, maxCycles)
	f.delays = append(f.delays, delay)
}

func newTestServer(t *testing.T) (*Server, *fakeControl, *StatusRecorder) {
	t.Helper()
	control := &fakeControl{}
	recorder := &StatusRecorder{}
	srv := New(Config{
		Node:    "ring-a",
		Control: control,
		Status:  recorder,
		Peers:   func() []string { return []string{"ring-b"} },
		Logger:  testlog.Logger(t),
	})
	return srv, control, recorder
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestPingActionTriggersInject(t *testing.T) {
	srv, control, _ := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/actions/ping", `{"token":"hello"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(control.injected) != 1 || control.injected[0] != "hello" {
		t.Fatalf("injected: %v", control.injected)
	}
}

func TestPingActionRequiresToken(t *testing.T) {
	srv, control, _ := newTestServer(t)
	for _, body := range []string{``, `{}`, `{"token":""}`, `not json`} {
		w := do(t, srv, http.MethodPost, "/actions/ping", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d", body, w.Code)
		}
	}
	if len(control.injected) != 0 {
		t.Fatalf("nothing must be injected: %v", control.injected)
	}
}

func TestStatusReflectsRecorder(t *testing.T) {
	srv, _, recorder := newTestServer(t)
	recorder.Record(ring.StateHalted, "Max cycles reached. Time to completion is 3.50 seconds.")

	w := do(t, srv, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp struct {
		Node   string   `json:"node"`
		State  string   `json:"state"`
		Status string   `json:"status"`
		Peers  []string `json:"peers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Node != "ring-a" || resp.State != "halted" {
		t.Fatalf("response: %+v", resp)
	}
	if !strings.Contains(resp.Status, "3.50 seconds") {
		t.Fatalf("status line: %q", resp.Status)
	}
	if len(resp.Peers) != 1 || resp.Peers[0] != "ring-b" {
		t.Fatalf("peers: %v", resp.Peers)
	}
}

func TestConfigUpdate(t *testing.T) {
	srv, control, _ := newTestServer(t)
	w := do(t, srv, http.MethodPut, "/config", `{"max_cycles":2,"delay":"500ms"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if len(control.maxCycles) != 1 || control.maxCycles[0] == nil || *control.maxCycles[0] != 2 {
		t.Fatalf("max_cycles: %v", control.maxCycles)
	}
	if control.delays[0] != 500*time.Millisecond {
		t.Fatalf("delay: %v", control.delays[0])
	}

	// Null clears the cycle limit.
	w = do(t, srv, http.MethodPut, "/config", `{"max_cycles":null}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d", w.Code)
	}
	if control.maxCycles[1] != nil {
		t.Fatal("null max_cycles must map to unset")
	}
}

func TestConfigUpdateRejectsBadInput(t *testing.T) {
	srv, control, _ := newTestServer(t)
	for _, body := range []string{`{"max_cycles":-1}`, `{"delay":"-2s"}`, `{"delay":"soon"}`, `nope`} {
		w := do(t, srv, http.MethodPut, "/config", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d", body, w.Code)
		}
	}
	if len(control.maxCycles) != 0 {
		t.Fatal("invalid config must not reach the loop")
	}
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}
