package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/input"
	"github.com/zsiec/metamix/internal/metadata"
)

func newTestServer(t *testing.T) (*Server, *input.Registry) {
	t.Helper()

	group := metadata.NewGroup()
	cam1 := input.NewUserDefined(input.Spec{ID: 1, Name: "cam1", Source: "a", Sink: "b"}, group)
	cam2 := input.NewUserDefined(input.Spec{ID: 2, Name: "cam2", Source: "c", Sink: "d"}, group)

	registry, err := input.NewRegistry(nil, []input.Input{cam1, cam2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := registry.SetCurrent(input.SEIKind, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var tsAdj atomic.Int64
	srv := NewServer(Config{Address: ":0"}, registry, group, clock.NewClock(1000), &tsAdj, nil)
	return srv, registry
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleStats(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		QueueSize struct {
			SEI  int `json:"sei"`
			SCTE int `json:"scte"`
		} `json:"queueSize"`
		ClockNow int64 `json:"clockNow"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ClockNow != 1000 {
		t.Fatalf("got clockNow %d, want 1000", resp.ClockNow)
	}
}

func TestHandleListInputsIncludesClear(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/input", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var infos []inputInfo
	if err := json.NewDecoder(rec.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// cam1, cam2, and the virtual clear input.
	if len(infos) != 3 {
		t.Fatalf("got %d inputs, want 3", len(infos))
	}
}

func TestHandleCurrentInput(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/input/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]inputInfo
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["sei"].Name != "cam1" {
		t.Fatalf("got sei current %q, want cam1", resp["sei"].Name)
	}
	if resp["scte"].Name != "clear" {
		t.Fatalf("got scte current %q, want clear (never selected)", resp["scte"].Name)
	}
}

func TestHandleSetCurrentInputAppliesToBothKinds(t *testing.T) {
	t.Parallel()
	srv, registry := newTestServer(t)

	rec := doRequest(t, srv, "POST", "/input/current", map[string]string{"name": "cam2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if registry.Current(input.SEIKind) != 2 || registry.Current(input.SCTEKind) != 2 {
		t.Fatalf("expected both kinds to select input 2")
	}
}

func TestHandleSetCurrentInputPerKind(t *testing.T) {
	t.Parallel()
	srv, registry := newTestServer(t)

	body := map[string]any{
		"sei":  map[string]string{"name": "cam2"},
		"scte": map[string]string{"name": "cam1"},
	}
	rec := doRequest(t, srv, "POST", "/input/current", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if registry.Current(input.SEIKind) != 2 {
		t.Fatalf("got sei current %d, want 2", registry.Current(input.SEIKind))
	}
	if registry.Current(input.SCTEKind) != 1 {
		t.Fatalf("got scte current %d, want 1", registry.Current(input.SCTEKind))
	}
}

func TestHandleSetCurrentInputUnknownNameFails(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "POST", "/input/current", map[string]string{"name": "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRestartInputSchedulesRestart(t *testing.T) {
	t.Parallel()
	srv, registry := newTestServer(t)

	rec := doRequest(t, srv, "POST", "/input/restart", map[string]string{"name": "cam1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	in, ok := registry.ByName("cam1")
	if !ok {
		t.Fatal("expected cam1 to exist")
	}
	if !in.IsRestartScheduled() {
		t.Fatal("expected a restart to be scheduled")
	}
}

func TestHandleGetAndSetConfig(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/config", nil)
	var got map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["tsAdjustment"] != 0 {
		t.Fatalf("got tsAdjustment %d, want 0", got["tsAdjustment"])
	}

	rec = doRequest(t, srv, "POST", "/config", map[string]int64{"tsAdjustment": 42})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if srv.tsAdjustment.Load() != 42 {
		t.Fatalf("got tsAdjustment %d, want 42", srv.tsAdjustment.Load())
	}
}
