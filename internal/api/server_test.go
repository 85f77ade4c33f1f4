package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/smazurov/tally/internal/api/models"
	"github.com/smazurov/tally/internal/events"
	"github.com/smazurov/tally/internal/gpio"
)

// fakeLine is an in-memory LineController.
type fakeLine struct {
	mu       sync.Mutex
	state    gpio.State
	value    bool
	writeErr error
}

func (l *fakeLine) Number() int { return 597 }

func (l *fakeLine) State() gpio.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *fakeLine) ready() error {
	switch l.state {
	case gpio.StateReady:
		return nil
	case gpio.StateClosed:
		return fmt.Errorf("%w: gpio597", gpio.ErrClosed)
	default:
		return fmt.Errorf("%w: gpio597", gpio.ErrNotInitialized)
	}
}

func (l *fakeLine) Value() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ready(); err != nil {
		return false, err
	}
	return l.value, nil
}

func (l *fakeLine) SetValue(value bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ready(); err != nil {
		return err
	}
	if l.writeErr != nil {
		return l.writeErr
	}
	l.value = value
	return nil
}

func (l *fakeLine) Toggle() (bool, error) {
	current, err := l.Value()
	if err != nil {
		return false, err
	}
	if err := l.SetValue(!current); err != nil {
		return current, err
	}
	return !current, nil
}

// fakeTally records blink requests.
type fakeTally struct {
	mu       sync.Mutex
	streams  []string
	blinks   []time.Duration
	counts   []int
	blinkErr error
}

func (f *fakeTally) Blink(count int, period time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blinkErr != nil {
		return f.blinkErr
	}
	f.counts = append(f.counts, count)
	f.blinks = append(f.blinks, period)
	return nil
}

func (f *fakeTally) ActiveStreams() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.streams...)
}

func (f *fakeTally) Blinking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.counts) > 0
}

func newTestAPI(t *testing.T, opts *Options) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t, APIConfig())
	newServer(api, opts)
	return api
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, &Options{})

	resp := api.Get("/api/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	got := decode[models.HealthData](t, resp.Body.Bytes())
	if got.Status != "ok" {
		t.Errorf("status = %q, want ok", got.Status)
	}
}

func TestVersion(t *testing.T) {
	api := newTestAPI(t, &Options{})

	resp := api.Get("/api/version")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	got := decode[models.VersionData](t, resp.Body.Bytes())
	if got.Version == "" || got.GoVersion == "" {
		t.Errorf("incomplete version info: %+v", got)
	}
}

func TestBasicAuth(t *testing.T) {
	opts := &Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Line:         &fakeLine{state: gpio.StateReady},
	}
	api := newTestAPI(t, opts)

	tests := []struct {
		name string
		path string
		args []any
		want int
	}{
		{"health is public", "/api/health", nil, http.StatusOK},
		{"missing credentials", "/api/gpio", nil, http.StatusUnauthorized},
		{"valid header", "/api/gpio", []any{"Authorization: Basic " + basicAuth("admin", "secret")}, http.StatusOK},
		{"wrong password", "/api/gpio", []any{"Authorization: Basic " + basicAuth("admin", "nope")}, http.StatusUnauthorized},
		{"bearer scheme", "/api/gpio", []any{"Authorization: Bearer token"}, http.StatusUnauthorized},
		{"malformed base64", "/api/gpio", []any{"Authorization: Basic !!!"}, http.StatusUnauthorized},
		{"query fallback", "/api/gpio?auth=" + basicAuth("admin", "secret"), nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Get(tt.path, tt.args...)
			if resp.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", resp.Code, tt.want, resp.Body.String())
			}
			if tt.want == http.StatusUnauthorized && resp.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestBasicAuthDisabledWithoutCredentials(t *testing.T) {
	api := newTestAPI(t, &Options{AuthUsername: "admin", Line: &fakeLine{state: gpio.StateReady}})

	if resp := api.Get("/api/gpio"); resp.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when no password is configured", resp.Code)
	}
}

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/api/gpio", 200, "INFO"},
		{"/api/health", 200, "DEBUG"},
		{"/api/health", 503, "ERROR"},
		{"/api/gpio", 409, "WARN"},
	}
	for _, tt := range tests {
		if got := requestLevel(tt.path, tt.status).String(); got != tt.want {
			t.Errorf("requestLevel(%q, %d) = %s, want %s", tt.path, tt.status, got, tt.want)
		}
	}
}

func TestOptionalRoutes(t *testing.T) {
	api := newTestAPI(t, &Options{})

	for _, path := range []string{"/api/gpio", "/api/tally", "/api/events"} {
		if _, ok := api.OpenAPI().Paths[path]; ok {
			t.Errorf("%s registered without its dependency", path)
		}
	}
}

func TestEventsRouteRegistered(t *testing.T) {
	api := newTestAPI(t, &Options{EventBus: events.New(), Line: &fakeLine{}})

	item, ok := api.OpenAPI().Paths["/api/events"]
	if !ok || item.Get == nil {
		t.Fatal("GET /api/events not registered")
	}
	if item.Get.OperationID != "events-stream" {
		t.Errorf("OperationID = %q", item.Get.OperationID)
	}
}

func TestLineSnapshot(t *testing.T) {
	line := &fakeLine{state: gpio.StateReady, value: true}
	s := &Server{options: &Options{Line: line}, logger: testLogger()}

	got, ok := s.lineSnapshot()
	if !ok {
		t.Fatal("lineSnapshot() not ok for ready line")
	}
	if !got.Value || got.Line != 597 || got.Source != SourceSnapshot {
		t.Errorf("snapshot = %+v", got)
	}

	line.state = gpio.StateClosed
	if _, ok := s.lineSnapshot(); ok {
		t.Error("lineSnapshot() ok for closed line")
	}
}
