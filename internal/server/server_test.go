package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"hardcore/internal/domain/revival"
	"hardcore/internal/infrastructure/session"
	"hardcore/internal/ports"
	"hardcore/internal/usecase/command"
	"hardcore/internal/usecase/lifecycle"
)

var testParticipant = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")

type fakeCommands struct {
	mu       sync.Mutex
	executed [][]string
	senders  []command.Sender
	joined   []string
	deaths   []command.DeathInput
	death    command.DeathResult
}

func (f *fakeCommands) Execute(_ context.Context, sender command.Sender, args []string) command.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, args)
	f.senders = append(f.senders, sender)
	return command.Reply{Lines: []string{"ran " + strings.Join(args, " ")}}
}

func (f *fakeCommands) Join(_ context.Context, _ uuid.UUID, name string) command.JoinResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, name)
	return command.JoinResult{Status: revival.Status{Incapacitated: true, Remaining: 2 * time.Minute}, Unacknowledged: true}
}

func (f *fakeCommands) Death(_ context.Context, in command.DeathInput) (command.DeathResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deaths = append(f.deaths, in)
	return f.death, nil
}

func (f *fakeCommands) Placeholder(_ context.Context, _ uuid.UUID, key string) (string, bool) {
	if key == command.PlaceholderIsCoolingDown {
		return "true", true
	}
	return "", false
}

func (f *fakeCommands) Placeholders(context.Context, uuid.UUID) map[string]string {
	return map[string]string{command.PlaceholderIsCoolingDown: "true"}
}

func (f *fakeCommands) joinedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joined...)
}

type fakeInspector struct {
	snapshot lifecycle.Snapshot
	err      error
}

func (f fakeInspector) Inspect(context.Context, uuid.UUID, string) (lifecycle.Snapshot, error) {
	return f.snapshot, f.err
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(New(context.Background(), cfg))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method string, url string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for key, values := range header {
		req.Header[key] = values
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Config{Commands: &fakeCommands{}, Lifecycle: fakeInspector{}})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("healthz = %d %s", resp.StatusCode, body)
	}
}

func TestStatusReportsIncapacitation(t *testing.T) {
	eligible := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	srv := newTestServer(t, Config{
		Commands: &fakeCommands{},
		Lifecycle: fakeInspector{snapshot: lifecycle.Snapshot{
			Found:          true,
			Record:         revival.Record{GroupKey: "survival-1"},
			Status:         revival.Status{Incapacitated: true, Remaining: 1500 * time.Millisecond, EligibleAt: eligible},
			Unacknowledged: true,
		}},
	})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/v1/participants/"+testParticipant.String()+"/status", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d %s", resp.StatusCode, body)
	}
	var got statusResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Incapacitated || got.RemainingSeconds != 2 || got.EligibleAt == nil || *got.EligibleAt != "2026-02-14T10:00:00Z" {
		t.Fatalf("status = %+v", got)
	}
	if got.GroupKey != "survival-1" || !got.Unacknowledged || !got.RecordFound {
		t.Fatalf("status = %+v", got)
	}
}

func TestStatusStoreFailure(t *testing.T) {
	srv := newTestServer(t, Config{
		Commands:  &fakeCommands{},
		Lifecycle: fakeInspector{err: revival.ErrStoreUnavailable},
	})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/participants/"+testParticipant.String()+"/status", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
}

func TestStatusRejectsBadID(t *testing.T) {
	srv := newTestServer(t, Config{Commands: &fakeCommands{}, Lifecycle: fakeInspector{}})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/participants/steve/status", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
}

func TestPlaceholders(t *testing.T) {
	srv := newTestServer(t, Config{Commands: &fakeCommands{}, Lifecycle: fakeInspector{}})
	base := srv.URL + "/v1/participants/" + testParticipant.String()

	resp, body := doJSON(t, http.MethodGet, base+"/placeholders/"+command.PlaceholderIsCoolingDown, nil, nil)
	if resp.StatusCode != http.StatusOK || string(body) != "true" {
		t.Fatalf("placeholder = %d %q", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodGet, base+"/placeholders/unknown", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown placeholder status = %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodGet, base+"/placeholders", nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), command.PlaceholderIsCoolingDown) {
		t.Fatalf("placeholders = %d %s", resp.StatusCode, body)
	}
}

func TestDeathAndDuplicate(t *testing.T) {
	commands := &fakeCommands{death: command.DeathResult{Status: revival.Status{Incapacitated: true, Remaining: time.Hour}}}
	srv := newTestServer(t, Config{Commands: commands, Lifecycle: fakeInspector{}})
	url := srv.URL + "/v1/participants/" + testParticipant.String() + "/death"

	resp, body := doJSON(t, http.MethodPost, url, deathRequest{GroupKey: "survival-1", Cause: "lava", Location: &revival.Location{World: "nether", Y: 31}}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("death status = %d %s", resp.StatusCode, body)
	}
	if len(commands.deaths) != 1 || commands.deaths[0].Cause != "lava" || commands.deaths[0].Location.World != "nether" {
		t.Fatalf("deaths = %+v", commands.deaths)
	}

	commands.death = command.DeathResult{Duplicate: true}
	resp, body = doJSON(t, http.MethodPost, url, deathRequest{}, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"duplicate":true`) {
		t.Fatalf("duplicate death = %d %s", resp.StatusCode, body)
	}
}

func TestCommandSenders(t *testing.T) {
	commands := &fakeCommands{}
	srv := newTestServer(t, Config{Commands: commands, Lifecycle: fakeInspector{}})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/commands", commandRequest{Args: []string{"reset", "Steve"}}, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "ran reset Steve") {
		t.Fatalf("console command = %d %s", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/commands", commandRequest{
		ParticipantID: testParticipant.String(),
		Name:          "Steve",
		Args:          []string{"revive"},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("participant command = %d", resp.StatusCode)
	}

	if commands.senders[0].IsParticipant || !commands.senders[0].HasPermission(command.PermissionAdmin) {
		t.Fatalf("console sender = %+v", commands.senders[0])
	}
	if !commands.senders[1].IsParticipant || commands.senders[1].ParticipantID != testParticipant {
		t.Fatalf("participant sender = %+v", commands.senders[1])
	}
}

func TestAdminTokenRequired(t *testing.T) {
	srv := newTestServer(t, Config{Commands: &fakeCommands{}, Lifecycle: fakeInspector{}, AdminToken: "s3cret"})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/commands", commandRequest{Args: []string{"help"}}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("without token status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/commands", commandRequest{Args: []string{"help"}}, http.Header{"Authorization": {"Bearer s3cret"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("with token status = %d", resp.StatusCode)
	}
}

func TestPlaceholderOnlyHidesMutations(t *testing.T) {
	srv := newTestServer(t, Config{Commands: &fakeCommands{}, Lifecycle: fakeInspector{}, PlaceholderOnly: true, Hub: session.NewHub()})
	base := srv.URL + "/v1/participants/" + testParticipant.String()

	for _, target := range []string{base + "/death", base + "/join", srv.URL + "/v1/commands"} {
		resp, _ := doJSON(t, http.MethodPost, target, map[string]string{}, nil)
		if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("POST %s status = %d", target, resp.StatusCode)
		}
	}
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/ws", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ws status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, base+"/placeholders", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("placeholders status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "hardcore_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	srv := newTestServer(t, Config{Commands: &fakeCommands{}, Lifecycle: fakeInspector{}, Gatherer: registry})
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/metrics", nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "hardcore_test_total 1") {
		t.Fatalf("metrics = %d %s", resp.StatusCode, body)
	}
}

func TestWebsocketSession(t *testing.T) {
	hub := session.NewHub()
	t.Cleanup(hub.Close)
	commands := &fakeCommands{}
	srv := newTestServer(t, Config{
		Commands:           commands,
		Lifecycle:          fakeInspector{},
		Hub:                hub,
		SessionPermissions: []string{command.PermissionRevive},
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?participant=" + testParticipant.String() + "&name=Steve"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := conn.WriteMessage(websocket.TextMessage, []byte("/hardcore revive pay")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var n ports.Notification
	if err := conn.ReadJSON(&n); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n.Kind != ports.NotifyCommandReply || n.Message != "ran revive pay" {
		t.Fatalf("reply = %+v", n)
	}

	if names := commands.joinedNames(); len(names) != 1 || names[0] != "Steve" {
		t.Fatalf("joined = %v", names)
	}
	if !hub.IsOnline(testParticipant) {
		t.Fatalf("participant should be online")
	}
	commands.mu.Lock()
	sender := commands.senders[0]
	commands.mu.Unlock()
	if !sender.HasPermission(command.PermissionRevive) || sender.HasPermission(command.PermissionAdmin) {
		t.Fatalf("session sender = %+v", sender)
	}
}

func TestWebsocketRejectsMissingParticipant(t *testing.T) {
	hub := session.NewHub()
	t.Cleanup(hub.Close)
	srv := newTestServer(t, Config{Commands: &fakeCommands{}, Lifecycle: fakeInspector{}, Hub: hub})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/ws?name=Steve", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
