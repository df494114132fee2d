package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mccartykim/wonderback/internal/analysis"
	"github.com/mccartykim/wonderback/internal/device"
	"github.com/mccartykim/wonderback/internal/infrastructure/config"
	"github.com/mccartykim/wonderback/internal/infrastructure/logging"
	"github.com/mccartykim/wonderback/internal/session"
	"github.com/mccartykim/wonderback/internal/settings"
	"github.com/mccartykim/wonderback/internal/skills"
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// stubAnalyzer returns a fixed set of issues without touching a backend.
type stubAnalyzer struct {
	mu     sync.Mutex
	issues []analysis.Issue
	calls  int
}

func (a *stubAnalyzer) Analyze(_ context.Context, req *analysis.Request) (*analysis.Response, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return &analysis.Response{
		Issues: a.issues,
		Metadata: &analysis.ResponseMetadata{
			Model:           a.Model(),
			TotalUtterances: len(req.Utterances),
			IssuesFound:     len(a.issues),
		},
	}, nil
}

func (a *stubAnalyzer) Model() string { return "stub-model" }

func (a *stubAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type testEnv struct {
	srv      *Server
	http     *httptest.Server
	registry *device.Registry
	queue    *skills.Queue
	analyzer *stubAnalyzer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logging.Default()
	registry := device.NewRegistry("")
	queue := skills.NewQueue()
	analyzer := &stubAnalyzer{}
	sessions := session.NewManager(t.TempDir(), nil, logger)

	srv, err := New(Deps{
		Config:   config.APIConfig{},
		WS:       config.WebSocketConfig{MaxMessageSize: 1 << 20},
		Logger:   logger,
		Registry: registry,
		Settings: settings.NewManager(),
		Skills:   queue,
		Sessions: sessions,
		Analyzer: analyzer,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.startedAt = time.Now()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, http: ts, registry: registry, queue: queue, analyzer: analyzer}
}

// do issues a request with optional token and JSON body, returning the
// response and decoded body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.http.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(agentTokenHeader, token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	//nolint:errcheck // 304 and empty bodies decode to nil
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" || body["model"] != "stub-model" || body["version"] != "test" {
		t.Errorf("health body = %v", body)
	}
}

func TestGuardOpenBeforeFirstApproval(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPatch, "/settings", "", map[string]any{"debug_logging": true})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("guarded route before any approval: status = %d, want 200", resp.StatusCode)
	}
}

func TestDeviceApprovalFlow(t *testing.T) {
	env := newTestEnv(t)

	// Register.
	resp, body := env.do(t, http.MethodPost, "/device/register", "",
		map[string]any{"device_name": "Pixel 8", "device_serial": "SER123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	deviceID, _ := body["device_id"].(string)
	if deviceID == "" || body["status"] != "pending" {
		t.Fatalf("register body = %v", body)
	}

	// Pending list shows it.
	_, pending := env.do(t, http.MethodGet, "/device/pending", "", nil)
	if devices, _ := pending["devices"].([]any); len(devices) != 1 {
		t.Errorf("pending devices = %v", pending["devices"])
	}

	// Approve mints a token and flips enforcement on.
	resp, approved := env.do(t, http.MethodPost, "/device/approve/"+deviceID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	token, _ := approved["auth_token"].(string)
	if !tokenPattern.MatchString(token) {
		t.Fatalf("auth_token = %q, want 32 hex chars", token)
	}

	// Device discovers its token via the settings poll, even though the
	// settings revision has not changed.
	resp, poll := env.do(t, http.MethodGet, "/settings?device_id="+deviceID+"&revision=0", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings poll status = %d, want 200 on token-delivery path", resp.StatusCode)
	}
	if poll["auth_token"] != token {
		t.Errorf("poll auth_token = %v, want %q", poll["auth_token"], token)
	}

	// Guarded route now rejects missing and bogus tokens.
	resp, _ = env.do(t, http.MethodPatch, "/settings", "", map[string]any{"debug_logging": true})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPatch, "/settings", "deadbeefdeadbeefdeadbeefdeadbeef",
		map[string]any{"debug_logging": true})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bogus token: status = %d, want 401", resp.StatusCode)
	}

	// And accepts the real one.
	resp, _ = env.do(t, http.MethodPatch, "/settings", token, map[string]any{"debug_logging": true})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", resp.StatusCode)
	}

	// Registration stays reachable after lockout.
	resp, _ = env.do(t, http.MethodPost, "/device/register", "",
		map[string]any{"device_name": "Second"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("register after lockout: status = %d, want 200", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/device/register", "", map[string]any{"device_name": "  "})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("blank name: status = %d, want 422", resp.StatusCode)
	}
}

func TestApproveUnknownDevice(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/device/approve/ffffffff", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body["code"] != "not_found" {
		t.Errorf("error code = %v", body["code"])
	}
}

func TestSettingsRevisionCycle(t *testing.T) {
	env := newTestEnv(t)

	// Fresh manager, revision 0: poll at revision 0 is not modified.
	resp, _ := env.do(t, http.MethodGet, "/settings?revision=0", "", nil)
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("unchanged poll status = %d, want 304", resp.StatusCode)
	}

	// A write bumps the revision once.
	resp, updated := env.do(t, http.MethodPatch, "/settings", "", map[string]any{"tts_suppressed": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	if updated["revision"] != float64(1) || updated["tts_suppressed"] != true {
		t.Errorf("updated settings = %v", updated)
	}

	// Stale client sees the new blob; current client gets 304 again.
	resp, _ = env.do(t, http.MethodGet, "/settings?revision=0", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stale poll status = %d, want 200", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/settings?revision=1", "", nil)
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("current poll status = %d, want 304", resp.StatusCode)
	}
}

func TestSettingsTTSToggle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/settings/tts?suppress=true", "", nil)
	if resp.StatusCode != http.StatusOK || body["tts_suppressed"] != true {
		t.Errorf("suppress=true: status = %d body = %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/settings/tts?suppress=false", "", nil)
	if resp.StatusCode != http.StatusOK || body["tts_suppressed"] != false {
		t.Errorf("suppress=false: status = %d body = %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPost, "/settings/tts?suppress=maybe", "", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("suppress=maybe: status = %d, want 422", resp.StatusCode)
	}
}

func TestSkillExecuteRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	type execResult struct {
		resp *http.Response
		body map[string]any
	}
	done := make(chan execResult, 1)

	go func() {
		resp, body := env.do(t, http.MethodPost, "/skill/execute", "",
			map[string]any{"skill_name": "tap", "parameters": map[string]any{"x": 100}, "timeout_ms": 5000})
		done <- execResult{resp, body}
	}()

	// Wait for the command to land in the pending set, then drain it as
	// the device would.
	var requestID string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, poll := env.do(t, http.MethodGet, "/skill/pending", "", nil)
		if skillsList, _ := poll["skills"].([]any); len(skillsList) == 1 {
			first, _ := skillsList[0].(map[string]any)
			requestID, _ = first["request_id"].(string)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if requestID == "" {
		t.Fatal("pending skill never appeared")
	}

	// Drained set is empty on the next poll.
	_, poll := env.do(t, http.MethodGet, "/skill/pending", "", nil)
	if skillsList, _ := poll["skills"].([]any); len(skillsList) != 0 {
		t.Errorf("second drain returned %v, want empty", poll["skills"])
	}

	// Report the result; the blocked caller resolves.
	resp, body := env.do(t, http.MethodPost, "/skill/result", "",
		map[string]any{"request_id": requestID, "success": true, "message": "tapped"})
	if resp.StatusCode != http.StatusOK || body["accepted"] != true {
		t.Fatalf("report: status = %d body = %v", resp.StatusCode, body)
	}

	res := <-done
	if res.resp.StatusCode != http.StatusOK {
		t.Fatalf("execute status = %d", res.resp.StatusCode)
	}
	if res.body["success"] != true || res.body["message"] != "tapped" || res.body["request_id"] != requestID {
		t.Errorf("execute body = %v", res.body)
	}

	// History records the result.
	_, history := env.do(t, http.MethodGet, "/skill/history", "", nil)
	if entries, _ := history["history"].([]any); len(entries) != 1 {
		t.Errorf("history = %v, want one entry", history["history"])
	}
}

func TestSkillExecuteTimeout(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/skill/execute", "",
		map[string]any{"skill_name": "swipe", "timeout_ms": 50})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("timeout must still be a 200 envelope, got %d", resp.StatusCode)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "Timeout after") {
		t.Errorf("message = %q, want timeout description", msg)
	}
}

func TestAnalyzeRecordsSession(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.issues = []analysis.Issue{
		{Severity: analysis.SeverityError, Category: analysis.CategoryLabelQuality, Issue: "Generic label"},
	}

	payload := map[string]any{
		"utterances": []map[string]any{
			{"text": "Button", "timestamp": 1, "navigation": "SWIPE_RIGHT"},
		},
		"context": map[string]any{"trigger": "MANUAL"},
	}

	resp, body := env.do(t, http.MethodPost, "/analyze", "", payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analyze status = %d", resp.StatusCode)
	}
	if issues, _ := body["issues"].([]any); len(issues) != 1 {
		t.Errorf("issues = %v", body["issues"])
	}

	_, summary := env.do(t, http.MethodGet, "/session/summary", "", nil)
	if summary["total_utterances"] != float64(1) || summary["total_issues"] != float64(1) {
		t.Errorf("session summary = %v", summary)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/session/start", "", map[string]any{"session_id": "run1"})
	if resp.StatusCode != http.StatusOK || body["session_id"] != "run1" {
		t.Fatalf("start: status = %d body = %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPost, "/session/note", "", map[string]any{"note": "login screen ok"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("note status = %d", resp.StatusCode)
	}

	resp, summary := env.do(t, http.MethodPost, "/session/end", "", nil)
	if resp.StatusCode != http.StatusOK || summary["session_id"] != "run1" {
		t.Fatalf("end: status = %d body = %v", resp.StatusCode, summary)
	}

	// Ending again with no active session is a 404.
	resp, _ = env.do(t, http.MethodPost, "/session/end", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second end: status = %d, want 404", resp.StatusCode)
	}

	_, history := env.do(t, http.MethodGet, "/session/history", "", nil)
	if sessions, _ := history["sessions"].([]any); len(sessions) != 1 {
		t.Errorf("history = %v", history["sessions"])
	}
}

func TestSessionExportFormats(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/session/start", "", map[string]any{"session_id": "export"})

	resp, _ := env.do(t, http.MethodGet, "/session/export?format=json", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("json export status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, env.http.URL+"/session/export?format=markdown", nil)
	mdResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("markdown export: %v", err)
	}
	defer mdResp.Body.Close()
	if ct := mdResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("markdown content type = %q", ct)
	}

	resp, _ = env.do(t, http.MethodGet, "/session/export?format=xml", "", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad format status = %d, want 422", resp.StatusCode)
	}
}

func TestStreamPingPong(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing stream: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("sending ping: %v", err)
	}

	var reply map[string]any
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("reading pong: %v", err)
	}
	if reply["type"] != "pong" {
		t.Errorf("reply = %v, want pong", reply)
	}
}

func TestStreamFlushOnScreenChange(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.issues = []analysis.Issue{
		{Severity: analysis.SeverityWarning, Category: analysis.CategoryStructure, Issue: "Ungrouped"},
	}

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing stream: %v", err)
	}
	defer conn.Close()

	send := func(text, nav string) {
		t.Helper()
		msg := map[string]any{
			"type":  "utterance",
			"event": map[string]any{"text": text, "timestamp": 1, "navigation": nav},
		}
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("sending utterance: %v", err)
		}
	}

	send("Button", "SWIPE_RIGHT")
	send("Image", "SCREEN_CHANGE") // triggers analysis

	var reply map[string]any
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("reading issue: %v", err)
	}
	if reply["type"] != "issue" {
		t.Fatalf("reply = %v, want issue", reply)
	}
	data, _ := reply["data"].(map[string]any)
	if data["issue"] != "Ungrouped" {
		t.Errorf("issue data = %v", data)
	}

	if env.analyzer.callCount() != 1 {
		t.Errorf("analyzer calls = %d, want 1", env.analyzer.callCount())
	}
}

func TestStaticTokenEnablesGuard(t *testing.T) {
	logger := logging.Default()
	registry := device.NewRegistry("presharedpresharedpreshared12345")
	srv, err := New(Deps{
		WS:       config.WebSocketConfig{},
		Logger:   logger,
		Registry: registry,
		Settings: settings.NewManager(),
		Skills:   skills.NewQueue(),
		Sessions: session.NewManager(t.TempDir(), nil, logger),
		Analyzer: &stubAnalyzer{},
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	// Guard is on from boot.
	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/settings",
		bytes.NewReader([]byte(`{"debug_logging":true}`)))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token with static auth: status = %d, want 401", resp.StatusCode)
	}

	// The pre-shared token passes.
	req, _ = http.NewRequest(http.MethodPatch, ts.URL+"/settings",
		bytes.NewReader([]byte(`{"debug_logging":true}`)))
	req.Header.Set(agentTokenHeader, "presharedpresharedpreshared12345")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("static token: status = %d, want 200", resp.StatusCode)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	logger := logging.Default()

	_, err := New(Deps{Logger: logger})
	if err == nil {
		t.Error("New without registry should fail")
	}

	_, err = New(Deps{})
	if err == nil {
		t.Error("New without logger should fail")
	}
}

func TestErrorEnvelopeShape(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/device/approve/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, key := range []string{"status", "code", "message"} {
		if _, ok := body[key]; !ok {
			t.Errorf("error envelope missing %q: %v", key, body)
		}
	}
	if fmt.Sprintf("%v", body["status"]) != "404" {
		t.Errorf("envelope status = %v, want 404", body["status"])
	}
}
