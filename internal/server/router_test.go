package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fieldreport/internal/auth"
	"fieldreport/internal/backend"
	"fieldreport/internal/capture"
	"fieldreport/internal/export"
	"fieldreport/internal/handler"
	"fieldreport/internal/hub"
	"fieldreport/internal/identity"
	"fieldreport/internal/prefs"
	"fieldreport/internal/session"
	"fieldreport/internal/upload"
	"fieldreport/internal/view"
)

type testEnv struct {
	router  *gin.Engine
	records *backend.MemoryStore
	stop    func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"secure_url":"https://cdn.example.com/media"}`))
	}))
	t.Cleanup(uploadSrv.Close)

	records := backend.New()
	kv := prefs.NewMemory()
	identityStore := identity.New(kv)
	sessions := session.NewManager(kv, records)

	pipeline := capture.New(capture.Options{
		Identity:    identityStore,
		Sessions:    sessions,
		Records:     records,
		Uploader:    &upload.HTTPUploader{BaseURL: uploadSrv.URL, CloudID: "c", Preset: "p"},
		Permissions: capture.OpenPermissions{},
	})

	locations := view.Locations(records)
	pictures := view.Pictures(records)
	feedHub := hub.New()
	stop := handler.StartFeedBroadcasts(context.Background(), feedHub, locations, pictures)
	t.Cleanup(stop)

	tokenCfg := auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	router := NewRouter(Deps{
		Identity:    identityStore,
		Sessions:    sessions,
		Pipeline:    pipeline,
		Exporter:    export.New(records, t.TempDir()),
		Locations:   locations,
		Pictures:    pictures,
		Hub:         feedHub,
		TokenConfig: tokenCfg,
	})

	return &testEnv{router: router, records: records, stop: stop}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	w := e.do(t, http.MethodPost, "/v1/login", "", body, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token     string `json:"token"`
		IsPrimary bool   `json:"isPrimary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return resp.Token
}

func TestLoginValidationAndPrimary(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(map[string]string{"username": "", "password": ""})
	w := env.do(t, http.MethodPost, "/v1/login", "", body, "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty credentials, got %d", w.Code)
	}

	body, _ = json.Marshal(map[string]string{"username": "a", "password": "p"})
	w = env.do(t, http.MethodPost, "/v1/login", "", body, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["isPrimary"] != true {
		t.Fatalf("first-ever login must be primary: %v", resp)
	}

	body, _ = json.Marshal(map[string]string{"username": "b", "password": "q"})
	w = env.do(t, http.MethodPost, "/v1/login", "", body, "application/json")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["isPrimary"] != false {
		t.Fatalf("second account must not be primary: %v", resp)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/records/locations", "", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/records/locations", "not-a-token", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestSubmitLocationEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "pw")

	body, _ := json.Marshal(map[string]float64{"latitude": 25.2, "longitude": 55.3})
	w := env.do(t, http.MethodPost, "/v1/submit/location", "", body, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/v1/records/locations", token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(resp.Records))
	}
	rec := resp.Records[0]
	if rec["username"] != "alice" || rec["latitude"] != 25.2 {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["deviceId"] == "" {
		t.Fatalf("record must carry the device identity")
	}
}

func TestSubmitLocationValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/submit/location", "", []byte(`{}`), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without coordinates, got %d", w.Code)
	}
}

func TestSubmitMediaEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "pw")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("kind", "image"); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	part, err := mw.CreateFormFile("file", "pic.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte("image-bytes"))
	mw.Close()

	w := env.do(t, http.MethodPost, "/v1/submit/media", "", buf.Bytes(), mw.FormDataContentType())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/v1/records/pictures", token, nil, "")
	var resp struct {
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(resp.Records))
	}
	if resp.Records[0]["url"] != "https://cdn.example.com/media" {
		t.Fatalf("unexpected record: %v", resp.Records[0])
	}
}

func TestExportFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "pw")

	if _, err := env.records.Append(context.Background(), backend.CollectionLocations, backend.Document{
		"username": "alice", "latitude": 1.0, "longitude": 2.0,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	w := env.do(t, http.MethodPost, "/v1/export/locations", token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var runResp struct {
		Artifact struct {
			Name string `json:"name"`
			Rows int    `json:"rows"`
		} `json:"artifact"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &runResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if runResp.Artifact.Rows != 1 {
		t.Fatalf("expected 1 exported row, got %d", runResp.Artifact.Rows)
	}

	w = env.do(t, http.MethodGet, "/v1/exports", token, nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), runResp.Artifact.Name) {
		t.Fatalf("expected artifact in listing: %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/v1/exports/"+runResp.Artifact.Name, token, nil, "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("expected artifact download, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/export/unknown", token, nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown collection, got %d", w.Code)
	}
}

func TestDeviceIdentityEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/device", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var first map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["id"] == "" || first["installedAt"] == "" {
		t.Fatalf("expected populated identity: %v", first)
	}

	w = env.do(t, http.MethodGet, "/v1/device", "", nil, "")
	var second map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["id"] != second["id"] {
		t.Fatalf("device identity must be stable across calls")
	}
}

func TestWebSocketFeed(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "pw")

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	if _, err := env.records.Append(context.Background(), backend.CollectionLocations, backend.Document{
		"username": "alice", "latitude": 1.0, "longitude": 2.0,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/feed?collection=locations&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg struct {
		Type       string           `json:"type"`
		Collection string           `json:"collection"`
		Records    []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "snapshot" || msg.Collection != "locations" {
		t.Fatalf("unexpected message: %s", data)
	}
	if len(msg.Records) != 1 || msg.Records[0]["username"] != "alice" {
		t.Fatalf("late attacher must get the current list: %s", data)
	}

	// a new append pushes a fresh snapshot
	if _, err := env.records.Append(context.Background(), backend.CollectionLocations, backend.Document{
		"username": "bob", "latitude": 3.0, "longitude": 4.0,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err = conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(msg.Records) == 2 {
			if msg.Records[0]["username"] != "bob" {
				t.Fatalf("expected newest first: %s", data)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("never saw the second record")
		}
	}
}

func TestWebSocketFeedConnectDuringAppends(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "pw")

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	stop := make(chan struct{})
	appendsDone := make(chan struct{})
	go func() {
		defer close(appendsDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := env.records.Append(context.Background(), backend.CollectionLocations, backend.Document{
				"username": "alice", "latitude": 1.0, "longitude": 2.0,
			}); err != nil {
				t.Errorf("Append: %v", err)
				return
			}
		}
	}()

	// viewers attaching mid-stream must get a clean snapshot every time
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/feed?collection=locations&token=" + token
	for i := 0; i < 10; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "snapshot" {
			t.Fatalf("unexpected message: %s", data)
		}
		conn.Close()
	}

	close(stop)
	<-appendsDone
}

func TestWebSocketFeedAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/ws/feed?collection=locations", "", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	token := env.login(t, "a", "p")
	w = env.do(t, http.MethodGet, "/ws/feed?collection=bogus&token="+token, "", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown collection, got %d", w.Code)
	}
}
