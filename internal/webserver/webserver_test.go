package webserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/truthmd/truthlink/config"
	"github.com/truthmd/truthlink/internal/audit"
	"github.com/truthmd/truthlink/internal/domain"
	"github.com/truthmd/truthlink/internal/hub"
	"github.com/truthmd/truthlink/internal/session"
)

type fakeLinker struct {
	events chan session.Event
}

func newFakeLinker() *fakeLinker {
	return &fakeLinker{events: make(chan session.Event, 16)}
}

func (f *fakeLinker) Open(ctx context.Context) error { return nil }
func (f *fakeLinker) Events() <-chan session.Event   { return f.events }
func (f *fakeLinker) Close()                         {}

type fixture struct {
	srv     *WebServer
	manager *session.Manager
	linkers map[string]*fakeLinker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Tables...))

	f := &fixture{linkers: make(map[string]*fakeLinker)}
	factory := func(sessionID string, method session.Method, phone string) (session.Linker, error) {
		l := newFakeLinker()
		f.linkers[sessionID] = l
		return l, nil
	}

	store := session.NewStore(nil)
	eventHub := hub.New(nil)
	recorder := audit.NewRecorder(db)
	f.manager = session.NewManager(store, factory, eventHub, session.Options{
		RemoveDelay: 0,
		Audit:       recorder,
	})
	eventHub.SetSnapshot(f.manager.SnapshotEvents)

	cfg := config.DefaultConfig()
	f.srv = New(cfg, f.manager, eventHub, recorder)
	return f
}

func (f *fixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

const (
	echoContentType = "Content-Type"
	echoJSON        = "application/json"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGenerateSessionValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/api/generate-session", `{"method":"bogus"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_REQUEST", decodeBody(t, rec)["error"])

	rec = f.post(t, "/api/generate-session", `{"method":"pairing","phoneNumber":"abc"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAndGetSession(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/api/generate-session", `{"method":"qr"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	id, _ := body["sessionId"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, "pending", body["status"])

	rec = f.get(t, "/api/session/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeBody(t, rec)
	require.Equal(t, id, snap["id"])
	require.Equal(t, "qr", snap["connectionMethod"])

	rec = f.get(t, "/api/session/truth_ffffffffffffffffffffffffffffffff")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTerminateSession(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/api/terminate-session", `{"sessionId":"truth_00"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "SESSION_NOT_FOUND", decodeBody(t, rec)["error"])

	rec = f.post(t, "/api/generate-session", `{"method":"pairing","phoneNumber":"628123456789"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody(t, rec)["sessionId"].(string)

	rec = f.post(t, "/api/terminate-session", `{"sessionId":"`+id+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "terminated", decodeBody(t, rec)["status"])

	rec = f.get(t, "/api/session/"+id)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "ok", body["status"])
	require.EqualValues(t, 0, body["activeSessions"])
}

func TestListAttempts(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/attempts")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeBody(t, rec)["attempts"])

	rec = f.post(t, "/api/generate-session", `{"method":"qr"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		rec := f.get(t, "/api/attempts")
		attempts, _ := decodeBody(t, rec)["attempts"].([]interface{})
		return len(attempts) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func wsDial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) eventFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame eventFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWebsocketSubscribe(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	rec := f.post(t, "/api/generate-session", `{"method":"qr"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody(t, rec)["sessionId"].(string)

	conn := wsDial(t, ts)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(subscribeFrame{Type: "subscribe", SessionID: id}))

	// snapshot of the pending record arrives first
	frame := readFrame(t, conn)
	require.Equal(t, "status", frame.Event)
	data := frame.Data.(map[string]interface{})
	require.Equal(t, id, data["sessionId"])
	require.Equal(t, "pending", data["status"])

	// live frames follow adapter emissions
	f.linkers[id].events <- session.Event{Kind: session.EventStatus, Status: session.StatusConnecting}
	frame = readFrame(t, conn)
	require.Equal(t, "status", frame.Event)
	require.Equal(t, "connecting", frame.Data.(map[string]interface{})["status"])

	f.linkers[id].events <- session.Event{Kind: session.EventQR, QRCode: "qr-payload-1"}
	frame = readFrame(t, conn)
	require.Equal(t, "qr", frame.Event)
	require.Equal(t, "qr-payload-1", frame.Data.(map[string]interface{})["qrCode"])
}

func TestWebsocketUnknownSession(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	conn := wsDial(t, ts)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(subscribeFrame{Type: "subscribe", SessionID: "truth_deadbeef"}))

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Event)
}

func TestWebsocketBadFirstFrame(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	conn := wsDial(t, ts)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "noise"}))

	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Event)
}
