package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/app/ui"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/domain"
)

type fakeSession struct {
	mu      sync.Mutex
	joinErr error
	joined  bool
	calls   []string
	changes chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{changes: make(chan struct{}, 1)}
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Join(context.Context) error {
	f.record("join")
	if f.joinErr != nil {
		return f.joinErr
	}
	f.mu.Lock()
	f.joined = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Leave(context.Context) {
	f.record("leave")
	f.mu.Lock()
	f.joined = false
	f.mu.Unlock()
}

func (f *fakeSession) View() orch.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return orch.View{Joined: f.joined, Messages: []domain.ChatMessage{}}
}

func (f *fakeSession) Subscribe() (<-chan struct{}, func()) { return f.changes, func() {} }

func (f *fakeSession) SendMessage(_ context.Context, text string) { f.record("chat:" + text) }
func (f *fakeSession) CallApply(context.Context)                  { f.record("apply") }
func (f *fakeSession) CallEnded(context.Context)                  { f.record("end") }
func (f *fakeSession) TeacherAcceptApply(context.Context)         { f.record("accept") }
func (f *fakeSession) TeacherRejectApply(context.Context)         { f.record("reject") }
func (f *fakeSession) AcceptApplyUser(_ context.Context, user, stream string) {
	f.record("acceptUser:" + user + ":" + stream)
}
func (f *fakeSession) UpdateHandUpState(_ context.Context, coVideo, auto bool) {
	if coVideo && !auto {
		f.record("handsUp:on")
	}
}
func (f *fakeSession) StartTick()           { f.record("startTick") }
func (f *fakeSession) StopTick()            { f.record("stopTick") }
func (f *fakeSession) ToggleApplyUserList() { f.record("toggle") }

func newTestRouter(t *testing.T) (*gin.Engine, *fakeSession, *ui.Store) {
	gin.SetMode(gin.TestMode)
	sess := newFakeSession()
	store := ui.NewStore(0)
	cfg := &config.Config{Mode: "test", Secret: "secret", StaticPath: t.TempDir()}
	cfg.Timers.DispatchTimeout = time.Second
	return SetupRouter(context.Background(), cfg, sess, store), sess, store
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestViewSetsClientToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/view", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Values("Set-Cookie")[0], "ct=")
	var resp ViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Joined)
}

func TestJoinAndLeave(t *testing.T) {
	r, sess, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/join", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp ViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Joined)

	w = do(r, http.MethodPost, "/api/leave", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"join", "leave"}, sess.Calls())
}

func TestJoinErrors(t *testing.T) {
	r, sess, _ := newTestRouter(t)

	sess.joinErr = errors.New("room service down")
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodPost, "/api/join", "").Code)

	sess.joinErr = orch.ErrAlreadyJoined
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/join", "").Code)
}

func TestActionsReachSession(t *testing.T) {
	r, sess, _ := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/messages", `{}`).Code)
	do(r, http.MethodPost, "/api/messages", `{"text":"hi"}`)
	do(r, http.MethodPost, "/api/apply", "")
	do(r, http.MethodPost, "/api/call/end", "")
	do(r, http.MethodPost, "/api/apply/accept", "")
	do(r, http.MethodPost, "/api/apply/reject", "")
	do(r, http.MethodPost, "/api/apply/users/s1/accept", `{"streamUuid":"st-1"}`)
	do(r, http.MethodPut, "/api/hands-up", `{"enableCoVideo":true}`)
	do(r, http.MethodPost, "/api/tick/start", "")
	do(r, http.MethodPost, "/api/tick/stop", "")
	do(r, http.MethodPost, "/api/apply/users/toggle", "")

	assert.Equal(t, []string{
		"chat:hi", "apply", "end", "accept", "reject", "acceptUser:s1:st-1",
		"handsUp:on", "startTick", "stopTick", "toggle",
	}, sess.Calls())
}

func TestRemoveDialog(t *testing.T) {
	r, _, store := newTestRouter(t)
	id := store.ShowDialog(domain.Dialog{Type: domain.DialogTypeApply, UserUUID: "s1"})

	w := do(r, http.MethodDelete, "/api/dialogs/"+id, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.Dialogs())
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWSPushesView(t *testing.T) {
	r, sess, store := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first ViewResponse
	require.NoError(t, ws.ReadJSON(&first))
	assert.False(t, first.Joined)

	require.NoError(t, sess.Join(context.Background()))
	store.AddToast("hello")
	sess.changes <- struct{}{}

	var next ViewResponse
	require.NoError(t, ws.ReadJSON(&next))
	assert.True(t, next.Joined)
	require.Len(t, next.UI.Toasts, 1)
	assert.Equal(t, "hello", next.UI.Toasts[0].Message)
}
