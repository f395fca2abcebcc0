package roomapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type recorded struct {
	Method string
	Path   string
	Token  string
	Body   map[string]any
}

type fakeRoomService struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeRoomService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path, Token: r.Header.Get(userTokenHeader)}
	_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	if f.handler != nil {
		f.handler(w, r)
		return
	}
	writeJSON(w, http.StatusOK, envelope{})
}

func (f *fakeRoomService) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeRoomService) *Client {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:         srv.URL + "/",
		MaxTries:        3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
}

func TestFetchRoom(t *testing.T) {
	fake := &fakeRoomService{handler: func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 0, "data": map[string]any{"roomUuid": "room-1"}})
	}}
	c := newTestClient(t, fake)

	id, err := c.FetchRoom(context.Background(), "math", domain.RoomTypeBigClass)

	require.NoError(t, err)
	assert.Equal(t, "room-1", id)
	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/v1/rooms", reqs[0].Path)
	assert.Equal(t, "math", reqs[0].Body["roomName"])
	assert.EqualValues(t, 2, reqs[0].Body["roomType"])
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	fake := &fakeRoomService{handler: func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, envelope{Msg: "busy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"roomUuid": "room-2"}})
	}}
	c := newTestClient(t, fake)

	id, err := c.FetchRoom(context.Background(), "math", domain.RoomTypeSmallClass)

	require.NoError(t, err)
	assert.Equal(t, "room-2", id)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRetriesGiveUp(t *testing.T) {
	fake := &fakeRoomService{handler: func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadGateway, envelope{Msg: "down"})
	}}
	c := newTestClient(t, fake)

	_, err := c.FetchRoom(context.Background(), "math", domain.RoomTypeSmallClass)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Len(t, fake.all(), 3)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	fake := &fakeRoomService{handler: func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Code: 20403, Msg: "forbidden role"})
	}}
	c := newTestClient(t, fake)

	_, err := c.FetchRoom(context.Background(), "math", domain.RoomTypeSmallClass)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 20403, apiErr.Code)
	assert.Len(t, fake.all(), 1)
}

func TestInvitationNeedsRoom(t *testing.T) {
	c := newTestClient(t, &fakeRoomService{})

	assert.ErrorIs(t, c.SetInvitation(context.Background()), ErrNoRoom)
	assert.ErrorIs(t, c.HandInvitationStart(context.Background(), core.InvitationApply, "t1"), ErrNoRoom)
}

func TestInvitationCallsCarrySessionToken(t *testing.T) {
	fake := &fakeRoomService{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	board := c.NewBoard("tok-1", "room-1")
	require.NoError(t, board.Init(ctx))
	require.NoError(t, c.SetInvitation(ctx))
	require.NoError(t, c.HandInvitationStart(ctx, core.InvitationApply, "t1"))
	require.NoError(t, c.HandInvitationEnd(ctx, core.InvitationCancel, "t1"))
	record := c.NewRecord("tok-1")
	require.NoError(t, record.Init(ctx))
	require.NoError(t, record.Leave(ctx))
	require.NoError(t, board.Leave(ctx))

	reqs := fake.all()
	require.Len(t, reqs, 7)
	for _, r := range reqs {
		assert.Equal(t, "tok-1", r.Token, r.Path)
	}
	assert.Equal(t, "/v1/rooms/room-1/board/join", reqs[0].Path)
	assert.Equal(t, http.MethodPut, reqs[1].Method)
	assert.Equal(t, "/v1/rooms/room-1/processes/handsUp", reqs[1].Path)
	assert.Equal(t, http.MethodPost, reqs[2].Method)
	assert.EqualValues(t, core.InvitationApply, reqs[2].Body["action"])
	assert.Equal(t, "t1", reqs[2].Body["toUserUuid"])
	assert.Equal(t, http.MethodDelete, reqs[3].Method)
	assert.Equal(t, "/v1/rooms/room-1/record/join", reqs[4].Path)
	assert.Equal(t, "/v1/rooms/room-1/record/leave", reqs[5].Path)
	assert.Equal(t, "/v1/rooms/room-1/board/leave", reqs[6].Path)
}

func TestCanceledContextStopsRetrying(t *testing.T) {
	fake := &fakeRoomService{handler: func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, envelope{})
	}}
	c := newTestClient(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchRoom(ctx, "math", domain.RoomTypeSmallClass)

	require.Error(t, err)
	assert.LessOrEqual(t, len(fake.all()), 1)
}
