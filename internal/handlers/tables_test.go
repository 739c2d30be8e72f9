package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/automa"
	"github.com/jason-s-yu/tabletop/internal/events"
	"github.com/jason-s-yu/tabletop/internal/game"
	"github.com/jason-s-yu/tabletop/internal/game/race"
	apperrors "github.com/jason-s-yu/tabletop/internal/platform/errors"
	"github.com/jason-s-yu/tabletop/internal/rating"
	"github.com/jason-s-yu/tabletop/internal/service"
	"github.com/jason-s-yu/tabletop/internal/store"
	"github.com/jason-s-yu/tabletop/internal/table"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	handler http.Handler
	hub     *events.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	reg, err := game.NewRegistry(race.New())
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := events.NewHub(logger)
	scheduler := automa.NewTimerScheduler()
	svc := service.NewTableService(store.NewMemory(reg), reg, scheduler, hub, logger, service.Options{
		Retries:         3,
		MaxActiveTables: 10,
		AutomaDelay:     time.Hour,
		Ratings:         rating.NewMemory(),
	})
	return &testAPI{
		handler: NewRouter(logger, svc, hub, []string{"*"}),
		hub:     hub,
	}
}

func (a *testAPI) do(t *testing.T, method, path string, account uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if account != uuid.Nil {
		req.Header.Set(AccountHeader, account.String())
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decodeTable(t *testing.T, w *httptest.ResponseRecorder) TableView {
	t.Helper()
	var v TableView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func TestCreateAndGetTable(t *testing.T) {
	api := newTestAPI(t)
	owner := uuid.New()

	w := api.do(t, http.MethodPost, "/tables", owner, map[string]any{"game": "race", "type": "TURN_BASED"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeTable(t, w)
	assert.Equal(t, owner, created.OwnerID)
	assert.Equal(t, table.StatusNew, created.Status)
	assert.Equal(t, "race", created.Game)
	require.Len(t, created.Players, 1)
	assert.Nil(t, created.State)

	w = api.do(t, http.MethodGet, "/tables/"+created.ID.String(), uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeTable(t, w).ID)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	owner, stranger := uuid.New(), uuid.New()

	w := api.do(t, http.MethodPost, "/tables", uuid.Nil, map[string]any{"game": "race"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidArgument, decodeError(t, w).Code)

	w = api.do(t, http.MethodPost, "/tables", owner, map[string]any{"game": "chess"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, apperrors.CodeGameNotFound, e.Code)
	assert.Equal(t, "chess", e.Metadata["game"])

	w = api.do(t, http.MethodGet, "/tables/"+uuid.NewString(), uuid.Nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/tables/not-a-uuid", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	created := decodeTable(t, api.do(t, http.MethodPost, "/tables", owner, map[string]any{"game": "race"}))
	base := "/tables/" + created.ID.String()

	w = api.do(t, http.MethodPost, base+"/public", stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeMustBeOwner, decodeError(t, w).Code)

	w = api.do(t, http.MethodPost, base+"/start", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeMinPlayers, decodeError(t, w).Code)

	w = api.do(t, http.MethodPost, base+"/dance", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, base+"/invite", strings.NewReader("{"))
	req.Header.Set(AccountHeader, owner.String())
	rw := httptest.NewRecorder()
	api.handler.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestPlayThroughHTTP(t *testing.T) {
	api := newTestAPI(t)
	owner, guest := uuid.New(), uuid.New()

	created := decodeTable(t, api.do(t, http.MethodPost, "/tables", owner, map[string]any{"game": "race"}))
	base := "/tables/" + created.ID.String()

	w := api.do(t, http.MethodPost, base+"/invite", owner, map[string]any{"account": guest})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(t, http.MethodPost, base+"/accept", guest, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(t, http.MethodPost, base+"/start", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	started := decodeTable(t, w)
	assert.Equal(t, table.StatusStarted, started.Status)
	assert.NotEmpty(t, started.State)

	w = api.do(t, http.MethodPost, base+"/perform", guest, map[string]any{"action": map[string]any{"kind": "roll"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeNotYourTurn, decodeError(t, w).Code)

	w = api.do(t, http.MethodPost, base+"/perform", owner, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, base+"/perform", owner, map[string]any{"action": map[string]any{"kind": "roll"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, base+"/log?limit=2", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []table.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	w = api.do(t, http.MethodGet, base+"/log?since=yesterday", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListings(t *testing.T) {
	api := newTestAPI(t)
	owner := uuid.New()
	for i := 0; i < 3; i++ {
		w := api.do(t, http.MethodPost, "/tables", owner, map[string]any{"game": "race"})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := api.do(t, http.MethodGet, "/accounts/"+owner.String()+"/tables?limit=2", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page PageView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Tables, 2)
	require.NotEmpty(t, page.Next)

	w = api.do(t, http.MethodGet, "/accounts/"+owner.String()+"/tables?limit=2&cursor="+page.Next, uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Tables, 1)
	assert.Empty(t, page.Next)

	w = api.do(t, http.MethodGet, "/tables?game=race&status=NEW", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Tables, 3)

	w = api.do(t, http.MethodGet, "/tables", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/tables?game=race&cursor=bogus", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidCursor, decodeError(t, w).Code)
}

func TestEventStream(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()
	owner, guest := uuid.New(), uuid.New()

	created := decodeTable(t, api.do(t, http.MethodPost, "/tables", owner, map[string]any{"game": "race"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/tables/" + created.ID.String() + "/events"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	// the subscription is registered after the upgrade completes
	require.Eventually(t, func() bool {
		return api.hub.Subscribers(created.ID) == 1
	}, time.Second, 10*time.Millisecond)
	w := api.do(t, http.MethodPost, "/tables/"+created.ID.String()+"/invite", owner, map[string]any{"account": guest})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ev table.Event
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	assert.Equal(t, table.EventInvited, ev.Type)
	assert.Equal(t, created.ID, ev.TableID)
}

func TestRatingEndpoint(t *testing.T) {
	api := newTestAPI(t)
	account := uuid.New()

	w := api.do(t, http.MethodGet, "/accounts/"+account.String()+"/ratings/race", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rt rating.Rating
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rt))
	assert.Equal(t, account, rt.AccountID)
	assert.Equal(t, 1500, rt.Rating)

	w = api.do(t, http.MethodGet, "/accounts/"+account.String()+"/ratings/chess", uuid.Nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
