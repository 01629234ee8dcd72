package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/robot-engine/internal/services/events"
	"github.com/jwebster45206/robot-engine/internal/services/session"
	"github.com/jwebster45206/robot-engine/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionsFixture struct {
	handler     *SessionsHandler
	store       *storage.MockStorage
	broadcaster *events.Broadcaster
}

func newSessionsFixture(t *testing.T, stepDelay time.Duration) *sessionsFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := storage.NewMockStorage()
	broadcaster := events.NewBroadcaster(client, testLogger())
	manager := session.NewManager(session.Options{
		Catalog:   testCatalog(t),
		Storage:   store,
		Progress:  store,
		Events:    broadcaster,
		StepDelay: stepDelay,
		HitPulse:  -1,
		Logger:    testLogger(),
	})
	t.Cleanup(manager.Close)

	return &sessionsFixture{
		handler:     NewSessionsHandler(manager, testLogger()),
		store:       store,
		broadcaster: broadcaster,
	}
}

func (f *sessionsFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *sessionsFixture) create(t *testing.T, body string) session.View {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/v1/sessions", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var v session.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func (f *sessionsFixture) read(t *testing.T, id uuid.UUID) session.View {
	t.Helper()
	rr := f.do(t, http.MethodGet, "/v1/sessions/"+id.String(), "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var v session.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func (f *sessionsFixture) waitFinished(t *testing.T, id uuid.UUID) session.View {
	t.Helper()
	var v session.View
	require.Eventually(t, func() bool {
		v = f.read(t, id)
		return v.Phase == "completed" || v.Phase == "halted"
	}, 3*time.Second, 10*time.Millisecond)
	return v
}

func TestSessionsHandler_Create(t *testing.T) {
	f := newSessionsFixture(t, -1)
	require.NoError(t, f.store.SetProgress(context.Background(), "ada", 3))

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedIndex  int
	}{
		{name: "empty body", body: "", expectedStatus: http.StatusCreated, expectedIndex: 0},
		{name: "explicit level", body: `{"level_index":4}`, expectedStatus: http.StatusCreated, expectedIndex: 4},
		{name: "cloud save", body: `{"username":"ada"}`, expectedStatus: http.StatusCreated, expectedIndex: 2},
		{name: "explicit level beats cloud save", body: `{"username":"ada","level_index":0}`, expectedStatus: http.StatusCreated, expectedIndex: 0},
		{name: "level out of range", body: `{"level_index":70}`, expectedStatus: http.StatusBadRequest},
		{name: "negative level", body: `{"level_index":-2}`, expectedStatus: http.StatusBadRequest},
		{name: "invalid JSON", body: `{invalid json}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/v1/sessions", tt.body)
			require.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())

			if tt.expectedStatus != http.StatusCreated {
				var response ErrorResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
				assert.NotEmpty(t, response.Error)
				return
			}
			var v session.View
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
			assert.NotEqual(t, uuid.Nil, v.ID)
			assert.Equal(t, tt.expectedIndex, v.LevelIndex)
			assert.Equal(t, tt.expectedIndex+1, v.LevelID)
			assert.Equal(t, "idle", v.Phase)
		})
	}
}

func TestSessionsHandler_ReadAndDelete(t *testing.T) {
	f := newSessionsFixture(t, -1)
	v := f.create(t, `{}`)

	got := f.read(t, v.ID)
	assert.Equal(t, v.ID, got.ID)
	assert.Equal(t, "Hello World", got.LevelTitle)

	rr := f.do(t, http.MethodGet, "/v1/sessions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/sessions/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPatch, "/v1/sessions/"+v.ID.String(), "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = f.do(t, http.MethodDelete, "/v1/sessions/"+v.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/v1/sessions/"+v.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionsHandler_RunToWin(t *testing.T) {
	f := newSessionsFixture(t, -1)
	v := f.create(t, `{"username":"ada","level_index":0}`)
	base := "/v1/sessions/" + v.ID.String()

	rr := f.do(t, http.MethodPost, base+"/run", `{"script":"robot.moveRight(2)\nrobot.moveDown(2)"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	done := f.waitFinished(t, v.ID)
	assert.Equal(t, "completed", done.Phase)
	assert.True(t, done.State.Won)
	assert.Equal(t, 4, done.State.ExecutedCount)
	assert.Contains(t, done.State.Log, "Done.")

	require.Eventually(t, func() bool {
		lvl, err := f.store.GetProgress(context.Background(), "ada")
		return err == nil && lvl == 2
	}, time.Second, 10*time.Millisecond)

	rr = f.do(t, http.MethodPost, base+"/next", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var next NextLevelResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&next))
	assert.True(t, next.Advanced)
	assert.Equal(t, 1, next.Session.LevelIndex)
	assert.Equal(t, "idle", next.Session.Phase)
	assert.Empty(t, next.Session.Script)
}

func TestSessionsHandler_CompileErrorIsReportedInLog(t *testing.T) {
	f := newSessionsFixture(t, -1)
	v := f.create(t, `{}`)

	rr := f.do(t, http.MethodPost, "/v1/sessions/"+v.ID.String()+"/run", `{"script":"robot.moveRight("}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	done := f.waitFinished(t, v.ID)
	assert.True(t, done.State.Errored)
	assert.Equal(t, 0, done.State.ExecutedCount)
	found := false
	for _, line := range done.State.Log {
		if strings.HasPrefix(line, "Error:") {
			found = true
		}
	}
	assert.True(t, found, "expected an Error: line in %v", done.State.Log)
}

func TestSessionsHandler_Conflicts(t *testing.T) {
	f := newSessionsFixture(t, 50*time.Millisecond)
	v := f.create(t, `{}`)
	base := "/v1/sessions/" + v.ID.String()

	rr := f.do(t, http.MethodPost, base+"/continue", `{"script":"robot.moveRight()"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, base+"/run", `{"script":"robot.moveRight(2)"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	rr = f.do(t, http.MethodPost, base+"/run", `{"script":"robot.moveRight(2)"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	f.waitFinished(t, v.ID)

	rr = f.do(t, http.MethodPost, base+"/continue", `{"script":"robot.moveRight(2)\nrobot.moveDown(2)"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	done := f.waitFinished(t, v.ID)
	assert.True(t, done.State.Won)
}

func TestSessionsHandler_Routes(t *testing.T) {
	f := newSessionsFixture(t, -1)
	v := f.create(t, `{}`)
	base := "/v1/sessions/" + v.ID.String()

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{name: "list not supported", method: http.MethodGet, path: "/v1/sessions", expectedStatus: http.StatusMethodNotAllowed},
		{name: "unknown action", method: http.MethodPost, path: base + "/jump", expectedStatus: http.StatusNotFound},
		{name: "too deep", method: http.MethodPost, path: base + "/run/again", expectedStatus: http.StatusNotFound},
		{name: "run with GET", method: http.MethodGet, path: base + "/run", expectedStatus: http.StatusMethodNotAllowed},
		{name: "run invalid JSON", method: http.MethodPost, path: base + "/run", body: `nope`, expectedStatus: http.StatusBadRequest},
		{name: "run unknown session", method: http.MethodPost, path: "/v1/sessions/" + uuid.New().String() + "/run", body: `{"script":""}`, expectedStatus: http.StatusNotFound},
		{name: "set level", method: http.MethodPost, path: base + "/level", body: `{"index":6}`, expectedStatus: http.StatusOK},
		{name: "set level out of range", method: http.MethodPost, path: base + "/level", body: `{"index":7}`, expectedStatus: http.StatusBadRequest},
		{name: "next at last level", method: http.MethodPost, path: base + "/next", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
		})
	}

	got := f.read(t, v.ID)
	assert.Equal(t, 6, got.LevelIndex)
	assert.Equal(t, 7, got.LevelID)
}
