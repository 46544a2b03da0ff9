package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambrook/skirmishd/internal/api"
	"github.com/ambrook/skirmishd/internal/api/response"
	"github.com/ambrook/skirmishd/internal/factory"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/provision"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler     http.Handler
	app         *factory.App
	provisioner *provision.MockProvisioner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// API tests are integration tests - use production factory with real random/clock
	provisioner := provision.NewMockProvisioner()
	app, err := factory.New(factory.Config{Provisioner: provisioner})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		RatingService:   app.RatingService,
		QueueController: app.QueueController,
		SessionService:  app.SessionService,
		Registry:        app.Registry,
		Dispatcher:      app.Dispatcher,
		Storage:         app.Storage,
	})

	return &testServer{
		handler:     router,
		app:         app,
		provisioner: provisioner,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestCreateGuestPlayer(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"display_name": "Alice"}
	rr := ts.request(http.MethodPost, "/api/v1/players/guest", body, "")

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.Equal(t, "Alice", resp.Player.DisplayName)
	assert.True(t, resp.Player.IsGuest)
	assert.NotEmpty(t, resp.SessionToken)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	// Register
	registerBody := map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"display_name": "Alice",
	}
	rr := ts.request(http.MethodPost, "/api/v1/players/register", registerBody, "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	var registerResp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &registerResp)
	require.NoError(t, err)
	assert.False(t, registerResp.Player.IsGuest)

	// Login
	loginBody := map[string]string{
		"username": "alice",
		"password": "secret123",
	}
	rr = ts.request(http.MethodPost, "/api/v1/players/login", loginBody, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var loginResp response.AuthResponse
	err = json.Unmarshal(rr.Body.Bytes(), &loginResp)
	require.NoError(t, err)
	assert.Equal(t, registerResp.Player.ID, loginResp.Player.ID)
}

func TestGetMe(t *testing.T) {
	ts := newTestServer(t)

	// Create guest first
	body := map[string]string{"display_name": "Bob"}
	rr := ts.request(http.MethodPost, "/api/v1/players/guest", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var authResp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &authResp)
	require.NoError(t, err)

	// Get me
	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, authResp.SessionToken)
	assert.Equal(t, http.StatusOK, rr.Code)

	var meResp response.Player
	err = json.Unmarshal(rr.Body.Bytes(), &meResp)
	require.NoError(t, err)
	assert.Equal(t, "Bob", meResp.DisplayName)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	// Try to get /me without token
	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Try to join a queue without token
	rr = ts.request(http.MethodPost, "/api/v1/queues/ladder1v1/join", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListQueues(t *testing.T) {
	ts := newTestServer(t)
	token, _ := createGuestPlayer(t, ts, "Alice")

	rr := ts.request(http.MethodGet, "/api/v1/queues", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	var queues []response.Queue
	err := json.Unmarshal(rr.Body.Bytes(), &queues)
	require.NoError(t, err)
	require.Len(t, queues, 2)
	assert.Equal(t, "ladder1v1", queues[0].ID)
	assert.Equal(t, 1, queues[0].TeamSize)
	assert.Equal(t, 0, queues[0].Depth)
	assert.Equal(t, "tmm2v2", queues[1].ID)
	assert.Equal(t, 2, queues[1].TeamSize)
}

func TestJoinQueueRequiresConnection(t *testing.T) {
	ts := newTestServer(t)
	token, _ := createGuestPlayer(t, ts, "Alice")

	// No open event stream means the player is not matchable
	rr := ts.request(http.MethodPost, "/api/v1/queues/ladder1v1/join", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "PLAYER_OFFLINE")
}

func TestJoinAndLeaveQueue(t *testing.T) {
	ts := newTestServer(t)
	token, playerID := createGuestPlayer(t, ts, "Alice")
	ts.app.Registry.MarkConnected(model.PlayerID(playerID))

	// Join solo
	rr := ts.request(http.MethodPost, "/api/v1/queues/ladder1v1/join", nil, token)
	assert.Equal(t, http.StatusCreated, rr.Code)

	var entry response.QueueEntry
	err := json.Unmarshal(rr.Body.Bytes(), &entry)
	require.NoError(t, err)
	assert.Equal(t, "ladder1v1", entry.QueueID)
	assert.Equal(t, []string{playerID}, entry.PartyMembers)
	assert.InDelta(t, 1500.0, entry.Rating.Mu, 0.01)

	// The standing search is visible
	rr = ts.request(http.MethodGet, "/api/v1/queues/entry", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Queue depth reflects the entry
	rr = ts.request(http.MethodGet, "/api/v1/queues", nil, token)
	var queues []response.Queue
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &queues))
	assert.Equal(t, 1, queues[0].Depth)

	// Leave
	rr = ts.request(http.MethodPost, "/api/v1/queues/ladder1v1/leave", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/queues/entry", nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestJoinUnknownQueue(t *testing.T) {
	ts := newTestServer(t)
	token, playerID := createGuestPlayer(t, ts, "Alice")
	ts.app.Registry.MarkConnected(model.PlayerID(playerID))

	rr := ts.request(http.MethodPost, "/api/v1/queues/nosuchqueue/join", nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "UNKNOWN_QUEUE")
}

func TestPartyJoinMustIncludeRequester(t *testing.T) {
	ts := newTestServer(t)
	token, _ := createGuestPlayer(t, ts, "Alice")
	_, bobID := createGuestPlayer(t, ts, "Bob")

	body := map[string]any{"party_members": []string{bobID}}
	rr := ts.request(http.MethodPost, "/api/v1/queues/tmm2v2/join", body, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetRatingDefaults(t *testing.T) {
	ts := newTestServer(t)
	token, _ := createGuestPlayer(t, ts, "Alice")

	rr := ts.request(http.MethodGet, "/api/v1/players/me/ratings/ladder1v1", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	var rating response.Rating
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rating))
	assert.InDelta(t, 1500.0, rating.Mu, 0.01)
	assert.InDelta(t, 500.0, rating.Sigma, 0.01)
}

func TestFullMatchFlow(t *testing.T) {
	ts := newTestServer(t)

	aliceToken, aliceID := createGuestPlayer(t, ts, "Alice")
	bobToken, bobID := createGuestPlayer(t, ts, "Bob")
	ts.app.Registry.MarkConnected(model.PlayerID(aliceID))
	ts.app.Registry.MarkConnected(model.PlayerID(bobID))
	ts.provisioner.QueueHandle("handle-test")

	// Both queue up
	rr := ts.request(http.MethodPost, "/api/v1/queues/ladder1v1/join", nil, aliceToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = ts.request(http.MethodPost, "/api/v1/queues/ladder1v1/join", nil, bobToken)
	require.Equal(t, http.StatusCreated, rr.Code)

	// One matchmaking tick pairs them
	require.NoError(t, ts.app.Coordinator.Tick(context.Background(), "ladder1v1"))

	// Both can see their session
	rr = ts.request(http.MethodGet, "/api/v1/sessions/mine", nil, aliceToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var session response.GameSession
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	assert.Equal(t, "launching", session.State)
	require.Len(t, session.Teams, 2)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/mine", nil, bobToken)
	require.Equal(t, http.StatusOK, rr.Code)

	// Host reports ready
	rr = ts.request(http.MethodPost, "/api/v1/hosts/ready", map[string]string{"handle": "handle-test"}, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+session.ID, nil, aliceToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	assert.Equal(t, "live", session.State)

	// Host reports the result
	resultBody := map[string]any{
		"outcomes": []map[string]int{
			{"team": 0, "rank": 1},
			{"team": 1, "rank": 2},
		},
	}
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+session.ID+"/result", resultBody, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Duplicate report is rejected
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+session.ID+"/result", resultBody, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "DUPLICATE_RESULT")

	// The winning team's players gained rating
	winner := session.Teams[0].Players[0]
	winnerToken := aliceToken
	if winner != aliceID {
		winnerToken = bobToken
	}
	rr = ts.request(http.MethodGet, "/api/v1/players/me/ratings/ladder1v1", nil, winnerToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var rating response.Rating
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rating))
	assert.Greater(t, rating.Mu, 1500.0)

	// And the match shows up in their history
	rr = ts.request(http.MethodGet, "/api/v1/players/me/ratings/ladder1v1/history", nil, winnerToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var history []response.RatingRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, session.ID, history[0].SessionID)
}

func TestLaunchFailedOverAPI(t *testing.T) {
	ts := newTestServer(t)

	aliceToken, aliceID := createGuestPlayer(t, ts, "Alice")
	bobToken, bobID := createGuestPlayer(t, ts, "Bob")
	ts.app.Registry.MarkConnected(model.PlayerID(aliceID))
	ts.app.Registry.MarkConnected(model.PlayerID(bobID))
	ts.provisioner.QueueHandle("handle-test")

	rr := ts.request(http.MethodPost, "/api/v1/queues/ladder1v1/join", nil, aliceToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = ts.request(http.MethodPost, "/api/v1/queues/ladder1v1/join", nil, bobToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NoError(t, ts.app.Coordinator.Tick(context.Background(), "ladder1v1"))

	body := map[string]string{"handle": "handle-test", "reason": "map download failed"}
	rr = ts.request(http.MethodPost, "/api/v1/hosts/launch-failed", body, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Players are back in the queue
	rr = ts.request(http.MethodGet, "/api/v1/queues/entry", nil, aliceToken)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = ts.request(http.MethodGet, "/api/v1/sessions/mine", nil, aliceToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetSessionUnknownID(t *testing.T) {
	ts := newTestServer(t)
	token, _ := createGuestPlayer(t, ts, "Alice")

	rr := ts.request(http.MethodGet, "/api/v1/sessions/nosuchsession", nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// Helper functions

func createGuestPlayer(t *testing.T, ts *testServer, displayName string) (token, playerID string) {
	t.Helper()

	body := map[string]string{"display_name": displayName}
	rr := ts.request(http.MethodPost, "/api/v1/players/guest", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	require.NoError(t, err)

	return resp.SessionToken, resp.Player.ID
}
