// internal/handlers/server_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherat/gatherat/internal/auth"
	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/models"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	auth.Init()
	mr := miniredis.RunT(t)
	store := docstore.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv := NewServer(logger, store)
	return srv, srv.Routes()
}

// claimName runs the full claim flow and returns the identity cookie
// plus the minted user id.
func claimName(t *testing.T, mux http.Handler, displayName string) (*http.Cookie, string) {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/session", nil, map[string]string{
		"displayName": displayName,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	res := rec.Result()
	defer res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == identityCookie {
			return c, body.UserID
		}
	}
	t.Fatal("no identity cookie set")
	return nil, ""
}

func doJSON(t *testing.T, mux http.Handler, method, path string, cookie *http.Cookie, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createTestRoom(t *testing.T, mux http.Handler, cookie *http.Cookie) string {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/rooms", cookie, map[string]any{
		"question":   "which evening works",
		"options":    []string{"monday", "tuesday"},
		"optionType": "Text",
		"pollType":   "SS",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.RoomID
}

func TestClaimNameValidation(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/session", nil, map[string]string{"displayName": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWhoAmI(t *testing.T) {
	_, mux := newTestServer(t)
	cookie, userID := claimName(t, mux, "Ada")

	rec := doJSON(t, mux, http.MethodGet, "/session", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, userID, body["userId"])
	assert.Equal(t, "Ada", body["displayName"])
}

func TestWhoAmIWithoutCookie(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodGet, "/session", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRoomRequiresIdentity(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/rooms", nil, map[string]any{
		"question": "q", "options": []string{"a"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndGetRoom(t *testing.T) {
	_, mux := newTestServer(t)
	cookie, userID := claimName(t, mux, "Ada")

	roomID := createTestRoom(t, mux, cookie)

	rec := doJSON(t, mux, http.MethodGet, "/rooms/"+roomID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rm models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rm))
	assert.Equal(t, roomID, rm.ID)
	assert.Equal(t, "which evening works", rm.Question)
	assert.Equal(t, userID, rm.CreatedBy)
}

func TestCreateRoomValidation(t *testing.T) {
	_, mux := newTestServer(t)
	cookie, _ := claimName(t, mux, "Ada")

	rec := doJSON(t, mux, http.MethodPost, "/rooms", cookie, map[string]any{
		"question": "", "options": []string{"a"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRoomNotFound(t *testing.T) {
	_, mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodGet, "/rooms/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinLeaveRoundTrip(t *testing.T) {
	_, mux := newTestServer(t)
	cookie, _ := claimName(t, mux, "Ada")
	roomID := createTestRoom(t, mux, cookie)

	rec := doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/join", cookie, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/rooms/"+roomID, nil, nil)
	var rm models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rm))
	assert.Equal(t, []string{"Ada"}, rm.Participants)

	rec = doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/leave", cookie, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/rooms/"+roomID, nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rm))
	assert.Empty(t, rm.Participants)
}

func TestUpdateStatusCreatorOnly(t *testing.T) {
	_, mux := newTestServer(t)
	creator, _ := claimName(t, mux, "Ada")
	other, _ := claimName(t, mux, "Grace")
	roomID := createTestRoom(t, mux, creator)

	rec := doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/status", other, map[string]string{"status": "Ended"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/status", creator, map[string]string{"status": "Ended"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/rooms/"+roomID, nil, nil)
	var rm models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rm))
	assert.Equal(t, models.StatusEnded, rm.Status)
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	_, mux := newTestServer(t)
	cookie, _ := claimName(t, mux, "Ada")
	roomID := createTestRoom(t, mux, cookie)

	rec := doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/status", cookie, map[string]string{"status": "Bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRoomCreatorOnly(t *testing.T) {
	_, mux := newTestServer(t)
	creator, _ := claimName(t, mux, "Ada")
	other, _ := claimName(t, mux, "Grace")
	roomID := createTestRoom(t, mux, creator)

	rec := doJSON(t, mux, http.MethodDelete, "/rooms/"+roomID, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, "/rooms/"+roomID, creator, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/rooms/"+roomID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCastVoteFlow(t *testing.T) {
	srv, mux := newTestServer(t)
	cookie, userID := claimName(t, mux, "Ada")
	roomID := createTestRoom(t, mux, cookie)

	optionID := firstOptionID(t, srv, roomID)

	rec := doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/vote", cookie, map[string]string{"optionId": optionID})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	votes := roomVotes(t, srv, roomID)
	require.Len(t, votes, 1)
	assert.Equal(t, userID, votes[0].UserID)
	assert.Equal(t, []string{optionID}, votes[0].OptionIDs)
}

func TestCastVoteMissingOption(t *testing.T) {
	_, mux := newTestServer(t)
	cookie, _ := claimName(t, mux, "Ada")
	roomID := createTestRoom(t, mux, cookie)

	rec := doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/vote", cookie, map[string]string{"optionId": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCastVoteEndedRoomConflicts(t *testing.T) {
	srv, mux := newTestServer(t)
	cookie, _ := claimName(t, mux, "Ada")
	roomID := createTestRoom(t, mux, cookie)
	optionID := firstOptionID(t, srv, roomID)

	rec := doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/status", cookie, map[string]string{"status": "Ended"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/vote", cookie, map[string]string{"optionId": optionID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddOptionValidation(t *testing.T) {
	_, mux := newTestServer(t)
	cookie, _ := claimName(t, mux, "Ada")
	roomID := createTestRoom(t, mux, cookie)

	rec := doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/options", cookie, map[string]string{"label": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/options", cookie, map[string]string{"label": "wednesday"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCommentRoundTrip(t *testing.T) {
	srv, mux := newTestServer(t)
	cookie, _ := claimName(t, mux, "Ada")
	roomID := createTestRoom(t, mux, cookie)
	optionID := firstOptionID(t, srv, roomID)

	base := "/rooms/" + roomID + "/options/" + optionID + "/comments"
	rec := doJSON(t, mux, http.MethodPost, base, cookie, map[string]string{"text": "works for me"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		CommentID string `json:"commentId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.CommentID)

	rec = doJSON(t, mux, http.MethodDelete, base+"/"+body.CommentID, cookie, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCommentRequiresText(t *testing.T) {
	srv, mux := newTestServer(t)
	cookie, _ := claimName(t, mux, "Ada")
	roomID := createTestRoom(t, mux, cookie)
	optionID := firstOptionID(t, srv, roomID)

	rec := doJSON(t, mux, http.MethodPost, "/rooms/"+roomID+"/options/"+optionID+"/comments", cookie, map[string]string{"text": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func firstOptionID(t *testing.T, srv *Server, roomID string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := srv.Options.Watch(req.Context(), roomID)
	defer w.Unsubscribe()
	results := <-w.C
	require.NotEmpty(t, results)
	return results[0].ID
}

func roomVotes(t *testing.T, srv *Server, roomID string) []models.Vote {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := srv.Votes.WatchAll(req.Context(), roomID)
	defer w.Unsubscribe()
	return <-w.C
}
