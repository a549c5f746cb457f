package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gws "github.com/gorilla/websocket"
	"github.com/isdelr/quill-be/internal/auth"
	"github.com/isdelr/quill-be/internal/models"
	"github.com/isdelr/quill-be/internal/monitoring"
	"github.com/isdelr/quill-be/internal/services"
	"github.com/isdelr/quill-be/internal/testutil"
	"github.com/isdelr/quill-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type testServer struct {
	t       *testing.T
	handler http.Handler
	stats   *monitoring.StatUpdater
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	events := services.NewEventService(db)
	users := services.NewUserService(db, events)
	comments := services.NewCommentService(db, events, hub)
	posts := services.NewPostService(db, comments, events, hub)
	stats := monitoring.NewStatUpdater(posts, nil, time.Minute)

	router := NewRouter([]string{"http://localhost:3000"}, db, tokens, hub, stats,
		users, posts, comments, events)
	return &testServer{t: t, handler: router, stats: stats}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if raw, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(raw))
	} else if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), "body: %s", w.Body.String())
	return v
}

func (s *testServer) register(username, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/register", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	tok := decode[map[string]string](s.t, w)
	assert.Equal(s.t, "bearer", tok["token_type"])
	require.NotEmpty(s.t, tok["access_token"])
	return tok["access_token"]
}

func (s *testServer) createPost(token, name, body string) models.Post {
	s.t.Helper()
	w := s.do(http.MethodPost, "/post", token, map[string]string{"name": name, "body": body})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Post](s.t, w)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "pw1")

	w := s.do(http.MethodPost, "/register", "", map[string]string{"username": "alice", "password": "pw2"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NotEmpty(t, decode[map[string]interface{}](t, w)["error"])
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/register", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[struct {
		Fields map[string]string `json:"fields"`
	}](t, w)
	assert.Equal(t, "required", resp.Fields["password"])

	w = s.do(http.MethodPost, "/register", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_PasswordLimitCountsBytes(t *testing.T) {
	s := newTestServer(t)

	for _, password := range []string{
		strings.Repeat("é", 72), // 72 characters, 144 bytes
		strings.Repeat("a", 73),
	} {
		w := s.do(http.MethodPost, "/register", "", map[string]string{"username": "alice", "password": password})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		resp := decode[struct {
			Fields map[string]string `json:"fields"`
		}](t, w)
		assert.Equal(t, "maxbytes", resp.Fields["password"])
	}

	// 36 two-byte characters fit exactly.
	s.register("alice", strings.Repeat("é", 36))
}

func TestContent_EmptyBodyRejected(t *testing.T) {
	s := newTestServer(t)
	token := s.register("alice", "pw1")
	post := s.createPost(token, "hi", "world")

	for _, tc := range []struct {
		path string
		body map[string]interface{}
	}{
		{"/post", map[string]interface{}{"name": "hi", "body": ""}},
		{"/comment", map[string]interface{}{"post_id": post.ID, "body": ""}},
	} {
		w := s.do(http.MethodPost, tc.path, token, tc.body)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, tc.path)
		resp := decode[struct {
			Fields map[string]string `json:"fields"`
		}](t, w)
		assert.Equal(t, "required", resp.Fields["body"], tc.path)
	}
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "pw1")

	w := s.do(http.MethodPost, "/token", "", map[string]string{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode[map[string]string](t, w)["access_token"]

	w = s.do(http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]interface{}](t, w)
	assert.Equal(t, "alice", me["username"])
	assert.NotNil(t, me["id"])
	assert.NotContains(t, me, "password_hash")
	assert.NotContains(t, me, "PasswordHash")
}

func TestLogin_BadCredentials(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "pw1")

	for _, creds := range []map[string]string{
		{"username": "alice", "password": "wrong"},
		{"username": "nobody", "password": "pw1"},
	} {
		w := s.do(http.MethodPost, "/token", "", creds)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	}
}

func TestProtectedEndpoints_RejectBadTokens(t *testing.T) {
	s := newTestServer(t)
	valid := s.register("alice", "pw1")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	// Flip the first signature character; all of its bits are significant.
	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	flipped := "A"
	if strings.HasPrefix(parts[2], "A") {
		flipped = "B"
	}
	tampered := parts[0] + "." + parts[1] + "." + flipped + parts[2][1:]

	protected := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/users/me", nil},
		{http.MethodPost, "/post", map[string]string{"name": "n", "body": "b"}},
		{http.MethodPost, "/comment", map[string]interface{}{"body": "b", "post_id": 1}},
		{http.MethodGet, "/events", nil},
	}

	for _, ep := range protected {
		for name, tok := range map[string]string{"missing": "", "expired": expired, "tampered": tampered} {
			t.Run(ep.path+"/"+name, func(t *testing.T) {
				w := s.do(ep.method, ep.path, tok, ep.body)
				assert.Equal(t, http.StatusUnauthorized, w.Code)
				assert.True(t, strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer"))
			})
		}
	}
}

func TestPosts_CreateAndList(t *testing.T) {
	s := newTestServer(t)
	token := s.register("alice", "pw1")

	created := s.createPost(token, "hi", "world")
	assert.NotZero(t, created.ID)
	assert.Equal(t, "hi", created.Name)
	assert.Equal(t, "world", created.Body)
	assert.NotZero(t, created.UserID)

	w := s.do(http.MethodGet, "/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := decode[[]models.Post](t, w)

	matches := 0
	for _, p := range posts {
		if p.ID == created.ID {
			matches++
			assert.Equal(t, "hi", p.Name)
		}
	}
	assert.Equal(t, 1, matches)
}

func TestPosts_EmptyListIsArray(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestComments_CreateListAndEmbed(t *testing.T) {
	s := newTestServer(t)
	token := s.register("alice", "pw1")
	post := s.createPost(token, "hi", "world")

	w := s.do(http.MethodPost, "/comment", token, map[string]interface{}{"body": "first!", "post_id": post.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comment := decode[models.Comment](t, w)
	assert.NotZero(t, comment.ID)
	assert.Equal(t, post.ID, comment.PostID)

	w = s.do(http.MethodGet, fmt.Sprintf("/post/%d/comments", post.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.Comment](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, comment.ID, list[0].ID)

	w = s.do(http.MethodGet, fmt.Sprintf("/posts/%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	full := decode[map[string]interface{}](t, w)
	assert.Equal(t, "hi", full["name"])
	embedded, ok := full["comments"].([]interface{})
	require.True(t, ok, "comments must be a JSON array")
	require.Len(t, embedded, 1)
	assert.Equal(t, "first!", embedded[0].(map[string]interface{})["body"])
}

func TestComments_UnknownPost(t *testing.T) {
	s := newTestServer(t)
	token := s.register("alice", "pw1")

	w := s.do(http.MethodPost, "/comment", token, map[string]interface{}{"body": "x", "post_id": 404})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/comment", token, map[string]interface{}{"body": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetPost_NotFoundAndBadID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/posts/12345", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/posts/abc", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, "/post/0/comments", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEvents_RecordsActivity(t *testing.T) {
	s := newTestServer(t)
	token := s.register("alice", "pw1")
	s.createPost(token, "hi", "world")

	w := s.do(http.MethodGet, "/events?limit=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]models.Event](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, services.EventPostCreated, events[0].Type)
}

func TestStatsAndHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/stats", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.register("alice", "pw1")
	s.stats.Collect()

	w = s.do(http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.Stats](t, w)
	assert.Equal(t, 1, stats.Content.Users)

	w = s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLiveFeed(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	token := s.register("alice", "pw1")
	post := s.createPost(token, "hi", "world")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(fmt.Sprintf("%s/ws/posts/%d", wsURL, post.ID), nil)
	require.NoError(t, err)
	defer conn.Close()

	// A ping round-trip proves the client is registered before anything is broadcast.
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	var msg websocket.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Action)

	w := s.do(http.MethodPost, "/comment", token, map[string]interface{}{"body": "live", "post_id": post.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, services.EventCommentCreated, msg.Action)
	assert.Equal(t, services.PostTopic(post.ID), msg.Topic)
}
