package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordseqapp/chordseq-server/internal/auth"
	"github.com/chordseqapp/chordseq-server/internal/media"
	"github.com/chordseqapp/chordseq-server/internal/service"
	"github.com/chordseqapp/chordseq-server/internal/store/sqlite"
)

// testServer wraps the API server with a humatest client.
type testServer struct {
	*Server
	api    humatest.TestAPI
	tokens *auth.TokenService
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	accessKey, err := auth.LoadOrGenerateAccessKey(dir)
	require.NoError(t, err)
	signingKey, err := auth.LoadOrGenerateSigningKey(dir)
	require.NoError(t, err)
	keySet, err := auth.NewKeySet(filepath.Join(dir, "invite_pub"), logger)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(accessKey, signingKey, keySet, time.Hour, 24*time.Hour)
	require.NoError(t, err)

	files, err := media.NewStorage(filepath.Join(dir, "media"))
	require.NoError(t, err)

	authz := service.NewAuthzService(store, logger)
	tagService := service.NewTagService(store, authz, logger)
	services := &Services{
		Tokens:     tokens,
		User:       service.NewUserService(store, tokens, logger),
		Tag:        tagService,
		Chart:      service.NewChartService(store, authz, tagService, logger),
		Reaction:   service.NewReactionService(store, logger),
		Invitation: service.NewInvitationService(store, authz, tokens, logger),
		Policy:     service.NewPolicyService(store, authz, logger),
		Media:      service.NewMediaService(files, logger),
	}

	s := NewServer(store, services, Options{
		Name:         "ChordSeq API Test",
		RateLimitRPS: 1000,
	}, logger)
	t.Cleanup(s.Close)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.api),
		tokens: tokens,
	}
}

// registerUser creates an account through the public endpoint and returns its
// access token and user ID.
func (ts *testServer) registerUser(t *testing.T, email string) (token string, userID string) {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":    email,
		"password": "a long enough password",
	})
	require.Equal(t, http.StatusOK, resp.Code, "register failed: %s", resp.Body.String())

	var body AuthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken, body.User.ID
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

// === Tests ===

func TestRegisterAndLogin(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":        "alice@example.com",
		"password":     "a long enough password",
		"display_name": "Alice",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var reg AuthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.AccessToken)
	assert.Positive(t, reg.ExpiresIn)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, "Alice", reg.User.DisplayName)

	// The token round-trips through the verifier.
	claims, err := ts.tokens.VerifyAccessToken(reg.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	resp = ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "a long enough password",
	})
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "not the password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequestsWithoutToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/tags")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	assert.Equal(t, "UNAUTHENTICATED", apiErr.Code)
}

func TestRequestsWithGarbageToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/users/me", "Authorization: Bearer v4.local.garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestTagCRUD(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.registerUser(t, "alice@example.com")

	resp := ts.api.Post("/api/v1/tags", bearer(token), map[string]any{
		"name": "Jazz Standards",
		"kind": "list",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var tag TagResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tag))
	assert.Equal(t, "Jazz Standards", tag.Name)
	assert.Equal(t, "list", tag.Kind)
	assert.Equal(t, userID, tag.OwnerID)
	assert.False(t, tag.Public)

	resp = ts.api.Get("/api/v1/tags", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	var list ListTagsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Tags, 1)
	assert.Equal(t, tag.ID, list.Tags[0].ID)

	resp = ts.api.Get("/api/v1/tags/"+tag.ID, bearer(token))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/tags/"+tag.ID, bearer(token))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/tags/"+tag.ID, bearer(token))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestValidationErrorShape(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")

	// Present but empty fields get past schema validation and fail in the
	// service layer.
	resp := ts.api.Post("/api/v1/tags", bearer(token), map[string]any{
		"name": "",
		"kind": "descriptor",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	var apiErr APIError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.NotEmpty(t, apiErr.Message)
}

func TestCurrentUserEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.registerUser(t, "alice@example.com")

	resp := ts.api.Get("/api/v1/users/me", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	assert.Equal(t, userID, me.ID)

	resp = ts.api.Patch("/api/v1/users/me", bearer(token), map[string]any{
		"display_name": "Alice A.",
		"settings":     map[string]any{"theme": "dark"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	assert.Equal(t, "Alice A.", me.DisplayName)
	assert.Equal(t, "dark", me.Settings["theme"])

	resp = ts.api.Delete("/api/v1/users/me", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	// The old row is gone; a still-valid token provisions a fresh account
	// from its claims, with none of the old profile data.
	resp = ts.api.Get("/api/v1/users/me", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	assert.Equal(t, userID, me.ID)
	assert.Empty(t, me.DisplayName)
}

func TestListUsersSearch(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")
	ts.registerUser(t, "bob@example.com")

	resp := ts.api.Get("/api/v1/users?search=bob", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	var list ListUsersResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "bob@example.com", list.Users[0].Email)
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "up", health.Components["database"].Status)
}
