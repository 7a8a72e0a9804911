package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ts *testServer) createChart(t *testing.T, token string, body map[string]any) ChartResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/charts", bearer(token), body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var chart ChartResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &chart))
	return chart
}

func (ts *testServer) createTag(t *testing.T, token string, body map[string]any) TagResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/tags", bearer(token), body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var tag TagResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tag))
	return tag
}

func (ts *testServer) listCharts(t *testing.T, token, query string) []ChartResponse {
	t.Helper()

	path := "/api/v1/charts"
	if query != "" {
		path += "?" + query
	}
	resp := ts.api.Get(path, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var list ListChartsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	return list.Charts
}

// === Tests ===

func TestCreateChartWithTags(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.registerUser(t, "alice@example.com")
	tag := ts.createTag(t, token, map[string]any{"name": "Warmups", "kind": "list"})

	chart := ts.createChart(t, token, map[string]any{
		"kind":    "chord",
		"root":    "C",
		"quality": "major",
		"hint":    "open position",
		"tag_ids": []string{tag.ID},
	})

	assert.Equal(t, "chord", chart.Kind)
	assert.Equal(t, userID, chart.OwnerID)
	assert.Equal(t, "C", chart.Root)
	assert.False(t, chart.Public)
	require.Len(t, chart.Tags, 1)
	assert.Equal(t, tag.ID, chart.Tags[0].ID)
}

func TestCreateChartRejectsUnknownKind(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")

	resp := ts.api.Post("/api/v1/charts", bearer(token), map[string]any{"kind": "riff"})
	assert.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
}

func TestUpdateChart(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")
	chart := ts.createChart(t, token, map[string]any{"kind": "progression"})

	resp := ts.api.Patch("/api/v1/charts/"+chart.ID, bearer(token), map[string]any{
		"notes":  "ii-V-I in F",
		"public": true,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var updated ChartResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &updated))
	assert.Equal(t, "ii-V-I in F", updated.Notes)
	assert.True(t, updated.Public)
}

func TestChartVisibility(t *testing.T) {
	ts := setupTestServer(t)
	aliceToken, _ := ts.registerUser(t, "alice@example.com")
	bobToken, _ := ts.registerUser(t, "bob@example.com")

	private := ts.createChart(t, aliceToken, map[string]any{"kind": "chord"})
	public := ts.createChart(t, aliceToken, map[string]any{"kind": "chord", "public": true})

	// A foreign private chart reads as not found, never as forbidden.
	resp := ts.api.Get("/api/v1/charts/"+private.ID, bearer(bobToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Get("/api/v1/charts/"+public.ID, bearer(bobToken))
	assert.Equal(t, http.StatusOK, resp.Code)

	// And a public chart is read-only for non-owners.
	resp = ts.api.Patch("/api/v1/charts/"+public.ID, bearer(bobToken), map[string]any{"notes": "x"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	ids := func(charts []ChartResponse) []string {
		out := make([]string, len(charts))
		for i, c := range charts {
			out[i] = c.ID
		}
		return out
	}
	assert.ElementsMatch(t, []string{private.ID, public.ID}, ids(ts.listCharts(t, aliceToken, "")))
	assert.ElementsMatch(t, []string{public.ID}, ids(ts.listCharts(t, bobToken, "")))
}

func TestListChartsFilters(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")
	tag := ts.createTag(t, token, map[string]any{"name": "Blues", "kind": "descriptor"})

	tagged := ts.createChart(t, token, map[string]any{"kind": "progression", "tag_ids": []string{tag.ID}})
	ts.createChart(t, token, map[string]any{"kind": "chord"})

	charts := ts.listCharts(t, token, "tag_ids="+tag.ID)
	require.Len(t, charts, 1)
	assert.Equal(t, tagged.ID, charts[0].ID)

	charts = ts.listCharts(t, token, "kinds=chord")
	require.Len(t, charts, 1)
	assert.Equal(t, "chord", charts[0].Kind)

	resp := ts.api.Get("/api/v1/charts?kinds=riff", bearer(token))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListChartsPagination(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")

	for range 5 {
		ts.createChart(t, token, map[string]any{"kind": "chord"})
	}

	page1 := ts.listCharts(t, token, "limit=2&order=created&ascending=true")
	require.Len(t, page1, 2)

	page2 := ts.listCharts(t, token, "limit=2&order=created&ascending=true&after="+page1[1].ID)
	require.Len(t, page2, 2)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
	assert.NotEqual(t, page1[1].ID, page2[0].ID)
}

func TestReactionToggle(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.registerUser(t, "alice@example.com")
	chart := ts.createChart(t, token, map[string]any{"kind": "chord"})

	resp := ts.api.Post("/api/v1/charts/"+chart.ID+"/reactions", bearer(token), map[string]any{"kind": "star"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var react ReactResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &react))
	require.NotNil(t, react.Reaction)
	assert.Equal(t, "star", react.Reaction.Kind)
	assert.Equal(t, userID, react.Reaction.UserID)

	// The chart reflects the caller's reaction.
	resp = ts.api.Get("/api/v1/charts/"+chart.ID, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	var got ChartResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, 1, got.ReactionCount)
	assert.Equal(t, "star", got.CallerReaction)

	// Reacting with the same kind again toggles it off.
	resp = ts.api.Post("/api/v1/charts/"+chart.ID+"/reactions", bearer(token), map[string]any{"kind": "star"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &react))
	assert.Nil(t, react.Reaction)

	resp = ts.api.Get("/api/v1/charts/"+chart.ID, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, 0, got.ReactionCount)
	assert.Empty(t, got.CallerReaction)
}

func TestChartExtensions(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.registerUser(t, "alice@example.com")

	resp := ts.api.Get("/api/v1/extensions", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	var extensions ListExtensionsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &extensions))
	require.NotEmpty(t, extensions.Extensions)
	ext := extensions.Extensions[0]

	chart := ts.createChart(t, token, map[string]any{"kind": "chord", "root": "G"})

	resp = ts.api.Post("/api/v1/charts/"+chart.ID+"/extensions", bearer(token), map[string]any{
		"extension_ids": []string{ext.ID},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/charts/"+chart.ID, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	var got ChartResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	require.Len(t, got.Extensions, 1)
	assert.Equal(t, ext.ID, got.Extensions[0].ID)

	resp = ts.api.Delete("/api/v1/charts/"+chart.ID+"/extensions/"+ext.ID, bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/charts/"+chart.ID, bearer(token))
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Empty(t, got.Extensions)
}

func TestDeleteChart(t *testing.T) {
	ts := setupTestServer(t)
	aliceToken, _ := ts.registerUser(t, "alice@example.com")
	bobToken, _ := ts.registerUser(t, "bob@example.com")

	chart := ts.createChart(t, aliceToken, map[string]any{"kind": "chord", "public": true})

	// Visible but not deletable by a non-owner.
	resp := ts.api.Delete("/api/v1/charts/"+chart.ID, bearer(bobToken))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Delete("/api/v1/charts/"+chart.ID, bearer(aliceToken))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/charts/"+chart.ID, bearer(aliceToken))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestChartOwnerNameEnrichment(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":        "alice@example.com",
		"password":     "a long enough password",
		"display_name": "Alice",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var reg AuthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &reg))

	chart := ts.createChart(t, reg.AccessToken, map[string]any{"kind": "chord"})
	assert.Equal(t, "Alice", chart.OwnerName)
}
