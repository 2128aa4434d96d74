package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newTestClient(url string) *Client {
	c := NewClient(config.Config{GitLabURL: url, GitLabToken: "glpat-test", HTTPTimeout: 5 * time.Second}, zerolog.Nop())
	c.backoff = time.Millisecond
	return c
}

const firstPage = `{"data":{"group":{"epic":{
  "iid":"1","title":"Root",
  "children":{"nodes":[{"iid":"10"},{"iid":"11"}]},
  "issues":{"pageInfo":{"hasNextPage":true,"endCursor":"c1"},"nodes":[
    {"iid":"2","title":"A","createdAt":"2025-09-30T08:00:00Z","state":"opened","timeEstimate":7200,"totalTimeSpent":10800,
     "labels":{"nodes":[{"title":"Bug"}]},
     "timelogs":{"pageInfo":{"hasNextPage":false},"nodes":[
       {"timeSpent":5400,"spentAt":"2025-10-01T10:00:00Z","user":{"username":"nivek","name":"Nivek"}},
       {"timeSpent":1800,"spentAt":"2025-10-02T10:00:00Z","user":{"username":"buerek","name":""}}]}}]}}}}}`

const secondPage = `{"data":{"group":{"epic":{
  "iid":"1","title":"Root",
  "children":{"nodes":[{"iid":"10"},{"iid":"11"}]},
  "issues":{"pageInfo":{"hasNextPage":false,"endCursor":"c2"},"nodes":[
    {"iid":"3","title":"B","createdAt":null,"state":"closed","timeEstimate":null,"totalTimeSpent":0,
     "labels":{"nodes":[]},"timelogs":{"pageInfo":{"hasNextPage":false},"nodes":[]}}]}}}}}`

func TestFetchEpic_FollowsChildPages(t *testing.T) {
	const children1 = `{"data":{"group":{"epic":{"iid":"1","title":"Root",
  "children":{"pageInfo":{"hasNextPage":true,"endCursor":"k1"},"nodes":[{"iid":"10"},{"iid":"11"}]},
  "issues":{"pageInfo":{"hasNextPage":false,"endCursor":"c1"},"nodes":[
    {"iid":"2","title":"A","state":"opened","labels":{"nodes":[]},"timelogs":{"pageInfo":{"hasNextPage":false},"nodes":[]}}]}}}}}`
	const children2 = `{"data":{"group":{"epic":{"iid":"1","title":"Root",
  "children":{"pageInfo":{"hasNextPage":false,"endCursor":"k2"},"nodes":[{"iid":"12"}]},
  "issues":{"pageInfo":{"hasNextPage":false,"endCursor":"c1"},"nodes":[]}}}}}`

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Variables["childAfter"] == "k1" {
			assert.Equal(t, "c1", req.Variables["after"], "finished issue cursor is kept")
			_, _ = w.Write([]byte(children2))
			return
		}
		_, _ = w.Write([]byte(children1))
	}))
	defer srv.Close()

	rec, err := newTestClient(srv.URL).FetchEpic(context.Background(), "grp", "1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"10", "11", "12"}, rec.ChildIDs)
	require.Len(t, rec.Issues, 1)
}

func TestFetchEpic_FollowsIssuePages(t *testing.T) {
	var cursors []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/graphql", r.URL.Path)
		assert.Equal(t, "Bearer glpat-test", r.Header.Get("Authorization"))
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "my-org/my-team", req.Variables["groupPath"])
		assert.Equal(t, "1", req.Variables["epicIid"])
		cursors = append(cursors, req.Variables["after"])
		if req.Variables["after"] == nil {
			_, _ = w.Write([]byte(firstPage))
			return
		}
		_, _ = w.Write([]byte(secondPage))
	}))
	defer srv.Close()

	rec, err := newTestClient(srv.URL).FetchEpic(context.Background(), "my-org/my-team", "1")
	require.NoError(t, err)
	assert.Equal(t, []any{nil, "c1"}, cursors)

	assert.Equal(t, "1", rec.ID)
	assert.Equal(t, "Root", rec.Title)
	assert.Equal(t, []string{"10", "11"}, rec.ChildIDs)
	require.Len(t, rec.Issues, 2)

	a := rec.Issues[0]
	assert.Equal(t, "2", a.ID)
	assert.Equal(t, 7200.0, a.EstimateSeconds)
	assert.Equal(t, 10800.0, a.TotalSpentSeconds)
	assert.Equal(t, []string{"Bug"}, a.Labels)
	require.Len(t, a.Timelogs, 2)
	assert.Equal(t, 1.5, a.Timelogs[0].Hours)
	assert.Equal(t, "Nivek", a.Timelogs[0].UserName)
	assert.Equal(t, "buerek", a.Timelogs[1].UserName)

	b := rec.Issues[1]
	assert.Equal(t, "", b.CreatedAt)
	assert.Equal(t, "closed", b.State)
	assert.Zero(t, b.EstimateSeconds)
}

func TestFetchEpic_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(secondPage))
	}))
	defer srv.Close()

	rec, err := newTestClient(srv.URL).FetchEpic(context.Background(), "g", "1")
	require.NoError(t, err)
	assert.Len(t, rec.Issues, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchEpic_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchEpic(context.Background(), "g", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gitlab api status=401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchEpic_GraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Field 'epic' doesn't exist"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchEpic(context.Background(), "g", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Field 'epic' doesn't exist")
}

func TestFetchEpic_MissingEpic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"group":{"epic":null}}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchEpic(context.Background(), "g", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epic 99 not found")
}
