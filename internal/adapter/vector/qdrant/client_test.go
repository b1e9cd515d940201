package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	t.Parallel()
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/refs":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/refs":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			vectors := body["vectors"].(map[string]any)
			assert.Equal(t, float64(128), vectors["size"])
			assert.Equal(t, "Cosine", vectors["distance"])
			created = true
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	require.NoError(t, c.EnsureCollection(context.Background(), "refs", 128))
	assert.True(t, created)
}

func TestEnsureCollection_NoopWhenPresent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	require.NoError(t, c.EnsureCollection(context.Background(), "refs", 128))
}

func TestSearch_SendsThresholdAndFilter(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/refs/points/search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 0.3, body["score_threshold"])
		assert.Equal(t, float64(5), body["limit"])
		filter := body["filter"].(map[string]any)
		must := filter["must"].([]any)
		require.Len(t, must, 1)
		cond := must[0].(map[string]any)
		assert.Equal(t, "doc_type", cond["key"])
		_, _ = w.Write([]byte(`{"result":[{"id":"p1","score":0.91,"payload":{"text":"chunk text","doc_id":"d1"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", time.Second)
	hits, err := c.Search(context.Background(), "refs", []float32{0.1, 0.2}, 5, 0.3, map[string]string{"doc_type": "cv"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0.91, hits[0].Score)
	assert.Equal(t, "chunk text", hits[0].Payload["text"])
}

func TestUpsertPoints_EmptyIsNoop(t *testing.T) {
	t.Parallel()
	c := New("http://127.0.0.1:1", "", time.Second)
	require.NoError(t, c.UpsertPoints(context.Background(), "refs", nil))
}

func TestDeleteByDocID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collections/refs/points/delete", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		must := body["filter"].(map[string]any)["must"].([]any)
		cond := must[0].(map[string]any)
		assert.Equal(t, "doc_id", cond["key"])
		assert.Equal(t, "doc-42", cond["match"].(map[string]any)["value"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	require.NoError(t, c.DeleteByDocID(context.Background(), "refs", "doc-42"))
}

func TestSearch_ErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.Search(context.Background(), "refs", []float32{0.1}, 5, 0, nil)
	require.Error(t, err)
}
