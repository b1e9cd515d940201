package llm

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbed_DeterministicUnitNorm(t *testing.T) {
	t.Parallel()
	a := HashEmbed("Senior backend engineer, 6 years Node.js")
	b := HashEmbed("Senior backend engineer, 6 years Node.js")
	c := HashEmbed("different text entirely")
	require.Len(t, a, HashDim)
	assert.Equal(t, a, b, "identical input must yield identical vectors")
	assert.NotEqual(t, a, c)

	var norm float64
	for _, x := range a {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashEmbed_EmptyText(t *testing.T) {
	t.Parallel()
	v := HashEmbed("")
	require.Len(t, v, HashDim)
	assert.Equal(t, float32(1), v[0])
}

func TestParseFloatVector(t *testing.T) {
	t.Parallel()
	parts := make([]string, HashDim)
	for i := range parts {
		parts[i] = "0.5"
	}
	vec, err := parseFloatVector("[ "+strings.Join(parts, ", ")+" ]", HashDim)
	require.NoError(t, err)
	require.Len(t, vec, HashDim)

	_, err = parseFloatVector("1.0, 2.0, not enough", HashDim)
	require.Error(t, err)
}

func TestEmbed_EndpointSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]},{"embedding":[0.3,0.4]}]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 0.3, vecs[1][0], 1e-6)
}

func TestEmbed_FallsBackToHashWhenAllElseFails(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	vecs, err := c.Embed(context.Background(), []string{"some text"})
	require.NoError(t, err, "final hash fallback must not fail")
	require.Len(t, vecs, 1)
	assert.Equal(t, HashEmbed("some text"), vecs[0])
}

func TestEmbed_ChatFallbackParsesVector(t *testing.T) {
	t.Parallel()
	parts := make([]string, HashDim)
	for i := range parts {
		parts[i] = "0.1"
	}
	vectorLine := strings.Join(parts, ",")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/embeddings" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + vectorLine + `"}}]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	vecs, err := c.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	require.Len(t, vecs[0], HashDim)
	// chat-embedded vectors are L2-normalized
	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}
