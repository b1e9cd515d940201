package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hireval/internal/domain"
)

func TestParseLooseJSON_Strict(t *testing.T) {
	t.Parallel()
	m := ParseLooseJSON(`{"matchRate":0.85,"strengths":["go"]}`)
	require.NotNil(t, m)
	assert.Equal(t, 0.85, m["matchRate"])
}

func TestParseLooseJSON_MarkdownFenced(t *testing.T) {
	t.Parallel()
	m := ParseLooseJSON("```json\n{\"a\":1}\n```")
	require.NotNil(t, m)
	assert.Equal(t, float64(1), m["a"])
}

func TestParseLooseJSON_ProseWrapped(t *testing.T) {
	t.Parallel()
	m := ParseLooseJSON(`Sure! Here is the evaluation you asked for: {"score": 4.2, "note": "has { braces } in string"} Hope this helps.`)
	require.NotNil(t, m)
	assert.Equal(t, 4.2, m["score"])
	assert.Equal(t, "has { braces } in string", m["note"])
}

func TestParseLooseJSON_GivesUp(t *testing.T) {
	t.Parallel()
	assert.Nil(t, ParseLooseJSON("no json here at all"))
	assert.Nil(t, ParseLooseJSON("{broken"))
}

func TestExtractBalancedObject(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `{"a":{"b":1}}`, ExtractBalancedObject(`x {"a":{"b":1}} y`))
	assert.Equal(t, "", ExtractBalancedObject("nothing"))
	// picks the largest balanced object
	got := ExtractBalancedObject(`{"s":1} and {"big":{"nested":true},"x":2}`)
	assert.Equal(t, `{"big":{"nested":true},"x":2}`, got)
	// escaped quotes inside strings do not derail the scan
	assert.Equal(t, `{"t":"say \"hi\" {now}"}`, ExtractBalancedObject(`pre {"t":"say \"hi\" {now}"} post`))
}

func TestEvaluate_ReturnsRawAndParsed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Result: {\"matchRate\":0.7}"}}]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	ev, err := c.Evaluate(context.Background(), "sys", "user", domain.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, `Result: {"matchRate":0.7}`, ev.Raw)
	require.NotNil(t, ev.Parsed)
	assert.Equal(t, 0.7, ev.Parsed["matchRate"])
}

func TestEvaluate_RawOnlyWhenUnparseable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"I cannot answer in JSON."}}]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	ev, err := c.Evaluate(context.Background(), "sys", "user", domain.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "I cannot answer in JSON.", ev.Raw)
	assert.Nil(t, ev.Parsed)
}
