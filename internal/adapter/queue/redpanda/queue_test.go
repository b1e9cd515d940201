package redpanda

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hireval/internal/domain"
)

func TestNewProducer_RequiresBrokers(t *testing.T) {
	t.Parallel()
	_, err := NewProducer(nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no seed brokers")
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	t.Parallel()
	_, err := NewConsumer(nil, "g", 3, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no seed brokers")
}

func TestCreateTopic_RejectsEmptyName(t *testing.T) {
	t.Parallel()
	err := createTopicIfNotExists(context.Background(), nil, "", 1, 1)
	require.Error(t, err)
}

func TestTaskPayload_RoundTrip(t *testing.T) {
	t.Parallel()
	in := domain.EvaluateTaskPayload{
		JobID:       "eval_m2x_9a1b2c3d4e5f",
		JobRecordID: "5d7e0a52-1111-2222-3333-444455556666",
		JobTitle:    "Backend Engineer",
		CVText:      "cv body",
		ProjectText: "project body",
		OwnerID:     "user-1",
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out domain.EvaluateTaskPayload
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
	assert.Contains(t, string(b), `"job_id"`)
}
