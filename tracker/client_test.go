package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func trackerConfig(baseURL string) config.TrackerConfig {
	return config.TrackerConfig{
		BaseURL:    baseURL,
		Token:      "test-token",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}
}

func TestCreateIssue_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/3/issue", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"key":"PROJ-42","id":"10042","self":"https://tracker/rest/api/3/issue/10042"}`))
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(trackerConfig(server.URL), logger)
	require.NotNil(t, client)

	created, err := client.CreateIssue(context.Background(), &Issue{
		ProjectKey: "PROJ",
		Summary:    "Design portal mockups",
		IssueType:  "Task",
	})
	require.NoError(t, err)
	assert.Equal(t, "PROJ-42", created.Key)
}

func TestCreateIssue_RetriesOnThrottle(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"key":"PROJ-43","id":"10043","self":""}`))
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(trackerConfig(server.URL), logger)

	created, err := client.CreateIssue(context.Background(), &Issue{ProjectKey: "PROJ", Summary: "s", IssueType: "Task"})
	require.NoError(t, err)
	assert.Equal(t, "PROJ-43", created.Key)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateIssue_ExhaustsRetryBudget(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	cfg := trackerConfig(server.URL)
	client := NewClient(cfg, logger)

	_, err := client.CreateIssue(context.Background(), &Issue{ProjectKey: "PROJ", Summary: "s", IssueType: "Task"})
	require.Error(t, err)
	assert.True(t, services.IsExternalError(err))
	// Initial attempt plus MaxRetries retries.
	assert.Equal(t, int32(cfg.MaxRetries+1), atomic.LoadInt32(&calls))
}

func TestCreateIssue_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(trackerConfig(server.URL), logger)

	_, err := client.CreateIssue(context.Background(), &Issue{ProjectKey: "PROJ", Summary: "s", IssueType: "Task"})
	require.Error(t, err)
	assert.True(t, services.IsExternalError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetIssue_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(trackerConfig(server.URL), logger)

	_, err := client.GetIssue(context.Background(), "PROJ-404")
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))
}

func TestNewClient_EmptyBaseURLDisablesClient(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	client := NewClient(config.TrackerConfig{}, logger)
	assert.Nil(t, client)
}
