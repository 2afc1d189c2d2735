package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/domain/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientOptions{BaseURL: srv.URL + "/", WorkerID: "w-1", RequestTimeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientOptions{BaseURL: "http://localhost:7777"})
	assert.Error(t, err)

	_, err = NewClient(ClientOptions{BaseURL: "localhost:7777", WorkerID: "w"})
	assert.Error(t, err)

	c, err := NewClient(ClientOptions{BaseURL: "http://localhost:7777/", WorkerID: "w"})
	require.NoError(t, err)
	assert.Equal(t, "w", c.WorkerID())
	assert.Equal(t, defaultRequestTimeout, c.timeout)
}

func TestClient_Next(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/job/next", r.URL.Path)
		assert.Equal(t, "w-1", r.URL.Query().Get("worker_id"))
		assert.Equal(t, "EVIDENCE_SNAPSHOT,FOLLOWUP_NOTICE_SEND", r.URL.Query().Get("types"))
		assert.Equal(t, "1500ms", r.URL.Query().Get("wait"))
		_, _ = w.Write([]byte(`{"id":7,"event_type":"EVIDENCE_SNAPSHOT","payload":{"case_id":"C-1"},"priority":1}`))
	})

	job, err := c.Next(context.Background(), []string{"EVIDENCE_SNAPSHOT", "FOLLOWUP_NOTICE_SEND"}, 1500*time.Millisecond)

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(7), job.ID)
	assert.Equal(t, model.EventEvidenceSnapshot, job.EventType)
	assert.JSONEq(t, `{"case_id":"C-1"}`, string(job.Payload))
}

func TestClient_NextEmpty(t *testing.T) {
	for name, h := range map[string]http.HandlerFunc{
		"null body":  func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("null\n")) },
		"no content": func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) },
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			job, err := c.Next(context.Background(), nil, 0)
			require.NoError(t, err)
			assert.Nil(t, job)
		})
	}
}

func TestClient_NextServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	})

	_, err := c.Next(context.Background(), nil, 0)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.True(t, se.Retryable())
	assert.False(t, IsNetworkError(err))
}

func TestClient_Complete(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/job/complete", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"recorded":true}`))
	})

	err := c.Complete(context.Background(), 12, model.JobStatusFailed, Result{"ok": false, "error": "boom"})

	require.NoError(t, err)
	assert.EqualValues(t, 12, got["job_id"])
	assert.Equal(t, "w-1", got["worker_id"])
	assert.Equal(t, "FAILED", got["status"])
	assert.Equal(t, map[string]any{"ok": false, "error": "boom"}, got["result"])
}

func TestClient_CompleteRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found"}`))
	})

	err := c.Complete(context.Background(), 1, model.JobStatusCompleted, nil)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.False(t, se.Retryable())
	assert.Contains(t, err.Error(), "not_found")
}

func TestClient_Emit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/event", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, model.EventCertifiedMailSubmitted, body["event_type"])
		assert.EqualValues(t, 1, body["priority"])
		_, _ = w.Write([]byte(`{"recorded":true,"event_type":"CERTIFIED_MAIL_SUBMITTED","job_id":44}`))
	})

	id, err := c.Emit(context.Background(), model.EventCertifiedMailSubmitted, map[string]any{"case_id": "C-1"}, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(44), id)
}

func TestIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(ClientOptions{BaseURL: url, WorkerID: "w", RequestTimeout: time.Second})
	require.NoError(t, err)

	_, err = c.Next(context.Background(), nil, 0)
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))

	assert.False(t, IsNetworkError(nil))
	assert.False(t, IsNetworkError(errors.New("plain")))
	assert.True(t, IsNetworkError(context.DeadlineExceeded))
}
