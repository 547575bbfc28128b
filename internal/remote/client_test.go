package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megatrack/internal/model"
)

// recorded is what the test server saw for one request.
type recorded struct {
	contentType string
	envelope    struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
}

// server records every request it answers.
type server struct {
	URL  string
	mu   sync.Mutex
	seen []recorded
}

func (s *server) requests() []recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recorded(nil), s.seen...)
}

// serve starts a server answering every request with status and body.
func serve(t *testing.T, status int, body string) *server {
	t.Helper()
	s := &server{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var rec recorded
		rec.contentType = r.Header.Get("Content-Type")
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(data, &rec.envelope))
		s.mu.Lock()
		s.seen = append(s.seen, rec)
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

func TestGetTasks(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"tasks":[
		{"id":"a","month":"Month 1","week":"1","day":"Monday","task":"Draft report","is_completed":false,
		 "status":"Not Started","notes":"","created_at":"2024-03-01T10:00:00Z","user_email":"alice@x.com"}]}`)

	tasks, err := NewClient(nil, nil).GetTasks(context.Background(), srv.URL, "alice@x.com")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.Week(1), tasks[0].Week)
	assert.Equal(t, "Draft report", tasks[0].Title)

	seen := srv.requests()
	require.Len(t, seen, 1)
	req := seen[0]
	assert.Equal(t, "text/plain;charset=utf-8", req.contentType)
	assert.Equal(t, OpGetTasks, req.envelope.Type)
	assert.JSONEq(t, `{"user_email":"alice@x.com"}`, string(req.envelope.Payload))
}

func TestGetTasksEmptyList(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"tasks":[]}`)

	tasks, err := NewClient(nil, nil).GetTasks(context.Background(), srv.URL, "alice@x.com")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestGetTasksSkipsBadRows(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"tasks":[
		{"id":"a","month":"Month 1","week":1,"day":"Monday","task":"Draft report","status":"Not Started",
		 "created_at":"2024-03-01T10:00:00Z","user_email":"alice@x.com"},
		{"id":"b","month":"Month 1","week":1,"day":"Monday","task":"blank date","status":"Not Started",
		 "created_at":"","user_email":"alice@x.com"},
		{"id":"c","month":"Month 1","week":1,"day":"Monday","task":42,"status":"Not Started",
		 "created_at":"2024-03-01T10:00:00Z","user_email":"alice@x.com"},
		{"id":"d","month":"Month 1","week":"2","day":"Tuesday","task":"Review","status":"Done",
		 "created_at":"2024-03-02T10:00:00Z","user_email":"alice@x.com"}]}`)

	var logs bytes.Buffer
	client := NewClient(nil, log.New(&logs, "", 0))

	tasks, err := client.GetTasks(context.Background(), srv.URL, "alice@x.com")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "d", tasks[1].ID)
	assert.Equal(t, model.Week(2), tasks[1].Week)

	assert.Contains(t, logs.String(), "skipping task row 1")
	assert.Contains(t, logs.String(), "skipping task row 2")
}

func TestMutationEnvelopes(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"status":"success","id":"a"}`)
	url := srv.URL
	client := NewClient(nil, nil)
	ctx := context.Background()
	task := model.Task{ID: "a", Month: "Month 2", Week: 3, Day: "Friday", Title: "Ship", Status: model.StatusDone,
		CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), UserEmail: "alice@x.com"}

	require.NoError(t, client.CreateTask(ctx, url, task))
	require.NoError(t, client.UpdateTask(ctx, url, task))
	require.NoError(t, client.DeleteTask(ctx, url, "a", "alice@x.com"))

	seen := srv.requests()
	require.Len(t, seen, 3)
	assert.Equal(t, OpCreateTask, seen[0].envelope.Type)
	assert.Equal(t, OpUpdateTask, seen[1].envelope.Type)
	assert.Equal(t, OpDeleteTask, seen[2].envelope.Type)

	var sent model.Task
	require.NoError(t, json.Unmarshal(seen[0].envelope.Payload, &sent))
	assert.Equal(t, task, sent)
	assert.JSONEq(t, `{"id":"a","user_email":"alice@x.com"}`, string(seen[2].envelope.Payload))
}

func TestFailuresBecomeSyncErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "error shaped reply", status: http.StatusOK, body: `{"result":"error","error":"sheet missing"}`},
		{name: "error object", status: http.StatusOK, body: `{"result":"error","error":{"name":"Exception"}}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "not json", status: http.StatusOK, body: `<html>login required</html>`},
		{name: "no tasks field", status: http.StatusOK, body: `{}`},
		{name: "tasks not a list", status: http.StatusOK, body: `{"tasks":"none"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			_, err := NewClient(nil, nil).GetTasks(context.Background(), srv.URL, "alice@x.com")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyncFailed)

			var syncErr *SyncError
			require.ErrorAs(t, err, &syncErr)
			assert.Equal(t, OpGetTasks, syncErr.Op)
		})
	}
}

func TestMutationRequiresSuccessStatus(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"status":"pending"}`)

	err := NewClient(nil, nil).UpdateTask(context.Background(), srv.URL, model.Task{ID: "a"})
	assert.ErrorIs(t, err, ErrSyncFailed)
}

func TestUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(nil, nil).GetTasks(context.Background(), url, "alice@x.com")
	assert.ErrorIs(t, err, ErrSyncFailed)

	err = NewClient(nil, nil).DeleteTask(context.Background(), url, "a", "alice@x.com")
	assert.ErrorIs(t, err, ErrSyncFailed)
}
