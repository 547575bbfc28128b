// Package remote speaks the JSON-over-POST contract of the spreadsheet
// endpoint that mirrors the planner's tasks.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"megatrack/internal/model"
)

// Operation discriminators carried in the request envelope.
const (
	OpGetTasks   = "get_tasks"
	OpCreateTask = "create_task"
	OpUpdateTask = "update_task"
	OpDeleteTask = "delete_task"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// ErrSyncFailed is the uniform signal for any remote failure: transport
// errors, non-2xx replies, unparseable bodies and error-shaped replies alike.
var ErrSyncFailed = errors.New("sync failed")

// SyncError records which operation failed. It matches ErrSyncFailed
// and the underlying cause with errors.Is.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSyncFailed, e.Op, e.Err)
}

func (e *SyncError) Unwrap() []error {
	return []error{ErrSyncFailed, e.Err}
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type userPayload struct {
	UserEmail string `json:"user_email"`
}

type deletePayload struct {
	ID        string `json:"id"`
	UserEmail string `json:"user_email"`
}

// reply is the union of every response shape the endpoint produces.
type reply struct {
	Status string             `json:"status"`
	ID     string             `json:"id"`
	Result string             `json:"result"`
	Error  json.RawMessage    `json:"error"`
	Tasks  *[]json.RawMessage `json:"tasks"`
}

// Client issues requests against a remote endpoint. The endpoint URL is
// passed per call because it may change at runtime.
type Client struct {
	http   *http.Client
	logger *log.Logger
}

// NewClient returns a Client using httpClient, or http.DefaultClient when nil.
// If logger is nil, a default stderr logger is used.
func NewClient(httpClient *http.Client, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Client{http: httpClient, logger: logger}
}

// GetTasks asks the endpoint for every task of userID. The endpoint is
// expected to filter by user, but callers must not rely on it. Rows that do
// not decode as a task are logged and skipped; the rest are returned.
func (c *Client) GetTasks(ctx context.Context, endpoint, userID string) ([]model.Task, error) {
	out, err := c.do(ctx, endpoint, OpGetTasks, userPayload{UserEmail: userID})
	if err != nil {
		return nil, err
	}
	if out.Tasks == nil {
		return nil, &SyncError{Op: OpGetTasks, Err: errors.New("response has no tasks field")}
	}
	tasks := make([]model.Task, 0, len(*out.Tasks))
	for i, row := range *out.Tasks {
		var task model.Task
		if err := json.Unmarshal(row, &task); err != nil {
			c.logger.Printf("[warn] skipping task row %d for %s: %v: %s", i, userID, err, snippet(row))
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, endpoint string, task model.Task) error {
	return c.mutate(ctx, endpoint, OpCreateTask, task)
}

func (c *Client) UpdateTask(ctx context.Context, endpoint string, task model.Task) error {
	return c.mutate(ctx, endpoint, OpUpdateTask, task)
}

func (c *Client) DeleteTask(ctx context.Context, endpoint, taskID, userID string) error {
	return c.mutate(ctx, endpoint, OpDeleteTask, deletePayload{ID: taskID, UserEmail: userID})
}

func (c *Client) mutate(ctx context.Context, endpoint, op string, payload any) error {
	out, err := c.do(ctx, endpoint, op, payload)
	if err != nil {
		return err
	}
	if out.Status != "success" {
		return &SyncError{Op: op, Err: fmt.Errorf("unexpected status %q", out.Status)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, op string, payload any) (*reply, error) {
	body, err := json.Marshal(envelope{Type: op, Payload: payload})
	if err != nil {
		return nil, &SyncError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &SyncError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	// A text/plain body keeps the request "simple" for script web apps.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SyncError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &SyncError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SyncError{Op: op, Err: fmt.Errorf("http %d: %s", resp.StatusCode, snippet(data))}
	}

	var out reply
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &SyncError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Result == "error" || hasError(out.Error) {
		return nil, &SyncError{Op: op, Err: fmt.Errorf("endpoint error: %s", errorMessage(out.Error))}
	}
	return &out, nil
}

func hasError(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null" && trimmed != `""`
}

func errorMessage(raw json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	if len(raw) == 0 {
		return "unknown"
	}
	return snippet(raw)
}

func snippet(data []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
