package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"megatrack/internal/model"
	"megatrack/internal/remote"
)

// ErrTaskNotFound is returned when no task with the given id is visible to the user.
var ErrTaskNotFound = errors.New("task not found")

// LocalCache is whole-partition storage of a user's tasks.
type LocalCache interface {
	Read(ctx context.Context, userID string) ([]model.Task, error)
	Write(ctx context.Context, userID string, tasks []model.Task) error
}

// EndpointSource reports the configured remote endpoint; "" means local-only mode.
type EndpointSource interface {
	EndpointURL(ctx context.Context) (string, error)
}

// RemoteClient talks to the remote endpoint.
type RemoteClient interface {
	GetTasks(ctx context.Context, endpoint, userID string) ([]model.Task, error)
	CreateTask(ctx context.Context, endpoint string, task model.Task) error
	UpdateTask(ctx context.Context, endpoint string, task model.Task) error
	DeleteTask(ctx context.Context, endpoint, taskID, userID string) error
}

// TaskInput represents data required to create a task.
type TaskInput struct {
	Month  string
	Week   model.Week
	Day    string
	Title  string
	Status model.Status
	Notes  string
}

// TaskService is the single entry point the UI uses to read and change tasks.
//
// Without an endpoint the local cache is the only store. With one, reads are
// served by the endpoint and fall back to the cache for that call when the
// endpoint fails; writes land in the cache first and are then sent to the
// endpoint in the background. Local and remote can therefore drift apart
// silently: nothing reconciles them, and a read right after a write may not
// see that write.
type TaskService struct {
	cache     LocalCache
	endpoints EndpointSource
	remote    RemoteClient
	logger    *log.Logger
	queue     *syncQueue

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewTaskService wires the cache, endpoint configuration and remote client.
// If logger is nil, a default stderr logger is used.
func NewTaskService(cache LocalCache, endpoints EndpointSource, remote RemoteClient, logger *log.Logger) *TaskService {
	if logger == nil {
		logger = log.New(os.Stderr, "[tasks] ", log.LstdFlags)
	}
	return &TaskService{
		cache:     cache,
		endpoints: endpoints,
		remote:    remote,
		logger:    logger,
		queue:     newSyncQueue(logger),
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// GetTasks returns the tasks of userID that match filter. Without a user it
// returns an empty result and no error.
func (s *TaskService) GetTasks(ctx context.Context, filter model.Filter, userID string) ([]model.Task, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	tasks, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return selectTasks(tasks, userID, filter), nil
}

// GetTask looks a task up by id anywhere in the user's partition.
func (s *TaskService) GetTask(ctx context.Context, taskID, userID string) (*model.Task, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, model.ErrNoIdentity
	}
	tasks, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if task.ID == taskID && task.UserEmail == userID {
			return &task, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// SaveTask inserts or replaces task in the user's partition, stamping it
// with userID. In remote mode the change is then pushed to the endpoint
// without waiting; a push failure is logged and never reported here.
func (s *TaskService) SaveTask(ctx context.Context, task model.Task, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.logger.Printf("[error] save task %s: %v", task.ID, model.ErrNoIdentity)
		return model.ErrNoIdentity
	}
	if strings.TrimSpace(task.ID) == "" {
		s.logger.Printf("[error] save task: %v: id is required", model.ErrInvalidTask)
		return fmt.Errorf("%w: id is required", model.ErrInvalidTask)
	}
	task.UserEmail = userID

	endpoint, err := s.endpointURL(ctx)
	if err != nil {
		return err
	}

	unlock := s.lock(userID)
	defer unlock()

	tasks, err := s.cache.Read(ctx, userID)
	if err != nil {
		return err
	}
	return s.saveLocked(ctx, endpoint, userID, tasks, task)
}

// DeleteTask removes the task with taskID from the user's partition.
// Deleting an unknown id leaves the partition untouched. In remote mode the
// delete is always pushed, since the task may only exist remotely.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.logger.Printf("[error] delete task %s: %v", taskID, model.ErrNoIdentity)
		return model.ErrNoIdentity
	}

	endpoint, err := s.endpointURL(ctx)
	if err != nil {
		return err
	}

	unlock := s.lock(userID)
	defer unlock()

	tasks, err := s.cache.Read(ctx, userID)
	if err != nil {
		return err
	}
	if index := indexOf(tasks, taskID); index >= 0 {
		kept := make([]model.Task, 0, len(tasks)-1)
		kept = append(kept, tasks[:index]...)
		kept = append(kept, tasks[index+1:]...)
		if err := s.cache.Write(ctx, userID, kept); err != nil {
			return err
		}
	}

	if endpoint != "" {
		s.queue.enqueue(ctx, userID, syncJob{op: remote.OpDeleteTask, taskID: taskID, send: func(ctx context.Context) error {
			return s.remote.DeleteTask(ctx, endpoint, taskID, userID)
		}})
	}
	return nil
}

// CreateTask mints a new task from input and saves it.
func (s *TaskService) CreateTask(ctx context.Context, userID string, input TaskInput) (*model.Task, error) {
	status := input.Status
	if status == "" {
		status = model.StatusNotStarted
	}
	task := model.Task{
		ID:        s.newID(),
		Month:     input.Month,
		Week:      input.Week,
		Day:       input.Day,
		Title:     strings.TrimSpace(input.Title),
		Status:    status,
		Notes:     input.Notes,
		CreatedAt: s.now().UTC(),
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := s.SaveTask(ctx, task, userID); err != nil {
		return nil, err
	}
	task.UserEmail = strings.TrimSpace(userID)
	return &task, nil
}

// ToggleComplete flips the checklist flag of a task.
func (s *TaskService) ToggleComplete(ctx context.Context, taskID, userID string) (*model.Task, error) {
	return s.update(ctx, taskID, userID, func(t *model.Task) error {
		t.IsCompleted = !t.IsCompleted
		return nil
	})
}

func (s *TaskService) SetStatus(ctx context.Context, taskID, userID string, status model.Status) (*model.Task, error) {
	return s.update(ctx, taskID, userID, func(t *model.Task) error {
		if !model.ValidStatus(status) {
			return fmt.Errorf("%w: unknown status %q", model.ErrInvalidTask, status)
		}
		t.Status = status
		return nil
	})
}

func (s *TaskService) Rename(ctx context.Context, taskID, userID, title string) (*model.Task, error) {
	return s.update(ctx, taskID, userID, func(t *model.Task) error {
		title = strings.TrimSpace(title)
		if title == "" {
			return fmt.Errorf("%w: title is required", model.ErrInvalidTask)
		}
		t.Title = title
		return nil
	})
}

func (s *TaskService) SetNotes(ctx context.Context, taskID, userID, notes string) (*model.Task, error) {
	return s.update(ctx, taskID, userID, func(t *model.Task) error {
		t.Notes = notes
		return nil
	})
}

// Wait blocks until every background push started so far has finished.
func (s *TaskService) Wait() {
	s.queue.wait()
}

// update applies an edit to one task while holding the user's lock. The
// local partition holds the caller's latest writes, so the task is taken
// from there; the endpoint is only asked when the id is not cached locally.
func (s *TaskService) update(ctx context.Context, taskID, userID string, apply func(*model.Task) error) (*model.Task, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.logger.Printf("[error] update task %s: %v", taskID, model.ErrNoIdentity)
		return nil, model.ErrNoIdentity
	}

	endpoint, err := s.endpointURL(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(userID)
	defer unlock()

	tasks, err := s.cache.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	var task model.Task
	if index := indexOf(tasks, taskID); index >= 0 {
		task = tasks[index]
	} else {
		found, ok := s.fetchRemote(ctx, endpoint, taskID, userID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		task = found
	}

	if err := apply(&task); err != nil {
		return nil, err
	}
	task.UserEmail = userID
	if err := s.saveLocked(ctx, endpoint, userID, tasks, task); err != nil {
		return nil, err
	}
	return &task, nil
}

// saveLocked upserts task into tasks, writes the partition back and queues
// the matching push. The caller holds the user's lock and tasks is the
// partition it read under that lock.
func (s *TaskService) saveLocked(ctx context.Context, endpoint, userID string, tasks []model.Task, task model.Task) error {
	index := indexOf(tasks, task.ID)
	if index >= 0 {
		tasks[index] = task
	} else {
		tasks = append(tasks, task)
	}
	if err := s.cache.Write(ctx, userID, tasks); err != nil {
		return err
	}

	if endpoint != "" {
		if index >= 0 {
			s.queue.enqueue(ctx, userID, syncJob{op: remote.OpUpdateTask, taskID: task.ID, send: func(ctx context.Context) error {
				return s.remote.UpdateTask(ctx, endpoint, task)
			}})
		} else {
			s.queue.enqueue(ctx, userID, syncJob{op: remote.OpCreateTask, taskID: task.ID, send: func(ctx context.Context) error {
				return s.remote.CreateTask(ctx, endpoint, task)
			}})
		}
	}
	return nil
}

// fetchRemote finds a task that only the endpoint knows about. A failed
// read is logged and reported as not found.
func (s *TaskService) fetchRemote(ctx context.Context, endpoint, taskID, userID string) (model.Task, bool) {
	if endpoint == "" {
		return model.Task{}, false
	}
	tasks, err := s.remote.GetTasks(ctx, endpoint, userID)
	if err != nil {
		s.logger.Printf("[warn] remote lookup of %s for %s failed: %v", taskID, userID, err)
		return model.Task{}, false
	}
	for _, task := range tasks {
		if task.ID == taskID && task.UserEmail == userID {
			return task, true
		}
	}
	return model.Task{}, false
}

// load returns every task of userID: from the endpoint in remote mode, or
// from the cache in local mode and whenever the endpoint fails.
func (s *TaskService) load(ctx context.Context, userID string) ([]model.Task, error) {
	endpoint, err := s.endpointURL(ctx)
	if err != nil {
		return nil, err
	}
	if endpoint != "" {
		tasks, err := s.remote.GetTasks(ctx, endpoint, userID)
		if err == nil {
			return tasks, nil
		}
		s.logger.Printf("[warn] remote read for %s failed, serving local cache: %v", userID, err)
	}
	tasks, err := s.cache.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskService) endpointURL(ctx context.Context) (string, error) {
	if s.endpoints == nil || s.remote == nil {
		return "", nil
	}
	endpoint, err := s.endpoints.EndpointURL(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve endpoint: %w", err)
	}
	return strings.TrimSpace(endpoint), nil
}

// lock serializes read-modify-write cycles on one user's partition.
func (s *TaskService) lock(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// selectTasks keeps the tasks owned by userID that match filter. Ownership is
// checked even though both stores are already scoped to the user.
func selectTasks(tasks []model.Task, userID string, filter model.Filter) []model.Task {
	var out []model.Task
	for _, task := range tasks {
		if task.UserEmail == userID && filter.Match(task) {
			out = append(out, task)
		}
	}
	return out
}

func indexOf(tasks []model.Task, taskID string) int {
	for i, task := range tasks {
		if task.ID == taskID {
			return i
		}
	}
	return -1
}
