package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"megatrack/internal/model"
)

// tasksKey is the base key every user partition is namespaced from.
const tasksKey = "megatrack_tasks"

// PartitionKey returns the storage key holding all tasks of userID.
func PartitionKey(userID string) string {
	return tasksKey + "_" + userID
}

// TaskCache keeps each user's full task list as one JSON document.
// It only knows whole-partition reads and writes; record level edits are
// done by the caller on the slice.
type TaskCache struct {
	kv     *KVRepository
	logger *log.Logger
}

// NewTaskCache wraps kv. If logger is nil, a default stderr logger is used.
func NewTaskCache(kv *KVRepository, logger *log.Logger) *TaskCache {
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}
	return &TaskCache{kv: kv, logger: logger}
}

// Read returns the partition of userID. An absent or unparseable partition
// reads as empty; only storage failures are returned as errors.
func (c *TaskCache) Read(ctx context.Context, userID string) ([]model.Task, error) {
	if userID == "" {
		return nil, nil
	}
	raw, ok, err := c.kv.Get(ctx, PartitionKey(userID))
	if err != nil {
		return nil, fmt.Errorf("read partition: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var tasks []model.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		c.logger.Printf("[warn] partition %s is corrupt, treating as empty: %v", PartitionKey(userID), err)
		return nil, nil
	}
	return tasks, nil
}

// Write replaces the partition of userID with tasks.
func (c *TaskCache) Write(ctx context.Context, userID string, tasks []model.Task) error {
	if userID == "" {
		return fmt.Errorf("write partition: %w", model.ErrNoIdentity)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode partition: %w", err)
	}
	if err := c.kv.Put(ctx, PartitionKey(userID), string(data)); err != nil {
		return fmt.Errorf("write partition: %w", err)
	}
	return nil
}
