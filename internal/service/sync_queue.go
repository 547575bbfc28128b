package service

import (
	"context"
	"log"
	"sync"
)

// syncJob is one remote mutation waiting to be sent.
type syncJob struct {
	ctx    context.Context
	op     string
	taskID string
	send   func(context.Context) error
}

// syncQueue delivers remote mutations in the background. Jobs for the same
// user are sent one at a time in submission order so a create always
// reaches the endpoint before the updates that follow it. Outcomes are only
// logged; nothing is retried.
type syncQueue struct {
	logger  *log.Logger
	mu      sync.Mutex
	queues  map[string][]syncJob
	pending sync.WaitGroup
}

func newSyncQueue(logger *log.Logger) *syncQueue {
	return &syncQueue{logger: logger, queues: make(map[string][]syncJob)}
}

// enqueue schedules job for userID and returns immediately.
func (q *syncQueue) enqueue(ctx context.Context, userID string, job syncJob) {
	// The caller returns right away; its cancellation must not abort the send.
	job.ctx = context.WithoutCancel(ctx)

	q.pending.Add(1)
	q.mu.Lock()
	queued := q.queues[userID]
	q.queues[userID] = append(queued, job)
	start := len(queued) == 0
	q.mu.Unlock()

	if start {
		go q.drain(userID)
	}
}

// drain sends the jobs of userID until its queue is empty. The head job
// stays queued while it runs, so enqueue never starts a second drainer.
func (q *syncQueue) drain(userID string) {
	q.mu.Lock()
	for len(q.queues[userID]) > 0 {
		job := q.queues[userID][0]
		q.mu.Unlock()

		q.run(job)
		q.pending.Done()

		q.mu.Lock()
		q.queues[userID] = q.queues[userID][1:]
	}
	delete(q.queues, userID)
	q.mu.Unlock()
}

func (q *syncQueue) run(job syncJob) {
	if err := job.send(job.ctx); err != nil {
		q.logger.Printf("[warn] %s %s not synced: %v", job.op, job.taskID, err)
		return
	}
	q.logger.Printf("[info] %s %s synced", job.op, job.taskID)
}

// wait blocks until every queued job has been attempted.
func (q *syncQueue) wait() {
	q.pending.Wait()
}
