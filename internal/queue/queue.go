package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/itstheanurag/gradebox/internal/executor"
	"github.com/itstheanurag/gradebox/internal/metrics"
)

var ErrQueueFull = errors.New("grading queue is full")

type Job struct {
	ID       string
	Request  executor.RunRequest
	Result   chan []executor.TestResult
	Err      chan error
	Ctx      context.Context
	Enqueued time.Time
}

type Manager struct {
	jobQueue chan *Job
}

func NewManager(capacity int) *Manager {
	return &Manager{
		jobQueue: make(chan *Job, capacity),
	}
}

// Submit enqueues job without blocking. ErrQueueFull is returned when every
// slot is taken.
func (m *Manager) Submit(job *Job) error {
	select {
	case m.jobQueue <- job:
		metrics.QueueDepth.Set(float64(len(m.jobQueue)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Run submits req and waits for a worker to grade it. It satisfies
// executor.RunFunc.
func (m *Manager) Run(ctx context.Context, req executor.RunRequest) ([]executor.TestResult, error) {
	job := &Job{
		ID:       uuid.NewString(),
		Request:  req,
		Result:   make(chan []executor.TestResult, 1),
		Err:      make(chan error, 1),
		Ctx:      ctx,
		Enqueued: time.Now(),
	}
	if err := m.Submit(job); err != nil {
		return nil, err
	}

	select {
	case res := <-job.Result:
		return res, nil
	case err := <-job.Err:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) NextJob() <-chan *Job {
	return m.jobQueue
}

func (m *Manager) UpdateQueueMetric() {
	metrics.QueueDepth.Set(float64(len(m.jobQueue)))
}
