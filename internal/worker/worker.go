package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/itstheanurag/gradebox/internal/executor"
	"github.com/itstheanurag/gradebox/internal/metrics"
	"github.com/itstheanurag/gradebox/internal/queue"
	"github.com/rs/zerolog"
)

// Grader runs one grading request in its own sandbox.
type Grader interface {
	Run(ctx context.Context, req executor.RunRequest) ([]executor.TestResult, error)
}

type Worker struct {
	id      int
	grader  Grader
	manager *queue.Manager
	logger  *zerolog.Logger
}

func NewWorker(id int, grader Grader, manager *queue.Manager, logger *zerolog.Logger) *Worker {
	return &Worker{
		id:      id,
		grader:  grader,
		manager: manager,
		logger:  logger,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Int("worker_id", w.id).Msg("worker started")
	for {
		select {
		case job := <-w.manager.NextJob():
			w.manager.UpdateQueueMetric()
			metrics.ActiveWorkers.Inc()
			w.processJob(job)
			metrics.ActiveWorkers.Dec()
		case <-ctx.Done():
			w.logger.Info().Int("worker_id", w.id).Msg("worker stopping")
			return
		}
	}
}

func (w *Worker) processJob(job *queue.Job) {
	lang := job.Request.Language.String()
	log := w.logger.With().Int("worker_id", w.id).Str("job_id", job.ID).Str("language", lang).Logger()

	// the submitter gave up while the job was queued
	if err := job.Ctx.Err(); err != nil {
		log.Debug().Err(err).Msg("skipping cancelled job")
		job.Err <- err
		return
	}

	metrics.RunDuration.WithLabelValues(lang, "queue").Observe(float64(time.Since(job.Enqueued).Milliseconds()))
	log.Info().Int("test_cases", len(job.Request.TestCases)).Msg("processing job")

	results, err := w.run(job)
	if err != nil {
		log.Warn().Err(err).Msg("job failed")
		job.Err <- err
		return
	}

	job.Result <- results
}

// run keeps a panic in one job from taking the worker down.
func (w *Worker) run(job *queue.Job) (results []executor.TestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d: grading panicked: %v", w.id, r)
		}
	}()
	return w.grader.Run(job.Ctx, job.Request)
}
