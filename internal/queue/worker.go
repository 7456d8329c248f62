package queue

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"sync"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
	"github.com/mshattori/transcriber-web-app/internal/pipeline"
)

// JobRunner executes one job. *pipeline.Pipeline is the production
// implementation.
type JobRunner interface {
	Run(ctx context.Context, job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error)
}

// WorkerPool runs queued jobs through the pipeline on a fixed number of
// goroutines.
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	pipeline    JobRunner
	tracker     *Tracker
	logger      *log.Logger
	wg          sync.WaitGroup
}

func NewWorkerPool(workerCount int, p JobRunner, tracker *Tracker, logger *log.Logger) *WorkerPool {
	if logger == nil {
		logger = log.Default()
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		pipeline:    p,
		tracker:     tracker,
		logger:      logger,
	}
}

// Start launches the workers. They run until Stop is called; ctx cancels any
// in-flight pipeline work.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.logger.Printf("Starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
}

// Enqueue registers and queues a job. Returns a validation error when the
// queue is full rather than blocking the upload handler.
func (wp *WorkerPool) Enqueue(job *Job) error {
	wp.tracker.add(job)
	select {
	case wp.jobQueue <- job:
		wp.logger.Printf("Job %s enqueued (file: %s)", job.ID, job.Filename)
		return nil
	default:
		err := apperrors.Validation("Server is busy. Please try again in a few minutes.", "queue")
		wp.tracker.fail(job.ID, err)
		return err
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.logger.Printf("Worker %d started", id)

	for job := range wp.jobQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					wp.logger.Printf("Worker %d: PANIC processing job %s: %v\n%s",
						id, job.ID, r, string(debug.Stack()))
					wp.tracker.fail(job.ID, fmt.Errorf("worker panic: %v", r))
					wp.cleanupTempFile(job.AudioPath)
				}
			}()
			wp.processJob(ctx, id, job)
		}()
	}
}

func (wp *WorkerPool) processJob(ctx context.Context, workerID int, job *Job) {
	wp.logger.Printf("Worker %d: Processing job %s", workerID, job.ID)
	wp.tracker.setStatus(job.ID, StatusProcessing)

	outcome, err := wp.pipeline.Run(ctx, pipeline.Job{
		ID:        job.ID,
		AudioPath: job.AudioPath,
		Filename:  job.Filename,
		Settings:  job.Settings,
	}, func(p pipeline.Progress) {
		wp.tracker.Update(job.ID, p)
	})

	// The uploaded source file is scratch space either way.
	wp.cleanupTempFile(job.AudioPath)

	if err != nil {
		wp.logger.Printf("Worker %d: Job %s failed: %v", workerID, job.ID, err)
		wp.tracker.fail(job.ID, err)
		return
	}

	wp.tracker.complete(job.ID, outcome)
	wp.logger.Printf("Worker %d: Job %s completed (dir: %s)", workerID, job.ID, outcome.JobDir)
}

func (wp *WorkerPool) cleanupTempFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		wp.logger.Printf("Failed to cleanup temp file %s: %v", path, err)
	}
}
