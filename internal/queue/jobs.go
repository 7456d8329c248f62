// Package queue tracks transcription jobs and runs them on a worker pool.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/mshattori/transcriber-web-app/internal/errors"
	"github.com/mshattori/transcriber-web-app/internal/pipeline"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one queued transcription request. Immutable after enqueue; mutable
// state lives in the Tracker.
type Job struct {
	ID        string
	Filename  string
	AudioPath string
	Settings  pipeline.Settings
	CreatedAt time.Time
}

// NewJob assigns a fresh ID to an upload.
func NewJob(filename, audioPath string, settings pipeline.Settings) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Filename:  filename,
		AudioPath: audioPath,
		Settings:  settings,
		CreatedAt: time.Now(),
	}
}

// Snapshot is a point-in-time view of a job for API responses.
type Snapshot struct {
	ID          string            `json:"id"`
	Filename    string            `json:"filename"`
	Status      Status            `json:"status"`
	Progress    pipeline.Progress `json:"progress"`
	Error       string            `json:"error,omitempty"`
	UserMessage string            `json:"user_message,omitempty"`
	JobDir      string            `json:"-"`
	GDriveURL   string            `json:"gdrive_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

type trackedJob struct {
	job      *Job
	status   Status
	progress pipeline.Progress
	errMsg   string
	userMsg  string
	jobDir   string
	gdrive   string
	finished *time.Time
	subs     map[chan pipeline.Progress]struct{}
}

// Tracker holds the in-memory state of every job this process has seen and
// fans progress updates out to websocket subscribers.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*trackedJob
}

func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*trackedJob)}
}

func (t *Tracker) add(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[job.ID] = &trackedJob{
		job:    job,
		status: StatusQueued,
		subs:   make(map[chan pipeline.Progress]struct{}),
	}
}

func (t *Tracker) setStatus(id string, status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tj, ok := t.jobs[id]; ok {
		tj.status = status
	}
}

// Update records progress and broadcasts it. Slow subscribers miss updates
// rather than blocking the worker.
func (t *Tracker) Update(id string, p pipeline.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tj, ok := t.jobs[id]
	if !ok {
		return
	}
	tj.progress = p
	for ch := range tj.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

func (t *Tracker) complete(id string, outcome *pipeline.Outcome) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	tj, ok := t.jobs[id]
	if !ok {
		return
	}
	tj.status = StatusCompleted
	tj.jobDir = outcome.JobDir
	tj.gdrive = outcome.GDriveURL
	tj.finished = &now
	t.closeSubs(tj)
}

func (t *Tracker) fail(id string, err error) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	tj, ok := t.jobs[id]
	if !ok {
		return
	}
	tj.status = StatusFailed
	tj.errMsg = err.Error()
	tj.userMsg = apperrors.UserMessage(err)
	tj.finished = &now
	t.closeSubs(tj)
}

func (t *Tracker) closeSubs(tj *trackedJob) {
	for ch := range tj.subs {
		close(ch)
		delete(tj.subs, ch)
	}
}

// Get returns a snapshot of one job.
func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tj, ok := t.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return tj.snapshot(), true
}

// List returns snapshots of all known jobs, newest first.
func (t *Tracker) List() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Snapshot, 0, len(t.jobs))
	for _, tj := range t.jobs {
		out = append(out, tj.snapshot())
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// Subscribe returns a channel of progress updates for a job. The channel is
// closed when the job finishes. The second return is a cancel function.
func (t *Tracker) Subscribe(id string) (<-chan pipeline.Progress, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tj, ok := t.jobs[id]
	if !ok {
		return nil, nil, false
	}
	if tj.status == StatusCompleted || tj.status == StatusFailed {
		ch := make(chan pipeline.Progress, 1)
		ch <- tj.progress
		close(ch)
		return ch, func() {}, true
	}

	ch := make(chan pipeline.Progress, 16)
	tj.subs[ch] = struct{}{}
	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, live := tj.subs[ch]; live {
			delete(tj.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, true
}

func (tj *trackedJob) snapshot() Snapshot {
	return Snapshot{
		ID:          tj.job.ID,
		Filename:    tj.job.Filename,
		Status:      tj.status,
		Progress:    tj.progress,
		Error:       tj.errMsg,
		UserMessage: tj.userMsg,
		JobDir:      tj.jobDir,
		GDriveURL:   tj.gdrive,
		CreatedAt:   tj.job.CreatedAt,
		FinishedAt:  tj.finished,
	}
}
