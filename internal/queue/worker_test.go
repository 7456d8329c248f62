package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mshattori/transcriber-web-app/internal/pipeline"
)

type fakeRunner struct {
	mu      sync.Mutex
	run     func(job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error)
	jobsRun []string
}

func (f *fakeRunner) Run(ctx context.Context, job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error) {
	f.mu.Lock()
	f.jobsRun = append(f.jobsRun, job.ID)
	run := f.run
	f.mu.Unlock()
	return run(job, progress)
}

func waitForStatus(t *testing.T, tracker *Tracker, jobID string, want Status) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			snap, _ := tracker.Get(jobID)
			t.Fatalf("timed out waiting for status %q, job is %q", want, snap.Status)
		case <-time.After(5 * time.Millisecond):
			if snap, ok := tracker.Get(jobID); ok && snap.Status == want {
				return snap
			}
		}
	}
}

func startPool(t *testing.T, runner JobRunner) (*WorkerPool, *Tracker) {
	t.Helper()
	tracker := NewTracker()
	pool := NewWorkerPool(2, runner, tracker, nil)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)
	return pool, tracker
}

func TestPoolProcessesJob(t *testing.T) {
	runner := &fakeRunner{run: func(job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error) {
		progress(pipeline.Progress{Stage: pipeline.StageTranscribing, Fraction: 0.5, Message: "working"})
		return &pipeline.Outcome{JobDir: "data/x/" + job.ID}, nil
	}}
	pool, tracker := startPool(t, runner)

	job := NewJob("talk.mp3", "", pipeline.Settings{})
	if err := pool.Enqueue(job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	snap := waitForStatus(t, tracker, job.ID, StatusCompleted)
	if snap.JobDir != "data/x/"+job.ID {
		t.Errorf("job dir = %q", snap.JobDir)
	}
}

func TestPoolRecordsFailure(t *testing.T) {
	runner := &fakeRunner{run: func(job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error) {
		return nil, errors.New("boom")
	}}
	pool, tracker := startPool(t, runner)

	job := NewJob("talk.mp3", "", pipeline.Settings{})
	pool.Enqueue(job)

	snap := waitForStatus(t, tracker, job.ID, StatusFailed)
	if snap.Error != "boom" {
		t.Errorf("error = %q", snap.Error)
	}
	if snap.UserMessage == "" {
		t.Error("expected a user-facing message")
	}
}

func TestPoolRecoversFromPanic(t *testing.T) {
	runner := &fakeRunner{run: func(job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error) {
		panic("unexpected state")
	}}
	pool, tracker := startPool(t, runner)

	job := NewJob("talk.mp3", "", pipeline.Settings{})
	pool.Enqueue(job)

	snap := waitForStatus(t, tracker, job.ID, StatusFailed)
	if snap.Error == "" {
		t.Error("panic should surface as job error")
	}

	// The pool keeps serving after a panic.
	ok := NewJob("next.mp3", "", pipeline.Settings{})
	runner.mu.Lock()
	runner.run = func(job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error) {
		return &pipeline.Outcome{}, nil
	}
	runner.mu.Unlock()
	pool.Enqueue(ok)
	waitForStatus(t, tracker, ok.ID, StatusCompleted)
}

func TestSubscribeReceivesProgressAndCloses(t *testing.T) {
	release := make(chan struct{})
	runner := &fakeRunner{run: func(job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error) {
		progress(pipeline.Progress{Stage: pipeline.StageTranscribing, Fraction: 0.3, Message: "chunk 1"})
		<-release
		progress(pipeline.Progress{Stage: pipeline.StageDone, Fraction: 1.0, Message: "done"})
		return &pipeline.Outcome{}, nil
	}}
	pool, tracker := startPool(t, runner)

	job := NewJob("talk.mp3", "", pipeline.Settings{})
	pool.Enqueue(job)

	ch, cancel, ok := tracker.Subscribe(job.ID)
	if !ok {
		t.Fatal("Subscribe: job unknown")
	}
	defer cancel()

	close(release)

	var got []pipeline.Progress
	for p := range ch {
		got = append(got, p)
	}
	if len(got) == 0 {
		t.Fatal("no progress received")
	}
	last := got[len(got)-1]
	if last.Stage != pipeline.StageDone || last.Fraction != 1.0 {
		t.Errorf("last progress = %+v", last)
	}
}

func TestSubscribeFinishedJobGetsFinalState(t *testing.T) {
	runner := &fakeRunner{run: func(job pipeline.Job, progress pipeline.ProgressFunc) (*pipeline.Outcome, error) {
		progress(pipeline.Progress{Stage: pipeline.StageDone, Fraction: 1.0, Message: "done"})
		return &pipeline.Outcome{}, nil
	}}
	pool, tracker := startPool(t, runner)

	job := NewJob("talk.mp3", "", pipeline.Settings{})
	pool.Enqueue(job)
	waitForStatus(t, tracker, job.ID, StatusCompleted)

	ch, cancel, ok := tracker.Subscribe(job.ID)
	if !ok {
		t.Fatal("Subscribe: job unknown")
	}
	defer cancel()

	p, open := <-ch
	if !open {
		t.Fatal("expected one final progress value")
	}
	if p.Fraction != 1.0 {
		t.Errorf("final fraction = %v", p.Fraction)
	}
	if _, open := <-ch; open {
		t.Error("channel should close after final value")
	}
}

func TestListNewestFirst(t *testing.T) {
	tracker := NewTracker()
	for _, id := range []string{"a", "b", "c"} {
		job := &Job{ID: id, Filename: id + ".mp3", CreatedAt: time.Now()}
		tracker.add(job)
		time.Sleep(time.Millisecond)
	}

	list := tracker.List()
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].ID != "c" || list[2].ID != "a" {
		t.Errorf("order = %s, %s, %s", list[0].ID, list[1].ID, list[2].ID)
	}
}
