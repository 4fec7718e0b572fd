package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"marqlet-monitor/domain"
	"marqlet-monitor/storage"
)

type fakeReminderRunner struct {
	runs map[string]int
	err  error
}

func (f *fakeReminderRunner) RunForUser(ctx context.Context, userID string) ([]domain.Task, error) {
	if f.runs == nil {
		f.runs = map[string]int{}
	}
	f.runs[userID]++
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Task{{ID: "task-" + userID, UserID: userID}}, nil
}

type fakeRefreshQueue struct {
	jobs []storage.RefreshJob
	err  error
}

func (f *fakeRefreshQueue) EnqueueRefresh(ctx context.Context, job storage.RefreshJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func schedulerCases() *fakeCaseStore {
	return &fakeCaseStore{cases: map[string]domain.Case{
		"case-1": {ID: "case-1", OwnerID: "user-1", Monitored: true},
		"case-2": {ID: "case-2", OwnerID: "user-1", Monitored: true},
		"case-3": {ID: "case-3", OwnerID: "user-2", Monitored: true},
		"case-4": {ID: "case-4", OwnerID: "user-3", Monitored: false},
	}}
}

func TestReminderSweepRunsOncePerOwner(t *testing.T) {
	runner := &fakeReminderRunner{}
	sched := NewScheduler(schedulerCases(), runner, &fakeRefreshQueue{}, time.Minute, time.Minute, testLogger())

	sched.reminderSweep(context.Background())

	if len(runner.runs) != 2 {
		t.Fatalf("ran for %d users, want 2: %v", len(runner.runs), runner.runs)
	}
	if runner.runs["user-1"] != 1 || runner.runs["user-2"] != 1 {
		t.Fatalf("uneven runs: %v", runner.runs)
	}
	if _, ran := runner.runs["user-3"]; ran {
		t.Fatal("swept owner of an unmonitored case")
	}
}

func TestReminderSweepContainsPerUserFailures(t *testing.T) {
	runner := &fakeReminderRunner{err: errors.New("storage unavailable")}
	sched := NewScheduler(schedulerCases(), runner, &fakeRefreshQueue{}, time.Minute, time.Minute, testLogger())

	// Must not panic or stop at the first failing user.
	sched.reminderSweep(context.Background())
	if len(runner.runs) != 2 {
		t.Fatalf("ran for %d users, want 2 despite failures", len(runner.runs))
	}
}

func TestRefreshSweepEnqueuesMonitoredCases(t *testing.T) {
	queue := &fakeRefreshQueue{}
	sched := NewScheduler(schedulerCases(), &fakeReminderRunner{}, queue, time.Minute, time.Minute, testLogger())

	sched.refreshSweep(context.Background())

	if len(queue.jobs) != 3 {
		t.Fatalf("enqueued %d jobs, want 3", len(queue.jobs))
	}
	seen := map[string]bool{}
	for _, job := range queue.jobs {
		if job.ID == "" {
			t.Fatalf("job without id: %+v", job)
		}
		seen[job.CaseID] = true
	}
	if seen["case-4"] {
		t.Fatal("enqueued an unmonitored case")
	}
	if !seen["case-1"] || !seen["case-2"] || !seen["case-3"] {
		t.Fatalf("missing monitored cases: %v", seen)
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	sched := NewScheduler(schedulerCases(), &fakeReminderRunner{}, &fakeRefreshQueue{}, time.Hour, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
