package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/heavysql/pkg/models"
)

func TestDispatch_ExactlyOneResultPerTask(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, task models.AgentTask, _ time.Duration) models.AgentResult {
		// Finish in reverse order to prove results are reordered.
		time.Sleep(time.Duration(models.NumAgents-task.AgentID) * 5 * time.Millisecond)
		return succeed(task, 0.5)
	})

	results := NewDispatcher(runner, 0, nil).Dispatch(context.Background(), testTasks(4), time.Second)

	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i, r := range results {
		if r.AgentID != i {
			t.Errorf("results[%d].AgentID = %d, want %d", i, r.AgentID, i)
		}
		if r.Role != models.Roles[i] {
			t.Errorf("results[%d].Role = %s, want %s", i, r.Role, models.Roles[i])
		}
		if r.Status != models.AgentStatusSuccess {
			t.Errorf("results[%d].Status = %s", i, r.Status)
		}
	}
}

func TestDispatch_PartialFailure(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, task models.AgentTask, _ time.Duration) models.AgentResult {
		switch task.AgentID {
		case 1:
			return fail(task, models.AgentStatusFailure)
		case 3:
			return fail(task, models.AgentStatusTimeout)
		}
		return succeed(task, 0.7)
	})

	results := NewDispatcher(runner, 0, nil).Dispatch(context.Background(), testTasks(4), time.Second)

	want := []models.AgentStatus{
		models.AgentStatusSuccess,
		models.AgentStatusFailure,
		models.AgentStatusSuccess,
		models.AgentStatusTimeout,
	}
	for i, r := range results {
		if r.Status != want[i] {
			t.Errorf("results[%d].Status = %s, want %s", i, r.Status, want[i])
		}
	}
}

func TestDispatch_RunsInParallel(t *testing.T) {
	const perAgent = 400 * time.Millisecond
	runner := runnerFunc(func(ctx context.Context, task models.AgentTask, _ time.Duration) models.AgentResult {
		select {
		case <-time.After(perAgent / 2):
			return succeed(task, 0.8)
		case <-ctx.Done():
			return fail(task, models.AgentStatusFailure)
		}
	})

	start := time.Now()
	results := NewDispatcher(runner, 0, nil).Dispatch(context.Background(), testTasks(4), perAgent)
	elapsed := time.Since(start)

	for _, r := range results {
		if r.Status != models.AgentStatusSuccess {
			t.Fatalf("agent %d status %s", r.AgentID, r.Status)
		}
	}
	if elapsed < perAgent/2 {
		t.Errorf("dispatch took %s, shorter than a single agent", elapsed)
	}
	if elapsed >= perAgent {
		t.Errorf("dispatch took %s, want close to %s (parallel), not %s (sequential)", elapsed, perAgent/2, 2*perAgent)
	}
}

func TestDispatch_BatchDeadline(t *testing.T) {
	const perAgent = 40 * time.Millisecond
	release := make(chan struct{})
	defer close(release)

	// Agents 2 and 3 ignore every deadline and would block forever.
	runner := runnerFunc(func(ctx context.Context, task models.AgentTask, _ time.Duration) models.AgentResult {
		if task.AgentID >= 2 {
			<-release
			return succeed(task, 1.0, "late")
		}
		return succeed(task, 0.6)
	})

	d := NewDispatcher(runner, 1.5, nil)
	start := time.Now()
	batch := d.DispatchBatch(context.Background(), testTasks(4), perAgent)
	elapsed := time.Since(start)

	if !batch.TimedOut {
		t.Error("TimedOut should be true")
	}
	if elapsed > 10*perAgent {
		t.Errorf("dispatch took %s, want about %s", elapsed, d.BatchTimeout(perAgent))
	}
	if len(batch.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(batch.Results))
	}
	for _, r := range batch.Results[:2] {
		if r.Status != models.AgentStatusSuccess {
			t.Errorf("agent %d status %s, want SUCCESS", r.AgentID, r.Status)
		}
	}
	for _, r := range batch.Results[2:] {
		if r.Status != models.AgentStatusTimeout {
			t.Errorf("agent %d status %s, want TIMEOUT", r.AgentID, r.Status)
		}
		if len(r.Recommendations) != 0 {
			t.Errorf("agent %d placeholder carries recommendations %v", r.AgentID, r.Recommendations)
		}
	}
}

func TestDispatch_CallerCancel(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	defer close(release)

	runner := runnerFunc(func(ctx context.Context, task models.AgentTask, _ time.Duration) models.AgentResult {
		started <- struct{}{}
		<-release
		return succeed(task, 1.0, "late")
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for i := 0; i < 4; i++ {
			<-started
		}
		cancel()
	}()

	start := time.Now()
	batch := NewDispatcher(runner, 0, nil).DispatchBatch(ctx, testTasks(4), time.Minute)

	if time.Since(start) > 5*time.Second {
		t.Fatal("dispatch did not return promptly after cancellation")
	}
	if !batch.Cancelled {
		t.Error("Cancelled should be true")
	}
	for _, r := range batch.Results {
		if r.Status != models.AgentStatusFailure {
			t.Errorf("agent %d status %s, want FAILURE", r.AgentID, r.Status)
		}
	}
}

func TestDispatch_PanickingRunner(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, task models.AgentTask, _ time.Duration) models.AgentResult {
		if task.AgentID == 0 {
			panic("boom")
		}
		return succeed(task, 0.9)
	})

	results := NewDispatcher(runner, 0, nil).Dispatch(context.Background(), testTasks(4), time.Second)

	if results[0].Status != models.AgentStatusFailure {
		t.Errorf("panicking agent status %s, want FAILURE", results[0].Status)
	}
	for _, r := range results[1:] {
		if r.Status != models.AgentStatusSuccess {
			t.Errorf("agent %d status %s, want SUCCESS", r.AgentID, r.Status)
		}
	}
}

func TestDispatch_NormalizesRunnerOutput(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, task models.AgentTask, _ time.Duration) models.AgentResult {
		return models.AgentResult{AgentID: 99}
	})

	results := NewDispatcher(runner, 0, nil).Dispatch(context.Background(), testTasks(2), time.Second)

	for i, r := range results {
		if r.AgentID != i {
			t.Errorf("AgentID = %d, want %d", r.AgentID, i)
		}
		if r.Status != models.AgentStatusFailure {
			t.Errorf("Status = %s, want FAILURE", r.Status)
		}
		if r.Recommendations == nil {
			t.Error("Recommendations should be non-nil")
		}
	}
}

func TestDispatch_NoTasks(t *testing.T) {
	results := NewDispatcher(runnerFunc(nil), 0, nil).Dispatch(context.Background(), nil, time.Second)
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestDispatch_FreshSlicePerCall(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	runner := runnerFunc(func(ctx context.Context, task models.AgentTask, _ time.Duration) models.AgentResult {
		mu.Lock()
		calls++
		mu.Unlock()
		return succeed(task, 0.5, task.Variant.Text)
	})
	d := NewDispatcher(runner, 0, nil)

	first := d.Dispatch(context.Background(), testTasks(4), time.Second)
	second := d.Dispatch(context.Background(), testTasks(4), time.Second)
	first[0].Recommendations = []string{"mutated"}

	if second[0].Recommendations[0] == "mutated" {
		t.Error("results from separate calls share storage")
	}
	if calls != 8 {
		t.Errorf("runner called %d times, want 8", calls)
	}
}

func TestBatchTimeout(t *testing.T) {
	tests := []struct {
		factor float64
		want   time.Duration
	}{
		{0, 150 * time.Millisecond},
		{0.5, 150 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := NewDispatcher(nil, tt.factor, nil).BatchTimeout(100 * time.Millisecond); got != tt.want {
			t.Errorf("factor %v: BatchTimeout = %s, want %s", tt.factor, got, tt.want)
		}
	}
}
