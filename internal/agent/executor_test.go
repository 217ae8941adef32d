package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shayc/relay/pkg/models"
)

// fakeStore implements TaskStore in memory with CAS semantics.
type fakeStore struct {
	mu       sync.Mutex
	statuses map[int64]models.TaskStatus
	outputs  map[int64]map[string]any
	errors   map[int64]string
	logs     []*models.AgentLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses: make(map[int64]models.TaskStatus),
		outputs:  make(map[int64]map[string]any),
		errors:   make(map[int64]string),
	}
}

func (f *fakeStore) ClaimTask(id int64, agentName string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses[id] != models.TaskStatusPending {
		return false, nil
	}
	f.statuses[id] = models.TaskStatusInProgress
	return true, nil
}

func (f *fakeStore) FinishTask(id int64, status models.TaskStatus, output map[string]any, errMsg string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses[id] != models.TaskStatusInProgress {
		return false, nil
	}
	f.statuses[id] = status
	f.outputs[id] = output
	f.errors[id] = errMsg
	return true, nil
}

func (f *fakeStore) AppendLog(entry *models.AgentLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStore) actions(id int64) []models.LogAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LogAction
	for _, l := range f.logs {
		if l.TaskID == id {
			out = append(out, l.Action)
		}
	}
	return out
}

func pendingTask(id int64, kind models.TaskKind) *models.Task {
	return &models.Task{
		ID:       id,
		Kind:     kind,
		Status:   models.TaskStatusPending,
		Priority: models.PriorityNormal,
	}
}

func TestExecutor_Success(t *testing.T) {
	store := newFakeStore()
	store.statuses[1] = models.TaskStatusPending
	exec := NewExecutor(store)

	a := &stubAgent{name: "worker", result: Succeed("done", map[string]any{"key": "value"})}
	result, err := exec.Execute(context.Background(), a, pendingTask(1, models.TaskKindTriage))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result == nil || !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}

	if store.statuses[1] != models.TaskStatusCompleted {
		t.Errorf("status = %q, want completed", store.statuses[1])
	}
	if store.outputs[1]["key"] != "value" {
		t.Errorf("output = %v, want agent data merged", store.outputs[1])
	}
	if store.outputs[1]["response"] != "done" {
		t.Errorf("output response = %v, want done", store.outputs[1]["response"])
	}

	actions := store.actions(1)
	want := []models.LogAction{models.LogActionStarted, models.LogActionCompleted, models.LogActionDuration}
	if len(actions) != len(want) {
		t.Fatalf("log actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("log action %d = %q, want %q", i, actions[i], want[i])
		}
	}
}

func TestExecutor_Failure(t *testing.T) {
	store := newFakeStore()
	store.statuses[2] = models.TaskStatusPending
	exec := NewExecutor(store)

	a := &stubAgent{name: "worker", result: Fail(models.ErrorKindDependencyUnavailable, "backend down")}
	result, err := exec.Execute(context.Background(), a, pendingTask(2, models.TaskKindMessageSync))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}

	if store.statuses[2] != models.TaskStatusFailed {
		t.Errorf("status = %q, want failed", store.statuses[2])
	}
	if store.errors[2] != "backend down" {
		t.Errorf("error = %q, want backend down", store.errors[2])
	}
	if store.outputs[2]["error_kind"] != string(models.ErrorKindDependencyUnavailable) {
		t.Errorf("output error_kind = %v", store.outputs[2]["error_kind"])
	}

	actions := store.actions(2)
	if len(actions) != 3 || actions[1] != models.LogActionFailed {
		t.Errorf("log actions = %v, want started/failed/duration", actions)
	}
}

func TestExecutor_LostClaimIsNoop(t *testing.T) {
	store := newFakeStore()
	store.statuses[3] = models.TaskStatusInProgress
	exec := NewExecutor(store)

	a := &stubAgent{name: "worker"}
	result, err := exec.Execute(context.Background(), a, pendingTask(3, models.TaskKindTriage))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil on lost claim", result)
	}
	if len(store.actions(3)) != 0 {
		t.Errorf("no logs expected on lost claim, got %v", store.actions(3))
	}
}

func TestExecutor_AtMostOnce(t *testing.T) {
	store := newFakeStore()
	store.statuses[4] = models.TaskStatusPending
	exec := NewExecutor(store)

	var mu sync.Mutex
	var processed int
	a := &countingAgent{onProcess: func() {
		mu.Lock()
		processed++
		mu.Unlock()
	}}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := exec.Execute(context.Background(), a, pendingTask(4, models.TaskKindTriage)); err != nil {
				t.Errorf("execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if processed != 1 {
		t.Errorf("Process ran %d times, want exactly 1", processed)
	}
}

func TestExecutor_PanicBecomesFailure(t *testing.T) {
	store := newFakeStore()
	store.statuses[5] = models.TaskStatusPending
	exec := NewExecutor(store)

	a := &panickingAgent{}
	result, err := exec.Execute(context.Background(), a, pendingTask(5, models.TaskKindTriage))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Success {
		t.Fatal("panic must produce a failed result")
	}
	if store.statuses[5] != models.TaskStatusFailed {
		t.Errorf("status = %q, want failed", store.statuses[5])
	}
}

func TestExecutor_WaitingStatus(t *testing.T) {
	store := newFakeStore()
	store.statuses[6] = models.TaskStatusPending
	exec := NewExecutor(store)

	a := &stubAgent{name: "worker", result: &Result{
		Success: true,
		Status:  models.TaskStatusWaitingInput,
	}}
	if _, err := exec.Execute(context.Background(), a, pendingTask(6, models.TaskKindAppointmentBooking)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if store.statuses[6] != models.TaskStatusWaitingInput {
		t.Errorf("status = %q, want waiting_input", store.statuses[6])
	}
}

type countingAgent struct {
	onProcess func()
}

func (c *countingAgent) Name() string { return "counting" }
func (c *countingAgent) CanHandle(kind models.TaskKind) bool { return true }
func (c *countingAgent) Process(ctx context.Context, task *models.Task) *Result {
	c.onProcess()
	return Succeed("counted", nil)
}

type panickingAgent struct{}

func (p *panickingAgent) Name() string { return "panicking" }
func (p *panickingAgent) CanHandle(kind models.TaskKind) bool { return true }
func (p *panickingAgent) Process(ctx context.Context, task *models.Task) *Result {
	panic("boom")
}
