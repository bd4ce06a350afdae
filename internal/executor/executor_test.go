package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pandeptwidyaop/cmdprobe/internal/detector"
	"github.com/pandeptwidyaop/cmdprobe/internal/host"
	"github.com/pandeptwidyaop/cmdprobe/internal/host/hosttest"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
	"github.com/pandeptwidyaop/cmdprobe/internal/validation"
)

type captureSpy struct {
	mu       sync.Mutex
	captured int
	err      error
}

func (s *captureSpy) CaptureResult(desc *models.CommandDescriptor, params map[string]any, result *models.ExecutionResult, notes string) (*models.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captured++
	return &models.TestResult{ID: "spy"}, s.err
}

func (s *captureSpy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

func newTestExecutor(env *hosttest.Env, sink CaptureSink) *Executor {
	d := detector.New(env, detector.Config{})
	return New(env, validation.New(nil), d, sink)
}

func safeDescriptor() *models.CommandDescriptor {
	return &models.CommandDescriptor{
		ID:       "workspace.echo",
		Name:     "Echo",
		RiskTier: models.TierSafe,
	}
}

func TestExecuteSuccess(t *testing.T) {
	env := hosttest.New("/workspace")
	env.InvokeFunc = func(ctx context.Context, id string, args []any) (any, error) {
		env.CreateFile("/workspace/output.txt", "done\n")
		return map[string]any{"ok": true}, nil
	}
	exec := newTestExecutor(env, nil)

	result, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: safeDescriptor(),
		Timeout:    time.Second,
	}, false, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error %+v", result.Err)
	}
	if result.ReturnValue == nil {
		t.Error("Expected return value")
	}
	if result.Duration <= 0 || result.FinishedAt.Before(result.StartedAt) {
		t.Errorf("Inconsistent timing: %+v", result)
	}
	var found bool
	for _, e := range result.SideEffects {
		if e.Type == models.EffectFileCreated && e.Resource == "/workspace/output.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected file_created side effect, got %v", result.SideEffects)
	}
	if exec.InProgress() {
		t.Error("Expected InProgress false after completion")
	}
}

func TestExecuteFailureClassified(t *testing.T) {
	env := hosttest.New("/workspace")
	env.InvokeFunc = func(ctx context.Context, id string, args []any) (any, error) {
		return nil, errors.New("command 'workspace.echo' not found")
	}
	exec := newTestExecutor(env, nil)

	result, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: safeDescriptor(),
		Timeout:    time.Second,
	}, false, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success {
		t.Fatal("Expected failed result")
	}
	if result.Err == nil || result.Err.Type != models.ErrorNotFound {
		t.Errorf("Expected not_found classification, got %+v", result.Err)
	}
	if !result.Err.Recoverable {
		t.Error("not_found should be recoverable")
	}
}

func TestExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	env := hosttest.New("/workspace")
	env.InvokeFunc = func(ctx context.Context, id string, args []any) (any, error) {
		<-release
		return "late", nil
	}
	exec := newTestExecutor(env, nil)

	result, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: safeDescriptor(),
		Timeout:    20 * time.Millisecond,
	}, false, "")
	close(release)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success {
		t.Fatal("Expected timeout result")
	}
	if result.Err.Type != models.ErrorTimeout || !result.Err.Recoverable {
		t.Errorf("Expected recoverable timeout error, got %+v", result.Err)
	}
	if result.Duration < 20*time.Millisecond {
		t.Errorf("Duration %v shorter than the timeout", result.Duration)
	}
	if result.SideEffects == nil {
		t.Error("Timeout result should still carry a side-effect list")
	}
}

func TestExecuteConcurrencyRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	env := hosttest.New("/workspace")
	env.InvokeFunc = func(ctx context.Context, id string, args []any) (any, error) {
		close(started)
		<-release
		return nil, nil
	}
	exec := newTestExecutor(env, nil)

	done := make(chan error, 1)
	go func() {
		_, err := exec.Execute(context.Background(), models.ExecutionContext{
			Descriptor: safeDescriptor(),
			Timeout:    time.Second,
		}, false, "")
		done <- err
	}()

	<-started
	if !exec.InProgress() {
		t.Error("Expected InProgress true during execution")
	}
	_, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: safeDescriptor(),
		Timeout:    time.Second,
	}, false, "")
	if err != ErrExecutionInProgress {
		t.Errorf("Expected ErrExecutionInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("First execution failed: %v", err)
	}
}

func TestExecuteDestructiveRequiresConfirmation(t *testing.T) {
	env := hosttest.New("/workspace")
	exec := newTestExecutor(env, nil)
	desc := safeDescriptor()
	desc.RiskTier = models.TierDestructive

	_, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: desc,
	}, false, "")
	if err != ErrConfirmationRequired {
		t.Fatalf("Expected ErrConfirmationRequired, got %v", err)
	}

	env.InvokeFunc = func(ctx context.Context, id string, args []any) (any, error) {
		return nil, nil
	}
	result, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: desc,
		Confirmed:  true,
		Timeout:    time.Second,
	}, false, "")
	if err != nil || !result.Success {
		t.Errorf("Confirmed destructive command should run, got %v / %+v", err, result)
	}
}

func TestExecutePreconditionFailure(t *testing.T) {
	env := hosttest.New("/workspace")
	exec := newTestExecutor(env, nil)
	desc := safeDescriptor()
	desc.Preconditions = []models.Precondition{models.PrecondActiveDocument}

	_, err := exec.Execute(context.Background(), models.ExecutionContext{Descriptor: desc}, false, "")
	var precond *PreconditionError
	if !errors.As(err, &precond) {
		t.Fatalf("Expected PreconditionError, got %v", err)
	}
	if precond.Precondition != models.PrecondActiveDocument {
		t.Errorf("Unexpected precondition %q", precond.Precondition)
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	env := hosttest.New("/workspace")
	exec := newTestExecutor(env, nil)
	desc := safeDescriptor()
	desc.Signature = []models.ParameterSpec{{Name: "count", Type: "number", Required: true}}

	_, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: desc,
		Parameters: map[string]any{"count": "nope"},
	}, false, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if len(verr.Outcome.Errors) == 0 {
		t.Error("Expected validation errors in outcome")
	}
}

func TestExecutePassesCoercedArgsInOrder(t *testing.T) {
	env := hosttest.New("/workspace")
	var got []any
	env.InvokeFunc = func(ctx context.Context, id string, args []any) (any, error) {
		got = args
		return nil, nil
	}
	exec := newTestExecutor(env, nil)
	desc := safeDescriptor()
	desc.Signature = []models.ParameterSpec{
		{Name: "path", Type: "string", Required: true},
		{Name: "count", Type: "number", Required: false},
		{Name: "flag", Type: "boolean", Required: false},
	}

	_, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: desc,
		Parameters: map[string]any{"count": "3", "path": "/x"},
		Timeout:    time.Second,
	}, false, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 args, got %v", got)
	}
	if got[0] != "/x" || got[1] != float64(3) || got[2] != nil {
		t.Errorf("Unexpected argument order %v", got)
	}
}

func TestExecuteNoDescriptor(t *testing.T) {
	exec := newTestExecutor(hosttest.New("/workspace"), nil)
	if _, err := exec.Execute(context.Background(), models.ExecutionContext{}, false, ""); err != ErrNoDescriptor {
		t.Errorf("Expected ErrNoDescriptor, got %v", err)
	}
}

func TestExecuteWithSnapshot(t *testing.T) {
	env := hosttest.New("/workspace")
	env.AddFile("/workspace/main.go", "package main\n")
	env.InvokeFunc = func(ctx context.Context, id string, args []any) (any, error) {
		return nil, nil
	}
	exec := newTestExecutor(env, nil)

	result, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor:     safeDescriptor(),
		CreateSnapshot: true,
		Timeout:        time.Second,
	}, false, "")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.SnapshotID == "" {
		t.Fatal("Expected snapshot id on result")
	}
	snap, err := exec.Snapshot(result.SnapshotID)
	if err != nil {
		t.Fatalf("Snapshot lookup failed: %v", err)
	}
	if _, ok := snap.Files["/workspace/main.go"]; !ok {
		t.Error("Snapshot missing workspace file")
	}
}

func TestExecuteCapture(t *testing.T) {
	env := hosttest.New("/workspace")
	env.InvokeFunc = func(ctx context.Context, id string, args []any) (any, error) {
		return nil, nil
	}
	spy := &captureSpy{}
	exec := newTestExecutor(env, spy)

	if _, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: safeDescriptor(),
		Timeout:    time.Second,
	}, true, "smoke"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if spy.count() != 1 {
		t.Errorf("Expected one capture, got %d", spy.count())
	}

	// A failing sink never masks the execution outcome.
	spy.err = errors.New("db gone")
	result, err := exec.Execute(context.Background(), models.ExecutionContext{
		Descriptor: safeDescriptor(),
		Timeout:    time.Second,
	}, true, "")
	if err != nil || !result.Success {
		t.Errorf("Capture failure leaked into execution: %v / %+v", err, result)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	env := hosttest.New("/workspace")
	env.AddFile("/workspace/a.txt", "a\n")
	exec := newTestExecutor(env, nil)

	first, err := exec.CreateSnapshot()
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}
	second, err := exec.CreateSnapshot()
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	list := exec.ListSnapshots()
	if len(list) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Error("Snapshots not ordered by creation time")
	}

	if err := exec.DeleteSnapshot(first.ID); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	if _, err := exec.Snapshot(first.ID); err != ErrSnapshotNotFound {
		t.Errorf("Expected ErrSnapshotNotFound after delete, got %v", err)
	}

	exec.ClearAllSnapshots()
	if got := exec.ListSnapshots(); len(got) != 0 {
		t.Errorf("Expected empty list after clear, got %d", len(got))
	}

	if err := exec.DeleteSnapshot("missing"); err != ErrSnapshotNotFound {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestRestoreSnapshot(t *testing.T) {
	env := hosttest.New("/workspace")
	env.OpenDocument(host.DocumentInfo{URI: "file:///workspace/main.go", Text: "original\n"})
	if err := env.SetActiveDocument("file:///workspace/main.go"); err != nil {
		t.Fatalf("SetActiveDocument failed: %v", err)
	}
	exec := newTestExecutor(env, nil)

	snap, err := exec.CreateSnapshot()
	if err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	// Mutate the document, then restore.
	if err := env.ApplyDocumentText("file:///workspace/main.go", "clobbered\n"); err != nil {
		t.Fatalf("ApplyDocumentText failed: %v", err)
	}
	if err := env.SetActiveDocument(""); err != nil {
		t.Fatalf("SetActiveDocument failed: %v", err)
	}

	if err := exec.RestoreSnapshot(snap.ID); err != nil {
		t.Fatalf("RestoreSnapshot failed: %v", err)
	}
	docs := env.OpenDocuments()
	if len(docs) != 1 || docs[0].Text != "original\n" {
		t.Errorf("Document text not restored: %+v", docs)
	}
	if env.ActiveDocument() != "file:///workspace/main.go" {
		t.Errorf("Active document not restored, got %q", env.ActiveDocument())
	}

	if err := exec.RestoreSnapshot("missing"); err != ErrSnapshotNotFound {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		message     string
		wantType    models.ErrorType
		recoverable bool
	}{
		{"operation timed out", models.ErrorTimeout, true},
		{"request cancelled by user", models.ErrorCancelled, true},
		{"command not found", models.ErrorNotFound, true},
		{"open /etc/shadow: permission denied", models.ErrorPermissionDenied, true},
		{"invalid argument: depth", models.ErrorInvalidParameter, true},
		{"segmentation fault", models.ErrorUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := ClassifyError(errors.New(tt.message))
			if got.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Recoverable != tt.recoverable {
				t.Errorf("Recoverable = %v, want %v", got.Recoverable, tt.recoverable)
			}
			if got.Message != tt.message {
				t.Errorf("Message = %q, want original text", got.Message)
			}
		})
	}
}
