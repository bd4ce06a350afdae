// Package executor orchestrates one execution attempt: safety checks,
// optional snapshot, monitored timeout-raced invocation, and structured
// result assembly.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/pandeptwidyaop/cmdprobe/internal/detector"
	"github.com/pandeptwidyaop/cmdprobe/internal/host"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
	"github.com/pandeptwidyaop/cmdprobe/internal/validation"
)

var (
	// ErrExecutionInProgress rejects a second concurrent attempt.
	ErrExecutionInProgress = errors.New("an execution attempt is already in progress")
	// ErrConfirmationRequired rejects a destructive command without an
	// explicit confirmation flag.
	ErrConfirmationRequired = errors.New("destructive command requires explicit confirmation")
	// ErrSnapshotNotFound is returned for operations on unknown snapshots.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrNoDescriptor is returned when the execution context lacks a
	// command descriptor.
	ErrNoDescriptor = errors.New("execution context has no command descriptor")
)

// PreconditionError reports an unmet context precondition.
type PreconditionError struct {
	Precondition models.Precondition
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition not met: %s", e.Precondition)
}

// ValidationError reports parameter validation failure before invocation.
type ValidationError struct {
	Outcome validation.Outcome
}

func (e *ValidationError) Error() string {
	if len(e.Outcome.Errors) == 0 {
		return "parameter validation failed"
	}
	first := e.Outcome.Errors[0]
	return fmt.Sprintf("parameter validation failed: %s (%s)", first.Message, first.Code)
}

// CaptureSink receives completed results for analysis and durable storage.
type CaptureSink interface {
	CaptureResult(descriptor *models.CommandDescriptor, parameters map[string]any, result *models.ExecutionResult, notes string) (*models.TestResult, error)
}

// Executor runs at most one attempt at a time against a host environment.
type Executor struct {
	env       host.Environment
	validator *validation.Validator
	detector  *detector.Detector
	sink      CaptureSink

	mu        sync.Mutex
	inFlight  bool
	snapshots map[string]*models.WorkspaceSnapshot
}

// New builds an Executor. The sink may be nil, in which case capture
// requests are ignored.
func New(env host.Environment, v *validation.Validator, d *detector.Detector, sink CaptureSink) *Executor {
	return &Executor{
		env:       env,
		validator: v,
		detector:  d,
		sink:      sink,
		snapshots: make(map[string]*models.WorkspaceSnapshot),
	}
}

type invokeOutcome struct {
	value any
	err   error
}

// Execute runs one attempt. Failures detected before invocation (safety
// checks, validation, snapshot) return a nil result and an error with no
// side effects; once invocation starts, a complete ExecutionResult is
// always produced, even on timeout or command failure. When capture is
// requested and a sink is attached, the result is additionally analyzed and
// stored; capture failures are logged and never mask the execution outcome.
func (e *Executor) Execute(ctx context.Context, ec models.ExecutionContext, capture bool, notes string) (*models.ExecutionResult, error) {
	if ec.Descriptor == nil {
		return nil, ErrNoDescriptor
	}
	desc := ec.Descriptor

	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrExecutionInProgress
	}
	e.inFlight = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	coerced, err := e.safetyChecks(ec)
	if err != nil {
		return nil, err
	}

	var snapshotID string
	if ec.CreateSnapshot {
		snap, err := e.detector.CreateSnapshot()
		if err != nil {
			return nil, fmt.Errorf("creating pre-execution snapshot: %w", err)
		}
		snapshotID = snap.ID
		e.mu.Lock()
		e.snapshots[snap.ID] = snap
		e.mu.Unlock()
	}

	if err := e.detector.StartMonitoring(); err != nil {
		if snapshotID != "" {
			e.mu.Lock()
			delete(e.snapshots, snapshotID)
			e.mu.Unlock()
		}
		return nil, fmt.Errorf("starting side-effect monitoring: %w", err)
	}

	args := orderedArgs(desc.Signature, coerced, ec.Parameters)
	timeout := ec.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log.Printf("[Executor] Invoking %s (timeout %v)", desc.ID, timeout)
	started := time.Now()

	outcomeCh := make(chan invokeOutcome, 1)
	go func() {
		value, err := e.env.InvokeCommand(ctx, desc.ID, args)
		outcomeCh <- invokeOutcome{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	result := &models.ExecutionResult{
		StartedAt:  started,
		SnapshotID: snapshotID,
	}
	select {
	case outcome := <-outcomeCh:
		if outcome.err != nil {
			result.Err = ClassifyError(outcome.err)
		} else {
			result.Success = true
			result.ReturnValue = outcome.value
		}
	case <-timer.C:
		// The host call is not assumed cancelled; monitoring stays live so
		// that a late-settling invocation's effects are still captured.
		result.Err = &models.ExecutionError{
			Message:     fmt.Sprintf("command %s timed out after %v", desc.ID, timeout),
			Type:        models.ErrorTimeout,
			Recoverable: true,
		}
		log.Printf("[Executor] Timeout for %s after %v", desc.ID, timeout)
	}

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(started)

	effects, err := e.detector.StopMonitoring()
	if err != nil {
		log.Printf("[Executor] Stopping monitoring failed: %v", err)
	}
	if effects == nil {
		effects = []models.SideEffect{}
	}
	result.SideEffects = effects

	if result.Success {
		log.Printf("[Executor] %s succeeded in %v with %d side effects", desc.ID, result.Duration, len(effects))
	} else {
		log.Printf("[Executor] %s failed in %v: %s", desc.ID, result.Duration, result.Err.Message)
	}

	if capture && e.sink != nil {
		if _, err := e.sink.CaptureResult(desc, ec.Parameters, result, notes); err != nil {
			log.Printf("[Executor] Result capture failed: %v", err)
		}
	}

	return result, nil
}

// safetyChecks runs the pre-invocation gate: confirmation for destructive
// commands, context preconditions, and parameter validation. It returns the
// coerced parameter values on success.
func (e *Executor) safetyChecks(ec models.ExecutionContext) (map[string]any, error) {
	desc := ec.Descriptor
	if desc.RiskTier == models.TierDestructive && !ec.Confirmed {
		return nil, ErrConfirmationRequired
	}

	for _, pre := range desc.Preconditions {
		switch pre {
		case models.PrecondWorkspaceOpen:
			if len(e.env.WorkspaceRoots()) == 0 {
				return nil, &PreconditionError{Precondition: pre}
			}
		case models.PrecondActiveDocument:
			if e.env.ActiveDocument() == "" {
				return nil, &PreconditionError{Precondition: pre}
			}
		default:
			return nil, &PreconditionError{Precondition: pre}
		}
	}

	if len(desc.Signature) == 0 {
		return nil, nil
	}
	outcome := e.validator.Validate(desc.Signature, ec.Parameters)
	if !outcome.Valid {
		return nil, &ValidationError{Outcome: outcome}
	}
	return outcome.Coerced, nil
}

// orderedArgs builds the invocation argument list in signature order.
func orderedArgs(signature []models.ParameterSpec, coerced, raw map[string]any) []any {
	if len(signature) == 0 {
		return nil
	}
	args := make([]any, 0, len(signature))
	for _, spec := range signature {
		if v, ok := coerced[spec.Name]; ok {
			args = append(args, v)
			continue
		}
		if v, ok := raw[spec.Name]; ok && v != nil {
			args = append(args, v)
			continue
		}
		args = append(args, nil)
	}
	return args
}

// Snapshot returns a stored snapshot by id.
func (e *Executor) Snapshot(id string) (*models.WorkspaceSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap, ok := e.snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return snap, nil
}

// CreateSnapshot captures and stores a snapshot outside of any attempt.
func (e *Executor) CreateSnapshot() (*models.WorkspaceSnapshot, error) {
	snap, err := e.detector.CreateSnapshot()
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.snapshots[snap.ID] = snap
	e.mu.Unlock()
	return snap, nil
}

// ListSnapshots returns stored snapshots ordered by creation time.
func (e *Executor) ListSnapshots() []*models.WorkspaceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.WorkspaceSnapshot, 0, len(e.snapshots))
	for _, snap := range e.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// DeleteSnapshot removes a stored snapshot.
func (e *Executor) DeleteSnapshot(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.snapshots[id]; !ok {
		return ErrSnapshotNotFound
	}
	delete(e.snapshots, id)
	return nil
}

// ClearAllSnapshots drops every stored snapshot.
func (e *Executor) ClearAllSnapshots() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots = make(map[string]*models.WorkspaceSnapshot)
}

// RestoreSnapshot replays a snapshot's document contents and active
// document back onto the workspace. Restore is best effort: per-document
// failures are logged and skipped, and file or setting changes observed
// during monitoring are not undone.
func (e *Executor) RestoreSnapshot(id string) error {
	snap, err := e.Snapshot(id)
	if err != nil {
		return err
	}

	for _, doc := range snap.OpenDocuments {
		if err := e.env.ApplyDocumentText(doc.URI, doc.Text); err != nil {
			log.Printf("[Executor] Restore: skipping document %s: %v", doc.URI, err)
		}
	}
	if snap.ActiveDocument != "" {
		if err := e.env.SetActiveDocument(snap.ActiveDocument); err != nil {
			log.Printf("[Executor] Restore: could not activate %s: %v", snap.ActiveDocument, err)
		}
	}
	log.Printf("[Executor] Snapshot %s restored (%d documents)", id, len(snap.OpenDocuments))
	return nil
}

// InProgress reports whether an attempt is currently running.
func (e *Executor) InProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}
