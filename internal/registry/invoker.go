package registry

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

// ErrNoShellBinding is returned when a descriptor has no shell template.
var ErrNoShellBinding = errors.New("command has no shell binding")

// ShellInvoker dispatches registered commands to the shell. Arguments are
// passed positionally ($1, $2, ...) rather than interpolated into the
// template. The invocation honors context cancellation from the caller but
// offers no guarantee the spawned process stops on its own.
type ShellInvoker struct {
	store   *Store
	workDir string
}

// NewShellInvoker builds a ShellInvoker rooted at workDir.
func NewShellInvoker(store *Store, workDir string) *ShellInvoker {
	return &ShellInvoker{store: store, workDir: workDir}
}

// InvokeCommand looks up the descriptor and runs its shell template. The
// return value is a map with the combined output and exit code.
func (i *ShellInvoker) InvokeCommand(ctx context.Context, id string, args []any) (any, error) {
	desc, err := i.store.Get(id)
	if err != nil {
		return nil, err
	}
	if desc.ShellTemplate == "" {
		return nil, fmt.Errorf("%s: %w", id, ErrNoShellBinding)
	}

	shellArgs := []string{"-c", desc.ShellTemplate, "cmdprobe"}
	for _, arg := range args {
		shellArgs = append(shellArgs, argString(arg))
	}

	cmd := exec.CommandContext(ctx, "sh", shellArgs...)
	cmd.Dir = i.workDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("command %s exited with code %d: %s", id, exitErr.ExitCode(), string(output))
		}
		return nil, fmt.Errorf("running command %s: %w", id, err)
	}

	return map[string]any{
		"output":    string(output),
		"exit_code": 0,
	}, nil
}

func argString(arg any) string {
	switch v := arg.(type) {
	case string:
		return v
	case models.Locator:
		return v.Path
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
