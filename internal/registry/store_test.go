package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/pandeptwidyaop/cmdprobe/internal/database"
	"github.com/pandeptwidyaop/cmdprobe/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return NewStore(db)
}

func TestStoreCreateAndGet(t *testing.T) {
	store := setupStore(t)

	created, err := store.Create(&models.CommandDescriptor{
		ID:          "workspace.list",
		Name:        "List Files",
		Description: "List workspace files",
		RiskTier:    models.TierSafe,
		Preconditions: []models.Precondition{
			models.PrecondWorkspaceOpen,
		},
		Signature: []models.ParameterSpec{
			{Name: "pattern", Type: "string", Required: false},
		},
		ShellTemplate: `ls "$1"`,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}

	got, err := store.Get("workspace.list")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "List Files" || got.RiskTier != models.TierSafe {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if len(got.Preconditions) != 1 || got.Preconditions[0] != models.PrecondWorkspaceOpen {
		t.Errorf("Preconditions lost: %v", got.Preconditions)
	}
	if len(got.Signature) != 1 || got.Signature[0].Name != "pattern" {
		t.Errorf("Signature lost: %v", got.Signature)
	}

	if _, err := store.Get("missing"); err != ErrCommandNotFound {
		t.Errorf("Expected ErrCommandNotFound, got %v", err)
	}
}

func TestStoreCreateDefaults(t *testing.T) {
	store := setupStore(t)
	created, err := store.Create(&models.CommandDescriptor{Name: "Anonymous"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == "" {
		t.Error("Expected generated id")
	}
	if created.RiskTier != models.TierSafe {
		t.Errorf("Default tier = %q, want safe", created.RiskTier)
	}
}

func TestStoreList(t *testing.T) {
	store := setupStore(t)
	for _, name := range []string{"Zeta", "Alpha"} {
		if _, err := store.Create(&models.CommandDescriptor{Name: name}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	list, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Alpha" || list[1].Name != "Zeta" {
		t.Errorf("Expected name ordering, got %v", list)
	}
}

func TestStoreUpdate(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Create(&models.CommandDescriptor{ID: "editor.fix", Name: "Fix"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := store.Update("editor.fix", &UpdateRequest{
		RiskTier: models.TierDestructive,
		Signature: []models.ParameterSpec{
			{Name: "target", Type: "uri", Required: true},
		},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.RiskTier != models.TierDestructive {
		t.Errorf("RiskTier = %q, want destructive", updated.RiskTier)
	}
	if updated.Name != "Fix" {
		t.Errorf("Unset fields should be preserved, got name %q", updated.Name)
	}
	if len(updated.Signature) != 1 {
		t.Errorf("Signature not replaced: %v", updated.Signature)
	}

	if _, err := store.Update("missing", &UpdateRequest{}); err != ErrCommandNotFound {
		t.Errorf("Expected ErrCommandNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Create(&models.CommandDescriptor{ID: "tmp", Name: "Tmp"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Delete("tmp"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("tmp"); err != ErrCommandNotFound {
		t.Errorf("Expected ErrCommandNotFound after delete, got %v", err)
	}
	if err := store.Delete("tmp"); err != ErrCommandNotFound {
		t.Errorf("Expected ErrCommandNotFound for repeat delete, got %v", err)
	}
}

func TestShellInvoker(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Create(&models.CommandDescriptor{
		ID:            "shell.echo",
		Name:          "Echo",
		ShellTemplate: `echo "arg=$1"`,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(&models.CommandDescriptor{
		ID:   "shell.unbound",
		Name: "Unbound",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	inv := NewShellInvoker(store, t.TempDir())

	value, err := inv.InvokeCommand(context.Background(), "shell.echo", []any{"hello world"})
	if err != nil {
		t.Fatalf("InvokeCommand failed: %v", err)
	}
	out := value.(map[string]any)
	if got := out["output"].(string); strings.TrimSpace(got) != "arg=hello world" {
		t.Errorf("Unexpected output %q", got)
	}
	if out["exit_code"] != 0 {
		t.Errorf("Unexpected exit code %v", out["exit_code"])
	}

	if _, err := inv.InvokeCommand(context.Background(), "shell.unbound", nil); !strings.Contains(err.Error(), "no shell binding") {
		t.Errorf("Expected ErrNoShellBinding, got %v", err)
	}
	if _, err := inv.InvokeCommand(context.Background(), "shell.missing", nil); err != ErrCommandNotFound {
		t.Errorf("Expected ErrCommandNotFound, got %v", err)
	}
}

func TestShellInvokerArgumentsNotInterpolated(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Create(&models.CommandDescriptor{
		ID:            "shell.print",
		Name:          "Print",
		ShellTemplate: `printf '%s' "$1"`,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	inv := NewShellInvoker(store, t.TempDir())

	// A shell metacharacter payload must come back verbatim, not executed.
	payload := `$(echo pwned); rm -rf /`
	value, err := inv.InvokeCommand(context.Background(), "shell.print", []any{payload})
	if err != nil {
		t.Fatalf("InvokeCommand failed: %v", err)
	}
	out := value.(map[string]any)
	if out["output"] != payload {
		t.Errorf("Argument was interpolated: %q", out["output"])
	}
}

func TestShellInvokerExitCode(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Create(&models.CommandDescriptor{
		ID:            "shell.fail",
		Name:          "Fail",
		ShellTemplate: "exit 3",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	inv := NewShellInvoker(store, t.TempDir())

	_, err := inv.InvokeCommand(context.Background(), "shell.fail", nil)
	if err == nil || !strings.Contains(err.Error(), "exited with code 3") {
		t.Errorf("Expected exit code error, got %v", err)
	}
}
