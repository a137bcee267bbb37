package handlers

import (
	"context"
	"testing"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/session"
)

func editRequest(path, oldStr, newStr string) core.ToolRequest {
	return core.NewToolRequest("Edit").
		WithField("file_path", path).
		WithField("old_string", oldStr).
		WithField("new_string", newStr)
}

func TestEditHandlerBlocksEmptyOldString(t *testing.T) {
	h := EditHandler{Session: session.New()}
	_, v, _ := h.Handle(context.Background(), editRequest("main.go", "", "x"), nil)
	if !v.Blocked {
		t.Fatalf("expected block on empty old_string")
	}
}

func TestEditHandlerBlocksDangerousReplacement(t *testing.T) {
	h := EditHandler{Session: session.New()}
	_, v, _ := h.Handle(context.Background(), editRequest("main.go", "foo", "os.system('rm -rf /'); chmod 777 /"), nil)
	if !v.Blocked {
		t.Fatalf("expected block on dangerous new_string")
	}
}

func TestEditHandlerWarnsOnSecurityIdentifierTouch(t *testing.T) {
	h := EditHandler{Session: session.New()}
	_, v, _ := h.Handle(context.Background(), editRequest("auth.go", "func authenticate() {", "func authenticate() { // updated"), nil)
	if !v.Warn {
		t.Fatalf("expected warn when touching security identifier, got %+v", v)
	}
}

func TestEditHandlerBlocksProtectedPath(t *testing.T) {
	h := EditHandler{Session: session.New()}
	_, v, _ := h.Handle(context.Background(), editRequest("/etc/sudoers", "a", "b"), nil)
	if !v.Blocked {
		t.Fatalf("expected block editing protected path")
	}
}
