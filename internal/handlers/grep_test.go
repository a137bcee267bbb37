package handlers

import (
	"context"
	"testing"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/session"
)

func grepRequest(path, pattern string) core.ToolRequest {
	return core.NewToolRequest("Grep").
		WithField("path", path).
		WithField("pattern", pattern)
}

func TestGrepHandlerBlocksCatastrophicFastPathTarget(t *testing.T) {
	h := GrepHandler{Session: session.New()}
	_, v, _ := h.Handle(context.Background(), grepRequest("/etc/shadow", "foo"), nil)
	if !v.Blocked {
		t.Fatalf("expected block for catastrophic grep target")
	}
}

func TestGrepHandlerWarnsOnCredentialSearchPattern(t *testing.T) {
	h := GrepHandler{Session: session.New()}
	_, v, _ := h.Handle(context.Background(), grepRequest("", "api_key"), nil)
	if !v.Warn {
		t.Fatalf("expected warn for credential search pattern, got %+v", v)
	}
}

func TestGrepHandlerAllowsOrdinarySearch(t *testing.T) {
	h := GrepHandler{Session: session.New()}
	_, v, _ := h.Handle(context.Background(), grepRequest("", "TODO"), nil)
	if v.Blocked || v.Warn {
		t.Fatalf("expected no verdict, got %+v", v)
	}
}
