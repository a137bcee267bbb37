// Package correlator tracks a bounded, time-evicted window of recent
// operations within a session and flags multi-step attack sequences that no
// single operation check can see.
package correlator

import (
	"strings"
	"sync"
	"time"
)

const (
	maxWindowLen = 50
	maxEntryAge  = 1800 * time.Second
)

// Entry records one tracked operation for later correlation.
type Entry struct {
	Tool          string
	Target        string
	ContentPrefix string
	At            time.Time
}

// Verdict is the result of a correlation check.
type Verdict struct {
	Dangerous bool
	Reason    string
	Risk      int
}

func safe() Verdict { return Verdict{} }

// Window is a bounded, per-session FIFO of recent operations.
type Window struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewWindow returns an empty correlation window using the wall clock.
func NewWindow() *Window {
	return &Window{now: time.Now}
}

// Track records an operation in the window, evicting stale/excess entries.
func (w *Window) Track(tool, target, contentPrefix string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, Entry{
		Tool:          tool,
		Target:        target,
		ContentPrefix: contentPrefix,
		At:            w.now(),
	})
	w.evictLocked()
}

func (w *Window) evictLocked() {
	now := w.now()
	cutoff := 0
	for i, e := range w.entries {
		if now.Sub(e.At) <= maxEntryAge {
			break
		}
		cutoff = i + 1
	}
	if cutoff > 0 {
		w.entries = w.entries[cutoff:]
	}
	if len(w.entries) > maxWindowLen {
		w.entries = w.entries[len(w.entries)-maxWindowLen:]
	}
}

// snapshot returns a copy of the live entries, post-eviction.
func (w *Window) snapshot() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked()
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

var downloaders = []string{"curl", "wget", "fetch", "aria2c"}

var configPoisonSuffixes = []string{
	".bashrc", ".zshrc", ".profile", ".ssh/config", ".ssh/authorized_keys",
	".gitconfig", ".npmrc", ".pypirc",
}

var tmpPrefixes = []string{"/tmp", "/var/tmp", "/dev/shm"}

// Check evaluates the current window against tool/operation for the four
// correlated attack patterns spec 4.8 defines, reporting the first match.
func (w *Window) Check(tool, operation string) Verdict {
	entries := w.snapshot()

	if tool == "Write" {
		if v := checkConfigPoisoning(operation); v.Dangerous {
			return v
		}
	}

	if isExecution(tool, operation) {
		if v := checkWriteThenExecute(entries, operation); v.Dangerous {
			return v
		}
		if v := checkDownloadThenExecute(entries, operation); v.Dangerous {
			return v
		}
		if v := checkStagedBuilding(entries, operation); v.Dangerous {
			return v
		}
	}

	return safe()
}

func isExecution(tool, operation string) bool {
	if tool == "Bash" {
		return true
	}
	return strings.Contains(operation, "exec") || strings.Contains(operation, "run")
}

func checkConfigPoisoning(target string) Verdict {
	for _, suffix := range configPoisonSuffixes {
		if strings.HasSuffix(target, suffix) {
			return Verdict{Dangerous: true, Reason: "write targets a shell/tool config file read on next login", Risk: 85}
		}
	}
	return safe()
}

func checkWriteThenExecute(entries []Entry, operation string) Verdict {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Tool != "Write" {
			continue
		}
		if e.Target == "" || !strings.Contains(operation, e.Target) {
			continue
		}
		risk := 60
		for _, prefix := range tmpPrefixes {
			if strings.HasPrefix(e.Target, prefix) {
				risk = 90
				break
			}
		}
		return Verdict{Dangerous: true, Reason: "executes a path written earlier in this session", Risk: risk}
	}
	return safe()
}

func checkDownloadThenExecute(entries []Entry, operation string) Verdict {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !usesDownloader(e.ContentPrefix) {
			continue
		}
		if e.Target == "" || !strings.Contains(operation, e.Target) {
			continue
		}
		return Verdict{Dangerous: true, Reason: "executes a path fetched from the network earlier in this session", Risk: 95}
	}
	return safe()
}

func usesDownloader(contentPrefix string) bool {
	for _, d := range downloaders {
		if strings.Contains(contentPrefix, d) {
			return true
		}
	}
	return false
}

func checkStagedBuilding(entries []Entry, operation string) Verdict {
	if !strings.Contains(operation, "eval") && !strings.Contains(operation, `"${`) {
		return safe()
	}

	assignments := 0
	arrayAppends := 0
	for _, e := range entries {
		if e.Tool != "Bash" {
			continue
		}
		if isVariableAssignment(e.ContentPrefix) {
			assignments++
		}
		if strings.Contains(e.ContentPrefix, "+=") {
			arrayAppends++
		}
	}

	if strings.Contains(operation, "eval") && assignments >= 3 {
		return Verdict{Dangerous: true, Reason: "eval follows three or more staged variable assignments", Risk: 75}
	}
	if strings.Contains(operation, `"${`) && arrayAppends >= 3 {
		return Verdict{Dangerous: true, Reason: "array expansion executed after three or more staged appends", Risk: 75}
	}
	return safe()
}

func isVariableAssignment(s string) bool {
	trimmed := strings.TrimSpace(s)
	eq := strings.IndexByte(trimmed, '=')
	if eq <= 0 {
		return false
	}
	name := trimmed[:eq]
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// ImplicitWriteTarget extracts a redirect target from a shell command, since
// `> /path` is an implicit write the correlator must also track.
func ImplicitWriteTarget(command string) (string, bool) {
	idx := strings.LastIndex(command, ">")
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(command[idx+1:], ">")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	fields := strings.Fields(rest)
	return fields[0], true
}
