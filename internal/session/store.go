// Package session implements the process-wide session store: a flat
// key/value map with namespaced keys (session:*, metrics:*, events:*),
// an append-only event log, and atomic on-disk persistence. Grounded on
// the teacher's internal/audit hash-chained event log and
// internal/storage/local.go write-then-rename discipline.
package session

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	keySessionID  = "session:_session_id"
	keyStartedAt  = "session:_started_at"
	keyEventCount = "metrics:event_count"
)

// State is the process-wide session store. The router owns exactly one
// instance for the life of the process (spec §3 "Ownership").
type State struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates a fresh session: _session_id and _started_at are minted
// once and preserved across Clear/Load for the rest of the process.
func New() *State {
	s := &State{values: make(map[string]string)}
	s.values[keySessionID] = uuid.NewString()
	s.values[keyStartedAt] = time.Now().UTC().Format(time.RFC3339Nano)
	return s
}

// SessionID returns the session's identity, set once at New().
func (s *State) SessionID() string {
	return s.Get(keySessionID, "")
}

// Set stores a value verbatim.
func (s *State) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns the stored value, or def if the key is absent.
func (s *State) Get(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Exists reports whether key has a stored value.
func (s *State) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Delete removes key; deleting an absent key is a no-op.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Keys returns all stored keys in sorted order.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Increment adds amount to the integer stored at key (default base 0)
// and returns the new value. Fails with ErrInvalidType if the existing
// value is not a base-10 integer.
func (s *State) Increment(key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := int64(0)
	if v, ok := s.values[key]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: key %q holds %q", ErrInvalidType, key, v)
		}
		cur = n
	}
	cur += amount
	s.values[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

// Decrement subtracts amount; it is Increment(key, -amount).
func (s *State) Decrement(key string, amount int64) (int64, error) {
	return s.Increment(key, -amount)
}

// Append adds line to the value stored at key, newline-separated.
func (s *State) Append(key, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.values[key]; ok && existing != "" {
		s.values[key] = existing + "\n" + line
	} else {
		s.values[key] = line
	}
}

// Clear removes every key except the preserved session identity keys.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.values[keySessionID]
	started := s.values[keyStartedAt]
	s.values = make(map[string]string)
	s.values[keySessionID] = id
	s.values[keyStartedAt] = started
}

// TrackEvent atomically increments metrics:event_count and appends an
// entry events:<count>_<type> = timestamp|type|data. Returns the new
// event counter, which is strictly monotonic within a session (spec §3
// Event ordering invariant).
func (s *State) TrackEvent(eventType, data string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := int64(0)
	if v, ok := s.values[keyEventCount]; ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cur = n
		}
	}
	cur++
	s.values[keyEventCount] = strconv.FormatInt(cur, 10)

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	eventKey := fmt.Sprintf("events:%d_%s", cur, eventType)
	s.values[eventKey] = strings.Join([]string{ts, eventType, data}, "|")
	return cur
}

// Save writes the store atomically: serialize to path.tmp.<pid>, then
// rename over path. Every value is written base64 encoded, as
// key=base64(value), so newlines, '=' and non-UTF-8 bytes survive.
func (s *State) Save(path string) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# wow-guard session state\n")
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(s.values[k])))
		b.WriteByte('\n')
	}
	s.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session state directory %s: %w", dir, err)
	}

	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("writing session state tmp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming session state into place: %w", err)
	}
	return nil
}

// Load restores key/value pairs from path. The preserved identity keys
// (_session_id, _started_at) are never overwritten by Load, so restoring
// into an already-active session keeps its identity (spec §3 invariant).
func (s *State) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening session state %s: %w", path, err)
	}
	defer f.Close()

	loaded := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 256*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := line[:idx]
		raw, decErr := base64.StdEncoding.DecodeString(line[idx+1:])
		if decErr != nil {
			continue
		}
		loaded[key] = string(raw)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning session state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	preservedID := s.values[keySessionID]
	preservedStarted := s.values[keyStartedAt]
	for k, v := range loaded {
		if k == keySessionID || k == keyStartedAt {
			continue
		}
		s.values[k] = v
	}
	if preservedID != "" {
		s.values[keySessionID] = preservedID
	} else if v, ok := loaded[keySessionID]; ok {
		s.values[keySessionID] = v
	}
	if preservedStarted != "" {
		s.values[keyStartedAt] = preservedStarted
	} else if v, ok := loaded[keyStartedAt]; ok {
		s.values[keyStartedAt] = v
	}
	return nil
}

// Archive saves the current state to dir/<session_id>.state.
func (s *State) Archive(dir string) (string, error) {
	id := s.SessionID()
	if id == "" {
		id = "unknown"
	}
	path := filepath.Join(dir, id+".state")
	if err := s.Save(path); err != nil {
		return "", fmt.Errorf("archiving session: %w", err)
	}
	return path, nil
}
