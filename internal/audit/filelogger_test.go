package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func tempLoggerConfig(t *testing.T) FileLoggerConfig {
	t.Helper()
	dir := t.TempDir()
	return FileLoggerConfig{
		Path:          filepath.Join(dir, "audit.jsonl"),
		MaxSizeMB:     100,
		FlushInterval: 50 * time.Millisecond,
		SampleRate:    1.0,
	}
}

func testEvent(eventType EventType, tool string) AuditEvent {
	return AuditEvent{
		Timestamp: time.Date(2026, 2, 21, 10, 30, 0, 0, time.UTC),
		EventType: eventType,
		SessionID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Tool:      tool,
		Source:    SourceCLI,
		Severity:  SeverityInfo,
		Details: map[string]any{
			"note": "test event",
		},
	}
}

func TestFileLoggerBasicWriteAndRead(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	event := testEvent(EventToolInvoke, "Bash")

	if err := logger.Log(ctx, event); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	events, err := ReadEvents(cfg.Path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	got := events[0]
	if got.EventType != EventToolInvoke {
		t.Errorf("EventType = %q, want %q", got.EventType, EventToolInvoke)
	}
	if got.Tool != "Bash" {
		t.Errorf("Tool = %q, want %q", got.Tool, "Bash")
	}
	if got.HashPrev != GenesisHash {
		t.Errorf("first event HashPrev = %q, want genesis hash", got.HashPrev)
	}
}

func TestFileLoggerHashChainIntegrity(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	ctx := context.Background()
	eventTypes := []EventType{
		EventToolInvoke, EventToolAllow,
		EventPrivilegeActivate, EventHeuristicFinding, EventToolBlock,
	}

	for _, et := range eventTypes {
		event := AuditEvent{
			Timestamp: time.Now(),
			EventType: et,
			SessionID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			Source:    SourceRouter,
			Severity:  SeverityInfo,
		}
		if err := logger.Log(ctx, event); err != nil {
			t.Fatalf("Log %s: %v", et, err)
		}
	}

	logger.Close()

	events, err := ReadEvents(cfg.Path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}

	if len(events) != len(eventTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(eventTypes))
	}

	result := VerifyChain(events, GenesisHash)
	if !result.IsIntact {
		t.Errorf("hash chain should be intact, broken at index %d", result.BrokenAt)
	}
	if result.Verified != len(eventTypes) {
		t.Errorf("Verified = %d, want %d", result.Verified, len(eventTypes))
	}
}

func TestFileLoggerJSONFormat(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	event := testEvent(EventToolBlock, "WebFetch")
	event.Details = map[string]any{
		"url":   "http://169.254.169.254/latest/meta-data/",
		"bytes": float64(0),
	}

	if err := logger.Log(ctx, event); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data[:len(data)-1], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\ndata: %s", err, data)
	}

	requiredFields := []string{
		"timestamp", "event_type", "session_id",
		"source", "severity", "hash_prev",
	}
	for _, f := range requiredFields {
		if _, ok := parsed[f]; !ok {
			t.Errorf("missing required field %q in JSON output", f)
		}
	}

	details, ok := parsed["details"].(map[string]any)
	if !ok {
		t.Fatal("details field missing or not an object")
	}
	if details["url"] != "http://169.254.169.254/latest/meta-data/" {
		t.Errorf("details.url = %v", details["url"])
	}
}

func TestFileLoggerMultipleEvents(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		event := AuditEvent{
			Timestamp: time.Date(2026, 2, 21, 10, 0, i, 0, time.UTC),
			EventType: EventHeuristicFinding,
			SessionID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			Source:    SourceHeuristic,
			Severity:  SeverityInfo,
			Details: map[string]any{
				"pattern": "encoding-evasion",
				"index":   float64(i),
			},
		}
		if err := logger.Log(ctx, event); err != nil {
			t.Fatalf("Log event %d: %v", i, err)
		}
	}

	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	events, err := ReadEvents(cfg.Path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}

	if len(events) != 10 {
		t.Errorf("got %d events, want 10", len(events))
	}
}

func TestFileLoggerValidationRejectsInvalid(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()

	// Missing SessionID.
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: EventToolInvoke,
		Source:    SourceCLI,
		Severity:  SeverityInfo,
	}

	err = logger.Log(ctx, event)
	if err != ErrMissingSessionID {
		t.Errorf("Log with missing SessionID = %v, want %v", err, ErrMissingSessionID)
	}
}

func TestFileLoggerSamplingDropsInfoEvents(t *testing.T) {
	cfg := tempLoggerConfig(t)
	cfg.SampleRate = 0.0
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	if err := logger.Log(ctx, testEvent(EventToolInvoke, "Read")); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	events, _ := ReadEvents(cfg.Path)
	if len(events) != 0 {
		t.Fatalf("sample_rate=0 should drop INFO events, got %d", len(events))
	}
}

func TestFileLoggerSamplingNeverDropsCritical(t *testing.T) {
	cfg := tempLoggerConfig(t)
	cfg.SampleRate = 0.0
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	event := testEvent(EventToolCriticalBlock, "Bash")
	event.Severity = SeverityCritical
	if err := logger.Log(ctx, event); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	events, _ := ReadEvents(cfg.Path)
	if len(events) != 1 {
		t.Fatalf("CRITICAL events must never be sampled away, got %d events", len(events))
	}
}

func TestFileLoggerConcurrentWrites(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	const goroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < eventsPerGoroutine; i++ {
				event := AuditEvent{
					Timestamp: time.Now(),
					EventType: EventToolInvoke,
					SessionID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
					Source:    SourceRouter,
					Severity:  SeverityInfo,
					Details: map[string]any{
						"goroutine": float64(id),
						"index":     float64(i),
					},
				}
				if err := logger.Log(ctx, event); err != nil {
					t.Errorf("goroutine %d, event %d: %v", id, i, err)
				}
			}
		}(g)
	}

	wg.Wait()

	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	events, err := ReadEvents(cfg.Path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}

	expected := goroutines * eventsPerGoroutine
	if len(events) != expected {
		t.Errorf("got %d events from concurrent writes, want %d", len(events), expected)
	}

	result := VerifyChain(events, GenesisHash)
	if !result.IsIntact {
		t.Errorf("hash chain broken at index %d after concurrent writes", result.BrokenAt)
	}
}

func TestFileLoggerRotation(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	// Override max size to trigger rotation.
	logger.config.MaxSizeMB = 0

	ctx := context.Background()
	event := testEvent(EventToolInvoke, "Bash")

	if err := logger.Log(ctx, event); err != nil {
		t.Fatalf("Log first: %v", err)
	}
	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush first: %v", err)
	}

	if err := logger.Log(ctx, testEvent(EventToolAllow, "Bash")); err != nil {
		t.Fatalf("Log second: %v", err)
	}
	if err := logger.Flush(ctx); err != nil {
		t.Fatalf("Flush second: %v", err)
	}

	logger.Close()

	rotated := cfg.Path + ".1"
	if _, err := os.Stat(rotated); os.IsNotExist(err) {
		t.Error("expected rotated file .1 to exist")
	}
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		t.Error("expected new main log file to exist")
	}
}

func TestFileLoggerPeriodicFlush(t *testing.T) {
	cfg := tempLoggerConfig(t)
	cfg.FlushInterval = 50 * time.Millisecond
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	if err := logger.Log(ctx, testEvent(EventToolAllow, "Read")); err != nil {
		t.Fatalf("Log: %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	info, err := os.Stat(cfg.Path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected non-zero file size after periodic flush")
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestFileLoggerRejectsAfterClose(t *testing.T) {
	cfg := tempLoggerConfig(t)
	logger, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	logger.Close()

	ctx := context.Background()
	err = logger.Log(ctx, testEvent(EventToolInvoke, "Bash"))
	if err != ErrLoggerClosed {
		t.Errorf("Log after close = %v, want %v", err, ErrLoggerClosed)
	}
}

func TestFileLoggerChainRecovery(t *testing.T) {
	cfg := tempLoggerConfig(t)

	logger1, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger 1: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		event := AuditEvent{
			Timestamp: time.Date(2026, 2, 21, 10, 0, i, 0, time.UTC),
			EventType: EventToolInvoke,
			SessionID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			Source:    SourceCLI,
			Severity:  SeverityInfo,
		}
		if err := logger1.Log(ctx, event); err != nil {
			t.Fatalf("Log 1.%d: %v", i, err)
		}
	}
	logger1.Close()

	// Open a second logger on the same file -- it should recover the chain.
	logger2, err := NewFileLogger(cfg)
	if err != nil {
		t.Fatalf("NewFileLogger 2: %v", err)
	}

	for i := 3; i < 6; i++ {
		event := AuditEvent{
			Timestamp: time.Date(2026, 2, 21, 10, 0, i, 0, time.UTC),
			EventType: EventToolBlock,
			SessionID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			Source:    SourceCLI,
			Severity:  SeverityInfo,
		}
		if err := logger2.Log(ctx, event); err != nil {
			t.Fatalf("Log 2.%d: %v", i, err)
		}
	}
	logger2.Close()

	events, err := ReadEvents(cfg.Path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}

	if len(events) != 6 {
		t.Fatalf("got %d events, want 6", len(events))
	}

	result := VerifyChain(events, GenesisHash)
	if !result.IsIntact {
		t.Errorf("hash chain broken at index %d after recovery", result.BrokenAt)
	}
	if result.Verified != 6 {
		t.Errorf("Verified = %d, want 6", result.Verified)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	ctx := context.Background()

	if err := logger.Log(ctx, validEvent()); err != nil {
		t.Errorf("NopLogger.Log: %v", err)
	}
	if err := logger.Flush(ctx); err != nil {
		t.Errorf("NopLogger.Flush: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NopLogger.Close: %v", err)
	}
}
