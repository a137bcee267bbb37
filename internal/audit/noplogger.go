package audit

import "context"

// NopLogger implements EventLogger by dropping every event. Wired in where
// a Core needs a non-nil logger but the caller (a unit test, or a run with
// audit.enabled=false) has nothing to write events to.
type NopLogger struct{}

// NewNopLogger constructs a logger that discards everything it's given.
func NewNopLogger() *NopLogger { return &NopLogger{} }

func (n *NopLogger) Log(_ context.Context, _ AuditEvent) error { return nil }
func (n *NopLogger) Flush(_ context.Context) error             { return nil }
func (n *NopLogger) Close() error                              { return nil }
