// Package core holds the data model shared by every layer of the security
// interception pipeline: the tool request the host sends in, and the
// decision the pipeline hands back.
package core

// ToolRequest is the immutable input to the pipeline: a tool name plus a
// bag of operation-specific string fields. Unknown tools carry whatever
// fields the host sent; handlers only look at the fields they understand.
type ToolRequest struct {
	Tool   string
	Fields map[string]string
}

// NewToolRequest returns a request with an initialized field map.
func NewToolRequest(tool string) ToolRequest {
	return ToolRequest{Tool: tool, Fields: make(map[string]string)}
}

// Field returns the named field, or "" if absent. Accessors below are
// thin wrappers for the field names spec'd for each tool; callers that
// need a field not covered by a named accessor can call Field directly.
func (r ToolRequest) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// WithField returns a copy of the request with the given field set. Used
// by handlers that mutate a request (e.g. the shell handler rewriting a
// git commit command) without aliasing the caller's map.
func (r ToolRequest) WithField(name, value string) ToolRequest {
	out := ToolRequest{Tool: r.Tool, Fields: make(map[string]string, len(r.Fields)+1)}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	out.Fields[name] = value
	return out
}

func (r ToolRequest) Command() string        { return r.Field("command") }
func (r ToolRequest) FilePath() string        { return r.Field("file_path") }
func (r ToolRequest) Content() string         { return r.Field("content") }
func (r ToolRequest) OldString() string       { return r.Field("old_string") }
func (r ToolRequest) NewString() string       { return r.Field("new_string") }
func (r ToolRequest) Pattern() string         { return r.Field("pattern") }
func (r ToolRequest) Path() string            { return r.Field("path") }
func (r ToolRequest) URL() string             { return r.Field("url") }
func (r ToolRequest) Query() string           { return r.Field("query") }
func (r ToolRequest) Prompt() string          { return r.Field("prompt") }
func (r ToolRequest) NotebookPath() string    { return r.Field("notebook_path") }
func (r ToolRequest) NewSource() string       { return r.Field("new_source") }
func (r ToolRequest) AllowedDomains() string  { return r.Field("allowed_domains") }
func (r ToolRequest) BlockedDomains() string  { return r.Field("blocked_domains") }

// PrimaryOperation extracts the primary operation string the router's
// upper layers (heuristic detector, correlator, fast path) reason about,
// following the tool-specific precedence described in spec §4.9 step 2.
func (r ToolRequest) PrimaryOperation() string {
	switch r.Tool {
	case "Bash":
		return r.Command()
	case "Write", "Edit", "Read", "NotebookEdit":
		if p := r.FilePath(); p != "" {
			return p
		}
		return r.NotebookPath()
	case "Glob", "Grep":
		return r.Pattern()
	case "WebFetch":
		return r.URL()
	case "WebSearch":
		return r.Query()
	case "Task":
		return r.Prompt()
	default:
		return ""
	}
}
