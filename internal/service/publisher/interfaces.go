package publisher

import (
	"context"
)

// Action names the syndication operation an audit entry describes.
type Action string

const (
	ActionPushJSON        Action = "PUSH_JSON"
	ActionPushFile        Action = "PUSH_FILE"
	ActionResult          Action = "RESULT"
	ActionDeleteUUID      Action = "DELETE_UUID"
	ActionDeleteContentID Action = "DELETE_CONTENT_ID"
)

// Audit statuses written by feedsync itself. Gateway statuses are stored verbatim.
const (
	StatusBlocked = "BLOCKED"
	StatusDryRun  = "DRY_RUN"
	StatusError   = "ERROR"
	StatusSuccess = "SUCCESS"
)

// AuditEntry is one attempted action.
type AuditEntry struct {
	Action    Action
	Status    string
	ArticleID *int
	ContentID string
	UUID      string
	Request   interface{}
	Response  interface{}
	Err       error
}

// AuditSink records audit entries on a best-effort basis. Record has no
// error return: a failed write is handled inside the sink.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// File is a binary attachment sent alongside a push.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// RelatedLink is an entry of the feed document's related links.
type RelatedLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Options are the per-call push options supplied by an admin action or the scheduler.
type Options struct {
	// DryRun builds the payload without sending it. The configured default
	// still applies when this is false.
	DryRun bool
	// EnableComment overrides the configured comment default when set.
	EnableComment *bool
	// BodyHTML replaces the stored article content in the outbound payload.
	BodyHTML *string
	// ExternalURL replaces the canonical article link.
	ExternalURL string
	Related     []RelatedLink
}

// Result is the structured outcome handed back to callers. Gateway failures
// are reported here with OK=false rather than as Go errors.
type Result struct {
	OK      bool        `json:"ok"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Payload interface{} `json:"payloadPreview,omitempty"`
	DryRun  bool        `json:"dryRun,omitempty"`
	Blocked bool        `json:"blocked,omitempty"`
}

// Message builds a {"message": ...} data body.
func Message(msg string) map[string]string {
	return map[string]string{"message": msg}
}

// IntPtr is a helper for optional article ids in audit entries.
func IntPtr(v int) *int {
	return &v
}
