package messagebus

// BroadcastGenerating is the sentinel message id that applies a patch to
// every message currently in the generating state. The mechanism is
// effectively vestigial (only one message is ever generating at a time)
// but is preserved for wire compatibility — agent tasks use it for the
// cancellation notice. The terminal "finished" patch is broadcast
// without touching the log, so it never reaches this path.
const BroadcastGenerating = "-"

// Patch is a proposed mutation to the message log. A nil MessageID means
// "append a new message"; MessageID == BroadcastGenerating means
// "apply to every generating message". Optional replacement fields are
// pointers so the zero value is distinguishable from "not provided".
type Patch struct {
	MessageID *string

	// Role is required when MessageID is nil (message creation).
	Role *Role

	Publisher *string

	// ThinkingDelta and ContentDelta are appended, never replace.
	ThinkingDelta string
	ContentDelta  string

	Title        *string
	ActionTitle  *string
	ActionParams any
	SnapshotID   *string

	// VisibleNodeIDs, when non-nil, replaces the message's visibility set.
	VisibleNodeIDs []string

	Finished bool
	Rollback bool
}

// Str is a small constructor helper for Patch's optional string fields.
func Str(s string) *string { return &s }

// RolePtr is a small constructor helper for Patch.Role.
func RolePtr(r Role) *Role { return &r }

func applyPatch(msg *Message, p Patch) {
	msg.Thinking += p.ThinkingDelta
	msg.Content += p.ContentDelta
	if p.Role != nil {
		msg.Role = *p.Role
	}
	if p.Publisher != nil {
		msg.Publisher = *p.Publisher
	}
	if p.Title != nil {
		msg.Title = *p.Title
	}
	if p.ActionTitle != nil {
		msg.ActionTitle = *p.ActionTitle
	}
	if p.ActionParams != nil {
		msg.ActionParams = p.ActionParams
	}
	if p.SnapshotID != nil {
		msg.SnapshotID = *p.SnapshotID
	}
	if p.VisibleNodeIDs != nil {
		msg.VisibleNodeIDs = p.VisibleNodeIDs
	}
	if p.Finished {
		msg.Status = StatusCompleted
	}
	msg.UpdatedAt = nowFunc()
}

// OutboundPatch is the front-end projection of a Patch: snapshot_id is
// expanded to a full Snapshot object. The raw, in-log Patch is
// unaffected by this projection.
type OutboundPatch struct {
	MessageID      string   `json:"message_id"`
	Role           *Role    `json:"role,omitempty"`
	Publisher      *string  `json:"publisher,omitempty"`
	ThinkingDelta  string   `json:"thinking_delta,omitempty"`
	ContentDelta   string   `json:"content_delta,omitempty"`
	Title          *string  `json:"title,omitempty"`
	ActionTitle    *string  `json:"action_title,omitempty"`
	ActionParams   any      `json:"action_params,omitempty"`
	SnapshotID     *string  `json:"snapshot_id,omitempty"`
	Snapshot       any      `json:"snapshot,omitempty"`
	VisibleNodeIDs []string `json:"visible_node_ids,omitempty"`
	Finished       bool     `json:"finished"`
	Rollback       bool     `json:"rollback"`
}
