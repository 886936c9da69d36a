package messagebus

import "time"

// Role identifies who a message is attributed to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is a message's lifecycle state. At most one message in the
// log may be Generating at any point.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
)

// Message is an entry in the canonical ordered log. Thinking and Content
// are cumulative (built up by ThinkingDelta/ContentDelta patches); every
// other mutable field is replaced wholesale by the patches that touch it.
type Message struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Publisher      string    `json:"publisher,omitempty"` // node id whose agent authored this message; "" = user/system
	Status         Status    `json:"status"`
	Title          string    `json:"title,omitempty"`
	Thinking       string    `json:"thinking,omitempty"`
	Content        string    `json:"content,omitempty"`
	ActionTitle    string    `json:"action_title,omitempty"`
	ActionParams   any       `json:"action_params,omitempty"`
	SnapshotID     string    `json:"snapshot_id,omitempty"`
	VisibleNodeIDs []string  `json:"visible_node_ids,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (m *Message) clone() *Message {
	cp := *m
	if m.VisibleNodeIDs != nil {
		cp.VisibleNodeIDs = append([]string(nil), m.VisibleNodeIDs...)
	}
	return &cp
}

// isVisibleTo implements the visibility filter: a message is visible
// to a node if its VisibleNodeIDs is empty (global)
// or intersects the caller-supplied set of relevant node ids.
func (m *Message) isVisibleTo(nodeIDs []string) bool {
	if len(m.VisibleNodeIDs) == 0 {
		return true
	}
	for _, want := range nodeIDs {
		for _, have := range m.VisibleNodeIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}
