package agent

import (
	"fmt"
	"strings"

	"github.com/konglinxi/resvizcopilot/internal/messagebus"
	"github.com/konglinxi/resvizcopilot/internal/tree"
)

// publisherLabel resolves a message's publisher node id to a
// human-readable role label, e.g. "《标题》问题的负责专家". A message with
// no publisher (user/system messages) is labelled "用户"; when the node
// no longer exists it falls back to the bare id.
func publisherLabel(store *tree.Store, nodeID, viewerNodeID string) string {
	if nodeID == "" {
		return "用户"
	}
	node, ok := store.GetNodeByID(nodeID)
	if !ok {
		return nodeID
	}
	var title string
	switch n := node.(type) {
	case *tree.Problem:
		title = n.Title
	case *tree.Solution:
		title = n.Title
	}
	label := fmt.Sprintf("《%s》问题的负责专家", title)
	if nodeID == viewerNodeID {
		label += "（你）"
	}
	return label
}

// renderMessageList renders msgs as the formatted block agent prompts
// embed: one 【发出者】/【消息标题】/【消息内容】 section per message.
func renderMessageList(store *tree.Store, msgs []*messagebus.Message, viewerNodeID string) string {
	if len(msgs) == 0 {
		return "暂无历史消息"
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "【发出者】: %s\n", publisherLabel(store, m.Publisher, viewerNodeID))
		fmt.Fprintf(&b, "【消息标题】: %s\n", m.Title)
		fmt.Fprintf(&b, "【消息内容】: %s\n\n", m.Content)
	}
	return b.String()
}

// renderSubProblemList renders a solution's prior sub-problem list
// (title-keyed, in their original child order) as the text the
// ModifySolution prompt embeds so the model can reference inherit
// targets by name.
func renderSubProblemList(orgProblems map[string]tree.ProblemRequest, orgTitleOrder []string) string {
	if len(orgTitleOrder) == 0 {
		return "当前方案无子研究问题"
	}
	var b strings.Builder
	for _, title := range orgTitleOrder {
		req := orgProblems[title]
		fmt.Fprintf(&b, "[问题类型]: %s\n[问题名称]: %s\n[问题意义]: \n%s\n[评判标准]: \n%s\n\n", req.ProblemType, req.Title, req.Significance, req.Criteria)
	}
	return b.String()
}
