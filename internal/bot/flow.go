package bot

import (
	"strings"

	"chatboard/internal/models"
)

// ===========================================================================
// Flow traversal
// Duyệt flow graph của bot: tìm children, node được trả lời, và advance
// một hội thoại qua các message nodes cho đến khi gặp response node
// ===========================================================================

// maxAdvanceSteps giới hạn số bước trong một lần advance
// Next-node overrides cho phép loop có chủ đích giữa các lượt trả lời,
// nhưng loop không có response node chắn giữa sẽ không bao giờ dừng
const maxAdvanceSteps = 64

// fallbackPrefix mở đầu tin "không hiểu" khi trả lời không khớp option nào
const fallbackPrefix = "Não entendi. As opções são:\n* "

// DirectChildren trả về các nodes có edge đi ra từ nodeID, theo thứ tự edges
func DirectChildren(g *models.FlowGraph, nodeID string) []*models.FlowNode {
	var children []*models.FlowNode
	for _, edge := range g.Edges {
		if edge.Source != nodeID {
			continue
		}
		if node := g.Node(edge.Target); node != nil {
			children = append(children, node)
		}
	}
	return children
}

// Descendants duyệt iterative (stack-based) mọi node đến được từ nodeID
// Mỗi node ghé đúng một lần, an toàn với cycles
func Descendants(g *models.FlowGraph, nodeID string) []*models.FlowNode {
	visited := map[string]bool{nodeID: true}
	stack := []*models.FlowNode{}
	var result []*models.FlowNode

	stack = append(stack, DirectChildren(g, nodeID)...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[node.ID] {
			continue
		}
		visited[node.ID] = true
		result = append(result, node)
		stack = append(stack, DirectChildren(g, node.ID)...)
	}

	return result
}

// AnsweredNode tìm response node con đầu tiên của currentNodeID có value
// khớp với text theo luật trigger matching
func AnsweredNode(g *models.FlowGraph, currentNodeID, text string, threshold float64) *models.FlowNode {
	for _, child := range DirectChildren(g, currentNodeID) {
		if !child.IsResponse() {
			continue
		}
		if _, ok := MatchTrigger(text, child.Value, threshold); ok {
			return child
		}
	}
	return nil
}

// fallbackOptions liệt kê values của mọi direct child, theo thứ tự edges,
// cho tin "không hiểu". Message children cũng được liệt kê dù chỉ response
// children match được: danh sách hiển thị đúng những gì graph khai báo
func fallbackOptions(g *models.FlowGraph, nodeID string) []string {
	var options []string
	for _, child := range DirectChildren(g, nodeID) {
		options = append(options, child.Value)
	}
	return options
}

// nextNode node kế tiếp của current: override next_node_id nếu có,
// ngược lại child đầu tiên
func nextNode(g *models.FlowGraph, current *models.FlowNode) *models.FlowNode {
	if current.NextNodeID != "" {
		if node := g.Node(current.NextNodeID); node != nil {
			return node
		}
	}
	children := DirectChildren(g, current.ID)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// AdvanceResult kết quả một lần advance
type AdvanceResult struct {
	// Messages các message nodes cần gửi, theo thứ tự duyệt
	Messages []*models.FlowNode

	// Fallback tin "không hiểu" khi trả lời không khớp (terminal cho lượt này)
	Fallback string

	// Closed hội thoại đã kết thúc (dead end hoặc loop guard)
	Closed bool

	// LoopDetected advance dừng vì vượt step budget / ghé lại node cũ
	LoopDetected bool
}

// Advance tiến hội thoại theo text inbound
//
// Hội thoại mới (current_node_id rỗng) phát root node vô điều kiện rồi
// descend. Hội thoại đang chạy resolve response node được trả lời; không
// khớp thì trả fallback liệt kê options, KHÔNG thay đổi state. Descend thu
// thập mọi message node trên đường đi, dừng và đóng tại dead end, dừng
// không đóng khi gặp response node (chờ lượt trả lời tiếp theo)
func Advance(g *models.FlowGraph, conv *models.ActiveConversation, text string, threshold float64) AdvanceResult {
	var result AdvanceResult

	var current *models.FlowNode
	if conv.CurrentNodeID == "" {
		root := g.Root()
		if root == nil {
			result.Closed = true
			return result
		}
		current = root
		if current.IsMessage() {
			result.Messages = append(result.Messages, current)
			conv.CurrentNodeID = current.ID
		}
	} else {
		at := g.Node(conv.CurrentNodeID)
		if at == nil {
			// Graph đã bị sửa dưới chân hội thoại
			result.Closed = true
			return result
		}

		answered := AnsweredNode(g, at.ID, text, threshold)
		if answered == nil {
			options := fallbackOptions(g, at.ID)
			result.Fallback = fallbackPrefix + strings.Join(options, "\n* ")
			return result
		}
		current = answered
	}

	visited := map[string]bool{}
	for steps := 0; ; steps++ {
		if steps >= maxAdvanceSteps || visited[current.ID] {
			result.Closed = true
			result.LoopDetected = true
			return result
		}
		visited[current.ID] = true

		next := nextNode(g, current)
		if next == nil {
			result.Closed = true
			return result
		}
		if next.IsResponse() {
			// Chờ khách trả lời; current_node_id đứng ở message node cuối
			return result
		}

		result.Messages = append(result.Messages, next)
		conv.CurrentNodeID = next.ID
		current = next
	}
}
