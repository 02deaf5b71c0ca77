package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatboard/internal/models"
)

// ===========================================================================
// Tests cho flow traversal
// ===========================================================================

// menuFlow graph mẫu: menu gốc với hai nhánh trả lời
//
//	n1 (message: menu)
//	├── n2 (response: suporte) ── n3 (message: encaminhando)
//	└── n4 (response: vendas)  ── n5 (message: catalogo) ── n6 (message: promo)
func menuFlow() models.FlowGraph {
	return models.FlowGraph{
		Nodes: []models.FlowNode{
			{ID: "n1", Type: models.NodeMessage, Value: "Como podemos ajudar?"},
			{ID: "n2", Type: models.NodeResponse, Value: "suporte"},
			{ID: "n3", Type: models.NodeMessage, Value: "Encaminhando para o suporte."},
			{ID: "n4", Type: models.NodeResponse, Value: "vendas"},
			{ID: "n5", Type: models.NodeMessage, Value: "Nosso catálogo: https://x"},
			{ID: "n6", Type: models.NodeMessage, Value: "Promoção da semana!"},
		},
		Edges: []models.FlowEdge{
			{Source: "n1", Target: "n2"},
			{Source: "n1", Target: "n4"},
			{Source: "n2", Target: "n3"},
			{Source: "n4", Target: "n5"},
			{Source: "n5", Target: "n6"},
		},
	}
}

func nodeIDs(nodes []*models.FlowNode) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestDirectChildren(t *testing.T) {
	g := menuFlow()

	// Theo thứ tự edges
	assert.Equal(t, []string{"n2", "n4"}, nodeIDs(DirectChildren(&g, "n1")))
	assert.Equal(t, []string{"n3"}, nodeIDs(DirectChildren(&g, "n2")))
	assert.Empty(t, DirectChildren(&g, "n3"))
	assert.Empty(t, DirectChildren(&g, "ghost"))
}

func TestDescendants_VisitsEachNodeOnce(t *testing.T) {
	g := menuFlow()
	// Thêm cycle n6 -> n1: duyệt vẫn phải dừng
	g.Edges = append(g.Edges, models.FlowEdge{Source: "n6", Target: "n1"})

	result := nodeIDs(Descendants(&g, "n1"))
	assert.Len(t, result, 5)
	assert.NotContains(t, result, "n1")
}

func TestAnsweredNode(t *testing.T) {
	g := menuFlow()

	answered := AnsweredNode(&g, "n1", "suporte", 0)
	require.NotNil(t, answered)
	assert.Equal(t, "n2", answered.ID)

	// Fuzzy matching áp dụng cả cho response values
	answered = AnsweredNode(&g, "n1", "Vendas!", 0.25)
	require.NotNil(t, answered)
	assert.Equal(t, "n4", answered.ID)

	assert.Nil(t, AnsweredNode(&g, "n1", "tchau", 0.25))
	assert.Nil(t, AnsweredNode(&g, "n3", "suporte", 0))
}

func TestAdvance_FreshConversationEmitsRoot(t *testing.T) {
	g := menuFlow()
	conv := &models.ActiveConversation{ChatKey: "5511999@c.us"}

	result := Advance(&g, conv, "oi", 0)

	// Root phát vô điều kiện, descent dừng trước response children
	assert.Equal(t, []string{"n1"}, nodeIDs(result.Messages))
	assert.Equal(t, "n1", conv.CurrentNodeID)
	assert.False(t, result.Closed)
	assert.Empty(t, result.Fallback)
}

func TestAdvance_AnswerDescendsToDeadEnd(t *testing.T) {
	g := menuFlow()
	conv := &models.ActiveConversation{ChatKey: "k", CurrentNodeID: "n1"}

	result := Advance(&g, conv, "suporte", 0)

	// n3 không có con: gửi xong thì đóng hội thoại
	assert.Equal(t, []string{"n3"}, nodeIDs(result.Messages))
	assert.True(t, result.Closed)
	assert.False(t, result.LoopDetected)
}

func TestAdvance_CollectsConsecutiveMessages(t *testing.T) {
	g := menuFlow()
	conv := &models.ActiveConversation{ChatKey: "k", CurrentNodeID: "n1"}

	result := Advance(&g, conv, "vendas", 0)

	// n5 và n6 gửi trong cùng một lượt, rồi dead end
	assert.Equal(t, []string{"n5", "n6"}, nodeIDs(result.Messages))
	assert.True(t, result.Closed)
}

func TestAdvance_UnmatchedAnswerReturnsFallback(t *testing.T) {
	g := menuFlow()
	conv := &models.ActiveConversation{ChatKey: "k", CurrentNodeID: "n1"}

	result := Advance(&g, conv, "xyz", 0)

	assert.Empty(t, result.Messages)
	assert.False(t, result.Closed)
	assert.Equal(t, "Não entendi. As opções são:\n* suporte\n* vendas", result.Fallback)

	// Fallback không thay đổi state: trả lời lại vẫn từ n1
	assert.Equal(t, "n1", conv.CurrentNodeID)
}

func TestAdvance_FallbackListsAllChildren(t *testing.T) {
	g := menuFlow()
	// Message child cũng xuất hiện trong danh sách options, dù chỉ
	// response children match được trả lời
	g.Nodes = append(g.Nodes, models.FlowNode{ID: "n8", Type: models.NodeMessage, Value: "Horário de atendimento"})
	g.Edges = append(g.Edges, models.FlowEdge{Source: "n1", Target: "n8"})

	conv := &models.ActiveConversation{ChatKey: "k", CurrentNodeID: "n1"}
	result := Advance(&g, conv, "xyz", 0)

	assert.Equal(t, "Não entendi. As opções são:\n* suporte\n* vendas\n* Horário de atendimento", result.Fallback)
}

func TestAdvance_StopsAtResponseNode(t *testing.T) {
	g := menuFlow()
	// n3 có response con: descent phải dừng chờ trả lời, không đóng
	g.Nodes = append(g.Nodes, models.FlowNode{ID: "n7", Type: models.NodeResponse, Value: "sim"})
	g.Edges = append(g.Edges, models.FlowEdge{Source: "n3", Target: "n7"})

	conv := &models.ActiveConversation{ChatKey: "k", CurrentNodeID: "n1"}
	result := Advance(&g, conv, "suporte", 0)

	assert.Equal(t, []string{"n3"}, nodeIDs(result.Messages))
	assert.False(t, result.Closed)
	assert.Equal(t, "n3", conv.CurrentNodeID)
}

func TestAdvance_NextNodeOverrideLoopsBackToMenu(t *testing.T) {
	g := menuFlow()
	// n6 quay về menu: loop có chủ đích, hợp lệ vì n1 có response chắn
	for i := range g.Nodes {
		if g.Nodes[i].ID == "n6" {
			g.Nodes[i].NextNodeID = "n1"
		}
	}

	conv := &models.ActiveConversation{ChatKey: "k", CurrentNodeID: "n1"}
	result := Advance(&g, conv, "vendas", 0)

	assert.Equal(t, []string{"n5", "n6", "n1"}, nodeIDs(result.Messages))
	assert.False(t, result.Closed)
	assert.Equal(t, "n1", conv.CurrentNodeID)
}

func TestAdvance_UnguardedLoopTripsGuard(t *testing.T) {
	// Message node trỏ về chính nó, không có response chắn giữa
	g := models.FlowGraph{
		Nodes: []models.FlowNode{
			{ID: "a", Type: models.NodeMessage, Value: "ping", NextNodeID: "a"},
		},
	}

	conv := &models.ActiveConversation{ChatKey: "k"}
	result := Advance(&g, conv, "oi", 0)

	assert.True(t, result.Closed)
	assert.True(t, result.LoopDetected)
}

func TestAdvance_MissingCurrentNodeCloses(t *testing.T) {
	g := menuFlow()
	// Graph bị sửa dưới chân hội thoại đang chạy
	conv := &models.ActiveConversation{ChatKey: "k", CurrentNodeID: "deleted"}

	result := Advance(&g, conv, "suporte", 0)

	assert.True(t, result.Closed)
	assert.Empty(t, result.Messages)
}

func TestAdvance_EmptyGraphCloses(t *testing.T) {
	g := models.FlowGraph{}
	conv := &models.ActiveConversation{ChatKey: "k"}

	result := Advance(&g, conv, "oi", 0)
	assert.True(t, result.Closed)
}
