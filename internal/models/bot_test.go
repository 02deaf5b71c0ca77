package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================================================================
// Tests cho trạng thái hội thoại trên Bot model
// ===========================================================================

func TestBot_StartConversation(t *testing.T) {
	b := &Bot{Name: "welcome"}
	ref := NewWebRef(uuid.New(), "5511999@c.us")
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	conv := b.StartConversation(ref, now)
	require.NotNil(t, conv)
	assert.Equal(t, "5511999@c.us", conv.ChatKey)
	assert.Empty(t, conv.CurrentNodeID, "root chỉ phát ở lượt advance đầu tiên")
	assert.Equal(t, now.UnixMilli(), conv.StartedAt)
	assert.Equal(t, int64(1), b.Triggered)

	// Start lần hai trả về hội thoại có sẵn, không tăng counter
	again := b.StartConversation(ref, now.Add(time.Minute))
	assert.Equal(t, conv.StartedAt, again.StartedAt)
	assert.Len(t, b.ActiveOn, 1)
	assert.Equal(t, int64(1), b.Triggered)
}

func TestBot_CloseConversation(t *testing.T) {
	b := &Bot{Name: "welcome"}
	ref := NewWebRef(uuid.New(), "5511999@c.us")
	b.StartConversation(ref, time.Now())

	assert.True(t, b.CloseConversation("5511999@c.us"))
	assert.Empty(t, b.ActiveOn)
	assert.False(t, b.CloseConversation("5511999@c.us"))
}

func TestBot_RefreshDeadlines(t *testing.T) {
	b := &Bot{Name: "welcome", ExpiryMinutes: 30, IdleMinutes: 10}
	ref := NewWebRef(uuid.New(), "5511999@c.us")
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	conv := b.StartConversation(ref, now)
	conv.IdleNotified = true

	b.RefreshDeadlines(conv, now)

	assert.Equal(t, now.Add(30*time.Minute).UnixMilli(), conv.ExpiresAt)
	assert.Equal(t, now.Add(10*time.Minute).UnixMilli(), conv.IdleAt)
	assert.Equal(t, now.UnixMilli(), conv.LastInteraction)
	assert.False(t, conv.IdleNotified, "tương tác mới cho phép nhắc idle lại")
}

func TestBot_RefreshDeadlines_ZeroMeansNoDeadline(t *testing.T) {
	b := &Bot{Name: "welcome"}
	conv := b.StartConversation(NewWebRef(uuid.New(), "k@c.us"), time.Now())

	b.RefreshDeadlines(conv, time.Now())
	assert.Zero(t, conv.ExpiresAt)
	assert.Zero(t, conv.IdleAt)
}

func TestBot_PauseLifecycle(t *testing.T) {
	b := &Bot{Name: "welcome"}
	ref := NewWebRef(uuid.New(), "5511999@c.us")
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	b.StartConversation(ref, now)

	b.Pause("5511999@c.us", 30*time.Minute, now)

	// Pause đóng luôn hội thoại đang chạy
	assert.Empty(t, b.ActiveOn)
	assert.True(t, b.IsPaused("5511999@c.us", now))

	// Lazy expiry: qua hạn thì pause coi như không tồn tại
	assert.False(t, b.IsPaused("5511999@c.us", now.Add(31*time.Minute)))

	// Pause lại ghi đè record cũ thay vì chồng thêm
	b.Pause("5511999@c.us", time.Hour, now)
	assert.Len(t, b.PausedOn, 1)

	assert.True(t, b.Unpause("5511999@c.us"))
	assert.False(t, b.IsPaused("5511999@c.us", now))
	assert.False(t, b.Unpause("5511999@c.us"))
}

func TestBot_PauseForever(t *testing.T) {
	b := &Bot{Name: "welcome"}
	now := time.Now()

	// Duration 0 = vô thời hạn
	b.Pause("k", 0, now)
	assert.True(t, b.IsPaused("k", now.Add(1000*time.Hour)))
}

func TestBot_BoundTo(t *testing.T) {
	instanceID := uuid.New()
	b := &Bot{
		Channels: ChannelBindings{{Kind: ChannelWAWeb, InstanceID: instanceID}},
	}

	assert.True(t, b.BoundTo(ChannelWAWeb, instanceID))
	assert.False(t, b.BoundTo(ChannelCloud, instanceID))
	assert.False(t, b.BoundTo(ChannelWAWeb, uuid.New()))
}

func TestBot_MarkMisconfiguredActions(t *testing.T) {
	deadBoard := uuid.New()
	liveBoard := uuid.New()

	b := &Bot{
		Flow: FlowGraph{
			Nodes: []FlowNode{
				{ID: "n1", Type: NodeMessage, Actions: []NodeActionSpec{
					{Kind: ActionRouteChat, RouteChat: &RouteChatSettings{BoardID: deadBoard}},
					{Kind: ActionRouteChat, RouteChat: &RouteChatSettings{BoardID: liveBoard}},
					{Kind: ActionEndConversation},
				}},
			},
		},
	}

	assert.True(t, b.MarkMisconfiguredActions(deadBoard))

	actions := b.Flow.Nodes[0].Actions
	assert.True(t, actions[0].Misconfigured)
	assert.False(t, actions[1].Misconfigured)
	assert.False(t, actions[2].Misconfigured)

	// Gọi lại với board không được tham chiếu: không có gì thay đổi
	assert.False(t, b.MarkMisconfiguredActions(uuid.New()))
}
