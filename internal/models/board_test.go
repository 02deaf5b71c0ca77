package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================================================================
// Tests cho ChannelRef và Board/Room/Chat
// ===========================================================================

func TestChannelRef_ConversationKey(t *testing.T) {
	instanceID := uuid.New()

	web := NewWebRef(instanceID, "5511999@c.us")
	assert.Equal(t, ChannelWAWeb, web.Kind)
	assert.Equal(t, "5511999@c.us", web.ConversationKey())

	cloud := NewCloudRef(instanceID, "5511999")
	assert.Equal(t, ChannelCloud, cloud.Kind)
	assert.Equal(t, "5511999", cloud.ConversationKey())
}

func TestChannelRef_SameConversation(t *testing.T) {
	instanceID := uuid.New()

	a := NewWebRef(instanceID, "5511999@c.us")
	b := NewWebRef(instanceID, "5511999@c.us")
	assert.True(t, a.SameConversation(b))

	// Khác instance = khác hội thoại dù cùng chat ID
	c := NewWebRef(uuid.New(), "5511999@c.us")
	assert.False(t, a.SameConversation(c))

	// Khác kind không bao giờ là cùng hội thoại
	d := NewCloudRef(instanceID, "5511999@c.us")
	assert.False(t, a.SameConversation(d))
}

func TestChannelRef_Valid(t *testing.T) {
	instanceID := uuid.New()

	assert.True(t, NewWebRef(instanceID, "x@c.us").Valid())
	assert.True(t, NewCloudRef(instanceID, "5511999").Valid())

	assert.False(t, NewWebRef(instanceID, "").Valid())
	assert.False(t, NewCloudRef(instanceID, "").Valid())
	assert.False(t, NewWebRef(uuid.Nil, "x@c.us").Valid())
	assert.False(t, ChannelRef{Kind: "sms", InstanceID: instanceID}.Valid())
}

func TestChat_ApplyMessage(t *testing.T) {
	chat := Chat{UnreadCount: 2}

	// Tin của khách tăng unread
	chat.ApplyMessage(MessageSnapshot{Text: "oi", Timestamp: 100})
	assert.Equal(t, 3, chat.UnreadCount)
	assert.Equal(t, "oi", chat.LastMessage.Text)

	// Tin của chính instance (agent trả lời) reset unread
	chat.ApplyMessage(MessageSnapshot{Text: "pois não?", FromMe: true, Timestamp: 200})
	assert.Equal(t, 0, chat.UnreadCount)
	assert.Equal(t, int64(200), chat.LastMessage.Timestamp)
}

func TestChat_MergeKeepsIdentity(t *testing.T) {
	id := uuid.New()
	ref := NewCloudRef(uuid.New(), "5511999")
	chat := Chat{ID: id, Name: "Maria", Channel: ref, UnreadCount: 1}

	incoming := Chat{
		ID:          uuid.New(),
		Name:        "Maria Silva",
		UnreadCount: 4,
		ProfilePic:  "https://pic",
		LastMessage: MessageSnapshot{Text: "novo", Timestamp: 300},
	}
	chat.Merge(&incoming)

	// ID và Channel giữ nguyên, các trường mutable được cập nhật
	assert.Equal(t, id, chat.ID)
	assert.Equal(t, ref, chat.Channel)
	assert.Equal(t, "Maria Silva", chat.Name)
	assert.Equal(t, 4, chat.UnreadCount)
	assert.Equal(t, "https://pic", chat.ProfilePic)

	// Trường rỗng không ghi đè
	chat.Merge(&Chat{LastMessage: MessageSnapshot{Text: "x"}})
	assert.Equal(t, "Maria Silva", chat.Name)
	assert.Equal(t, "https://pic", chat.ProfilePic)
}

func TestRoom_Ordering(t *testing.T) {
	a := Chat{ID: uuid.New(), Name: "a"}
	b := Chat{ID: uuid.New(), Name: "b"}

	room := Room{ID: uuid.New(), Name: "Entrada"}
	room.PushFront(a)
	room.PushFront(b)

	// Mới nhất trước
	assert.Equal(t, "b", room.Chats[0].Name)

	room.MoveToFront(a.ID)
	assert.Equal(t, "a", room.Chats[0].Name)

	assert.True(t, room.RemoveChat(b.ID))
	assert.False(t, room.RemoveChat(b.ID))
	assert.Len(t, room.Chats, 1)
}

// testBoard board hai rooms với một subscription waweb
func testBoard(instanceID uuid.UUID) *Board {
	entry := Room{ID: uuid.New(), Name: "Entrada", EntryPoint: true, Chats: []Chat{}}
	support := Room{ID: uuid.New(), Name: "Suporte", Chats: []Chat{}}
	return &Board{
		CompanyID:   uuid.New(),
		Name:        "Atendimento",
		EntryRoomID: entry.ID,
		Rooms:       Rooms{entry, support},
		Subscriptions: Subscriptions{
			{Kind: ChannelWAWeb, InstanceID: instanceID},
		},
	}
}

func TestBoard_ResolveRoom(t *testing.T) {
	board := testBoard(uuid.New())
	supportID := board.Rooms[1].ID

	room := board.ResolveRoom(&supportID)
	require.NotNil(t, room)
	assert.Equal(t, "Suporte", room.Name)

	// Room ID cũ/không tồn tại fallback về entry room
	stale := uuid.New()
	room = board.ResolveRoom(&stale)
	require.NotNil(t, room)
	assert.Equal(t, board.EntryRoomID, room.ID)

	room = board.ResolveRoom(nil)
	require.NotNil(t, room)
	assert.Equal(t, board.EntryRoomID, room.ID)
}

func TestBoard_EntryRoomFallsBackToFirst(t *testing.T) {
	board := testBoard(uuid.New())

	// entry_room_id trỏ đến room đã mất: dùng room đầu tiên
	board.EntryRoomID = uuid.New()
	room := board.EntryRoom()
	require.NotNil(t, room)
	assert.Equal(t, "Entrada", room.Name)

	board.Rooms = Rooms{}
	assert.Nil(t, board.EntryRoom())
}

func TestBoard_SubscriptionFor(t *testing.T) {
	instanceID := uuid.New()
	board := testBoard(instanceID)

	sub := board.SubscriptionFor(NewWebRef(instanceID, "x@c.us"))
	require.NotNil(t, sub)
	assert.Equal(t, instanceID, sub.InstanceID)

	// Cùng instance nhưng khác kind không khớp
	assert.Nil(t, board.SubscriptionFor(NewCloudRef(instanceID, "5511999")))
	assert.Nil(t, board.SubscriptionFor(NewWebRef(uuid.New(), "x@c.us")))
}

func TestBoard_FindChat(t *testing.T) {
	instanceID := uuid.New()
	board := testBoard(instanceID)
	ref := NewWebRef(instanceID, "5511999@c.us")

	board.Rooms[1].PushFront(Chat{ID: uuid.New(), Name: "Maria", Channel: ref})

	room, chat := board.FindChat(ref)
	require.NotNil(t, chat)
	assert.Equal(t, "Suporte", room.Name)
	assert.Equal(t, "Maria", chat.Name)

	room, chat = board.FindChat(NewWebRef(instanceID, "outro@c.us"))
	assert.Nil(t, room)
	assert.Nil(t, chat)
}

func TestBoard_RemoveInstanceChats(t *testing.T) {
	instanceID := uuid.New()
	otherInstance := uuid.New()
	board := testBoard(instanceID)

	board.Rooms[0].PushFront(Chat{ID: uuid.New(), Channel: NewWebRef(instanceID, "a@c.us")})
	board.Rooms[1].PushFront(Chat{ID: uuid.New(), Channel: NewWebRef(instanceID, "b@c.us")})
	board.Rooms[1].PushFront(Chat{ID: uuid.New(), Channel: NewWebRef(otherInstance, "c@c.us")})

	removed := board.RemoveInstanceChats(instanceID)
	assert.Equal(t, 2, removed)

	// Chat của instance khác không bị đụng
	assert.Len(t, board.Rooms[1].Chats, 1)
	assert.Equal(t, otherInstance, board.Rooms[1].Chats[0].Channel.InstanceID)
}

func TestBoard_DeleteRoomRefusesEntryRoom(t *testing.T) {
	board := testBoard(uuid.New())
	supportID := board.Rooms[1].ID

	assert.False(t, board.DeleteRoom(board.EntryRoomID))
	assert.Len(t, board.Rooms, 2)

	assert.True(t, board.DeleteRoom(supportID))
	assert.Len(t, board.Rooms, 1)
	assert.False(t, board.DeleteRoom(supportID))
}

func TestBoard_AddRoom(t *testing.T) {
	board := testBoard(uuid.New())
	room := board.AddRoom("Vendas")

	require.NotNil(t, room)
	assert.NotEqual(t, uuid.Nil, room.ID)
	assert.Equal(t, "Vendas", board.Rooms[len(board.Rooms)-1].Name)
}

func TestRooms_JSONBRoundTrip(t *testing.T) {
	instanceID := uuid.New()
	forwardBoard := uuid.New()
	forwardRoom := uuid.New()

	rooms := Rooms{
		{
			ID:         uuid.New(),
			Name:       "Entrada",
			EntryPoint: true,
			OnNewChat:  &ChatForward{BoardID: forwardBoard, RoomID: &forwardRoom},
			Chats: []Chat{
				{
					ID:         uuid.New(),
					Name:       "Maria",
					Phone:      "5511999",
					ProfilePic: "https://pic/maria.jpg",
					LastMessage: MessageSnapshot{
						ID:        "msg_1",
						Text:      "oi",
						Author:    "Maria",
						Timestamp: 1700000000000,
					},
					UnreadCount: 3,
					Channel:     NewWebRef(instanceID, "5511999@c.us"),
				},
				{
					ID:      uuid.New(),
					Name:    "Grupo Vendas",
					IsGroup: true,
					LastMessage: MessageSnapshot{
						Text:      "fechado!",
						FromMe:    true,
						Timestamp: 1700000001000,
					},
					Channel: NewCloudRef(instanceID, "5511888"),
				},
			},
		},
		{ID: uuid.New(), Name: "Suporte", Chats: []Chat{}},
	}

	// Ghi rồi đọc lại qua đường JSONB phải tái tạo đúng cấu trúc:
	// thứ tự rooms, thứ tự chats và mọi field của Chat
	value, err := rooms.Value()
	require.NoError(t, err)
	raw, ok := value.([]byte)
	require.True(t, ok)

	var loaded Rooms
	require.NoError(t, loaded.Scan(raw))
	assert.Equal(t, rooms, loaded)
}

func TestRooms_ScanNilYieldsEmpty(t *testing.T) {
	var loaded Rooms
	require.NoError(t, loaded.Scan(nil))
	assert.Empty(t, loaded)

	// Value của slice nil vẫn là "[]", không phải "null"
	value, err := Rooms(nil).Value()
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(value.([]byte)))
}

func TestSubscriptions_JSONBRoundTrip(t *testing.T) {
	roomID := uuid.New()
	subs := Subscriptions{
		{Kind: ChannelWAWeb, InstanceID: uuid.New(), RoomID: &roomID, UnreadOnly: true},
		{Kind: ChannelCloud, InstanceID: uuid.New()},
	}

	value, err := subs.Value()
	require.NoError(t, err)

	var loaded Subscriptions
	require.NoError(t, loaded.Scan(value.([]byte)))
	assert.Equal(t, subs, loaded)
}
