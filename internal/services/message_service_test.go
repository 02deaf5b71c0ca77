package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatboard/internal/bot"
	"chatboard/internal/channel"
	"chatboard/internal/models"
)

// ===========================================================================
// Tests cho Message Service (inbound routing pipeline)
// ===========================================================================

type messageFixture struct {
	instanceRepo *fakeInstanceRepo
	boardRepo    *fakeBoardRepo
	botRepo      *fakeBotRepo
	ovenRepo     *fakeOvenRepo
	registry     *channel.Registry
	publisher    *capturePublisher

	webAdapter   *channel.MockAdapter
	cloudAdapter *channel.MockAdapter

	companyID       uuid.UUID
	webInstanceID   uuid.UUID
	cloudInstanceID uuid.UUID

	svc MessageService
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()

	f := &messageFixture{
		instanceRepo:    &fakeInstanceRepo{},
		boardRepo:       &fakeBoardRepo{failUpdate: map[uuid.UUID]bool{}},
		botRepo:         &fakeBotRepo{},
		ovenRepo:        &fakeOvenRepo{},
		registry:        channel.NewRegistry(),
		publisher:       &capturePublisher{},
		companyID:       uuid.New(),
		webInstanceID:   uuid.New(),
		cloudInstanceID: uuid.New(),
	}

	f.webAdapter = channel.NewMockAdapter(models.ChannelWAWeb, f.webInstanceID, zap.NewNop())
	f.cloudAdapter = channel.NewMockAdapter(models.ChannelCloud, f.cloudInstanceID, zap.NewNop())
	f.registry.Register(f.webInstanceID, f.webAdapter)
	f.registry.Register(f.cloudInstanceID, f.cloudAdapter)

	for _, inst := range []*models.ChannelInstance{
		{CompanyID: f.companyID, Kind: models.ChannelWAWeb, Name: "web", IsActive: true},
		{CompanyID: f.companyID, Kind: models.ChannelCloud, Name: "cloud", IsActive: true},
	} {
		if inst.Kind == models.ChannelWAWeb {
			inst.ID = f.webInstanceID
		} else {
			inst.ID = f.cloudInstanceID
		}
		require.NoError(t, f.instanceRepo.Create(context.Background(), inst))
	}

	log := zap.NewNop()
	boardService := NewBoardService(f.boardRepo, f.botRepo, f.registry, f.publisher, log)
	ovenService := NewOvenService(f.ovenRepo, f.registry, f.publisher, log)
	botRuntime := bot.NewRuntime(f.botRepo, f.registry, f.publisher, boardService, ovenService, 0, log)
	f.svc = NewMessageService(f.instanceRepo, f.boardRepo, f.ovenRepo, boardService, botRuntime, f.publisher, log)
	return f
}

// newBoard tạo board subscribe instance waweb của fixture
func (f *messageFixture) newBoard(t *testing.T, name string) *models.Board {
	t.Helper()
	entry := models.Room{ID: uuid.New(), Name: "Entrada", EntryPoint: true, Chats: []models.Chat{}}
	board := &models.Board{
		CompanyID:   f.companyID,
		Name:        name,
		EntryRoomID: entry.ID,
		Rooms:       models.Rooms{entry},
		Subscriptions: models.Subscriptions{
			{Kind: models.ChannelWAWeb, InstanceID: f.webInstanceID},
		},
	}
	require.NoError(t, f.boardRepo.Create(context.Background(), board))
	return board
}

func (f *messageFixture) webEvent(text string) channel.InboundEvent {
	return channel.InboundEvent{
		Type:       channel.EventMessage,
		Channel:    models.NewWebRef(f.webInstanceID, "5511999@c.us"),
		SenderName: "Maria",
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
	}
}

func TestMessageService_UnknownInstanceErrors(t *testing.T) {
	f := newMessageFixture(t)

	ev := f.webEvent("oi")
	ev.Channel = models.NewWebRef(uuid.New(), "5511999@c.us")

	_, err := f.svc.ProcessInbound(context.Background(), ev)
	assert.Error(t, err)
}

func TestMessageService_AckPublishesOnly(t *testing.T) {
	f := newMessageFixture(t)
	board := f.newBoard(t, "Atendimento")

	ev := f.webEvent("")
	ev.Type = channel.EventAck
	ev.MessageID = "msg_1"
	ev.AckStatus = "read"

	result, err := f.svc.ProcessInbound(context.Background(), ev)
	require.NoError(t, err)

	// Ack không đụng board/bot state, chỉ phát realtime
	assert.False(t, result.BotHandled)
	assert.Zero(t, result.BoardsPlaced)
	assert.Contains(t, f.publisher.eventNames(), "message:ack")
	assert.Empty(t, f.boardRepo.mustGet(t, board.ID).Rooms[0].Chats)
}

func TestMessageService_BotsThenBoards(t *testing.T) {
	f := newMessageFixture(t)
	board := f.newBoard(t, "Atendimento")

	b := &models.Bot{
		CompanyID: f.companyID,
		Name:      "welcome",
		Trigger:   "oi",
		Flow: models.FlowGraph{
			Nodes: []models.FlowNode{
				{ID: "n1", Type: models.NodeMessage, Value: "Olá!"},
				{ID: "n2", Type: models.NodeResponse, Value: "sim"},
			},
			Edges: []models.FlowEdge{{Source: "n1", Target: "n2"}},
		},
		Channels: models.ChannelBindings{
			{Kind: models.ChannelWAWeb, InstanceID: f.webInstanceID},
		},
	}
	require.NoError(t, f.botRepo.Create(context.Background(), b))

	result, err := f.svc.ProcessInbound(context.Background(), f.webEvent("oi"))
	require.NoError(t, err)

	// Bot intercept và board placement đều chạy: không loại trừ nhau
	assert.True(t, result.BotHandled)
	assert.Equal(t, 1, result.BoardsPlaced)

	sent := f.webAdapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Olá!", sent[0].Text)

	saved := f.boardRepo.mustGet(t, board.ID)
	require.Len(t, saved.Rooms[0].Chats, 1)
	chat := saved.Rooms[0].Chats[0]
	assert.Equal(t, "Maria", chat.Name)
	assert.Equal(t, "5511999", chat.Phone)
	assert.Equal(t, 1, chat.UnreadCount)
}

func TestMessageService_BoardErrorIsIsolated(t *testing.T) {
	f := newMessageFixture(t)
	broken := f.newBoard(t, "Quebrado")
	healthy := f.newBoard(t, "Saudável")
	f.boardRepo.failUpdate[broken.ID] = true

	result, err := f.svc.ProcessInbound(context.Background(), f.webEvent("oi"))
	require.NoError(t, err)

	// Lỗi một board không chặn board còn lại
	assert.Equal(t, 1, result.BoardsPlaced)
	assert.Len(t, f.boardRepo.mustGet(t, healthy.ID).Rooms[0].Chats, 1)
	assert.Empty(t, f.boardRepo.mustGet(t, broken.ID).Rooms[0].Chats)
}

func TestMessageService_SenderNameFallsBackToKey(t *testing.T) {
	f := newMessageFixture(t)
	board := f.newBoard(t, "Atendimento")

	ev := f.webEvent("oi")
	ev.SenderName = ""

	_, err := f.svc.ProcessInbound(context.Background(), ev)
	require.NoError(t, err)

	saved := f.boardRepo.mustGet(t, board.ID)
	require.Len(t, saved.Rooms[0].Chats, 1)
	assert.Equal(t, "5511999@c.us", saved.Rooms[0].Chats[0].Name)
}

func TestMessageService_CloudOptOutKeyword(t *testing.T) {
	f := newMessageFixture(t)

	oven := &models.Oven{
		CompanyID:         f.companyID,
		ChannelInstanceID: f.cloudInstanceID,
		Name:              "Campanha",
		BlacklistTrigger:  "sair",
	}
	require.NoError(t, f.ovenRepo.Create(context.Background(), oven))

	ev := channel.InboundEvent{
		Type:       channel.EventMessage,
		Channel:    models.NewCloudRef(f.cloudInstanceID, "5511888"),
		SenderName: "João",
		Text:       "SAIR!!!",
		Timestamp:  time.Now().UnixMilli(),
	}

	result, err := f.svc.ProcessInbound(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, result.BotHandled)

	// Keyword khớp sau normalize: số vào blacklist của oven
	saved := f.ovenRepo.mustGet(t, oven.ID)
	assert.True(t, saved.Blacklist.Contains("5511888"))
	assert.Contains(t, f.publisher.eventNames(), "oven:blacklist")
}

func TestMessageService_NonKeywordDoesNotBlacklist(t *testing.T) {
	f := newMessageFixture(t)

	oven := &models.Oven{
		CompanyID:         f.companyID,
		ChannelInstanceID: f.cloudInstanceID,
		Name:              "Campanha",
		BlacklistTrigger:  "sair",
	}
	require.NoError(t, f.ovenRepo.Create(context.Background(), oven))

	ev := channel.InboundEvent{
		Type:      channel.EventMessage,
		Channel:   models.NewCloudRef(f.cloudInstanceID, "5511888"),
		Text:      "quero sair de casa",
		Timestamp: time.Now().UnixMilli(),
	}

	_, err := f.svc.ProcessInbound(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, f.ovenRepo.mustGet(t, oven.ID).Blacklist.Contains("5511888"))
}
