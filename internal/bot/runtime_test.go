package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatboard/internal/channel"
	"chatboard/internal/models"
)

// ===========================================================================
// Tests cho bot runtime
// ===========================================================================

// cloneBot copy bot với slices riêng, mô phỏng row tách biệt từ DB
func cloneBot(b models.Bot) models.Bot {
	b.ActiveOn = append(models.ActiveConversations(nil), b.ActiveOn...)
	b.PausedOn = append(models.PausedConversations(nil), b.PausedOn...)
	b.Channels = append(models.ChannelBindings(nil), b.Channels...)
	return b
}

// fakeBotRepo in-memory BotRepository cho tests
type fakeBotRepo struct {
	mu   sync.Mutex
	bots []models.Bot
}

func (r *fakeBotRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.bots {
		if r.bots[i].ID == id {
			b := cloneBot(r.bots[i])
			return &b, nil
		}
	}
	return nil, fmt.Errorf("bot %s not found", id)
}

func (r *fakeBotRepo) FindByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Bot
	for i := range r.bots {
		if r.bots[i].CompanyID == companyID {
			result = append(result, cloneBot(r.bots[i]))
		}
	}
	return result, nil
}

func (r *fakeBotRepo) FindAll(ctx context.Context) ([]models.Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]models.Bot, 0, len(r.bots))
	for i := range r.bots {
		result = append(result, cloneBot(r.bots[i]))
	}
	return result, nil
}

func (r *fakeBotRepo) Create(ctx context.Context, b *models.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.bots = append(r.bots, cloneBot(*b))
	return nil
}

func (r *fakeBotRepo) Update(ctx context.Context, b *models.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.bots {
		if r.bots[i].ID == b.ID {
			r.bots[i] = cloneBot(*b)
			return nil
		}
	}
	return fmt.Errorf("bot %s not found", b.ID)
}

func (r *fakeBotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.bots {
		if r.bots[i].ID == id {
			r.bots = append(r.bots[:i], r.bots[i+1:]...)
			return nil
		}
	}
	return nil
}

// mustGet lấy bot theo ID, fail test nếu không có
func (r *fakeBotRepo) mustGet(t *testing.T, id uuid.UUID) *models.Bot {
	t.Helper()
	b, err := r.FindByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

// ===========================================================================
// Fixture
// ===========================================================================

type runtimeFixture struct {
	repo      *fakeBotRepo
	registry  *channel.Registry
	adapter   *channel.MockAdapter
	publisher *capturePublisher
	router    *fakeRouter

	companyID  uuid.UUID
	instanceID uuid.UUID

	rt     *Runtime
	now    time.Time
	sleeps []time.Duration
}

func newRuntimeFixture(t *testing.T) *runtimeFixture {
	t.Helper()

	f := &runtimeFixture{
		repo:       &fakeBotRepo{},
		registry:   channel.NewRegistry(),
		publisher:  &capturePublisher{},
		router:     &fakeRouter{},
		companyID:  uuid.New(),
		instanceID: uuid.New(),
		now:        time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}

	f.adapter = channel.NewMockAdapter(models.ChannelWAWeb, f.instanceID, zap.NewNop())
	f.registry.Register(f.instanceID, f.adapter)

	f.rt = NewRuntime(f.repo, f.registry, f.publisher, f.router, &fakeBlacklister{}, 2*time.Second, zap.NewNop())
	f.rt.now = func() time.Time { return f.now }
	f.rt.sleep = func(d time.Duration) { f.sleeps = append(f.sleeps, d) }

	return f
}

// newBot tạo bot trigger "oi" với menuFlow, bound vào instance của fixture
func (f *runtimeFixture) newBot(t *testing.T, name string) *models.Bot {
	t.Helper()
	b := &models.Bot{
		CompanyID: f.companyID,
		Name:      name,
		Trigger:   "oi;ola",
		Flow:      menuFlow(),
		Channels: models.ChannelBindings{
			{Kind: models.ChannelWAWeb, InstanceID: f.instanceID},
		},
	}
	require.NoError(t, f.repo.Create(context.Background(), b))
	return b
}

func (f *runtimeFixture) ref() models.ChannelRef {
	return models.NewWebRef(f.instanceID, "5511999@c.us")
}

func (f *runtimeFixture) event(text string) channel.InboundEvent {
	return channel.InboundEvent{
		Type:       channel.EventMessage,
		Channel:    f.ref(),
		SenderName: "Maria",
		Text:       text,
		Timestamp:  f.now.UnixMilli(),
	}
}

// seedConversation ghi một hội thoại đang đứng tại nodeID vào repo
func (f *runtimeFixture) seedConversation(t *testing.T, botID uuid.UUID, nodeID string) {
	t.Helper()
	b := f.repo.mustGet(t, botID)
	conv := b.StartConversation(f.ref(), f.now)
	conv.CurrentNodeID = nodeID
	require.NoError(t, f.repo.Update(context.Background(), b))
}

// ===========================================================================
// Inbound handling
// ===========================================================================

func TestRuntime_TriggerStartsConversation(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")

	handled := f.rt.HandleInbound(context.Background(), f.companyID, f.event("Oi!"))
	assert.False(t, handled, "exact match không chấp nhận dấu chấm than")

	handled = f.rt.HandleInbound(context.Background(), f.companyID, f.event("oi"))
	require.True(t, handled)

	// Root node gửi đi, hội thoại đứng tại n1 chờ trả lời
	sent := f.adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Como podemos ajudar?", sent[0].Text)

	saved := f.repo.mustGet(t, b.ID)
	require.Len(t, saved.ActiveOn, 1)
	assert.Equal(t, "n1", saved.ActiveOn[0].CurrentNodeID)
	assert.Equal(t, int64(1), saved.Triggered)
	assert.Contains(t, f.publisher.eventNames(), "bot:activity")
}

func TestRuntime_IgnoresUnmatchedText(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")

	handled := f.rt.HandleInbound(context.Background(), f.companyID, f.event("tchau"))
	assert.False(t, handled)
	assert.Empty(t, f.adapter.Sent())
	assert.Empty(t, f.repo.mustGet(t, b.ID).ActiveOn)
}

func TestRuntime_SkipsAcksOwnMessagesAndGroups(t *testing.T) {
	f := newRuntimeFixture(t)
	f.newBot(t, "welcome")

	ack := f.event("oi")
	ack.Type = channel.EventAck
	assert.False(t, f.rt.HandleInbound(context.Background(), f.companyID, ack))

	fromMe := f.event("oi")
	fromMe.FromMe = true
	assert.False(t, f.rt.HandleInbound(context.Background(), f.companyID, fromMe))

	group := f.event("oi")
	group.IsGroup = true
	assert.False(t, f.rt.HandleInbound(context.Background(), f.companyID, group))

	assert.Empty(t, f.adapter.Sent())
}

func TestRuntime_UnboundInstanceIgnored(t *testing.T) {
	f := newRuntimeFixture(t)
	f.newBot(t, "welcome")

	other := uuid.New()
	f.registry.Register(other, channel.NewMockAdapter(models.ChannelWAWeb, other, zap.NewNop()))

	ev := f.event("oi")
	ev.Channel = models.NewWebRef(other, "5511999@c.us")

	assert.False(t, f.rt.HandleInbound(context.Background(), f.companyID, ev))
}

func TestRuntime_AnswerAdvancesAndClosesAtDeadEnd(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	f.seedConversation(t, b.ID, "n1")

	handled := f.rt.HandleInbound(context.Background(), f.companyID, f.event("suporte"))
	require.True(t, handled)

	sent := f.adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Encaminhando para o suporte.", sent[0].Text)

	// n3 là dead end: hội thoại đóng sau khi gửi
	assert.Empty(t, f.repo.mustGet(t, b.ID).ActiveOn)
}

func TestRuntime_SleepsBetweenConsecutiveMessages(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	f.seedConversation(t, b.ID, "n1")

	require.True(t, f.rt.HandleInbound(context.Background(), f.companyID, f.event("vendas")))

	// n5 và n6 trong một lượt: nghỉ delay trước tin thứ hai
	require.Len(t, f.adapter.Sent(), 2)
	assert.Equal(t, []time.Duration{2 * time.Second}, f.sleeps)
}

func TestRuntime_FallbackDoesNotMutateState(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	f.seedConversation(t, b.ID, "n1")

	require.True(t, f.rt.HandleInbound(context.Background(), f.companyID, f.event("xyz")))

	sent := f.adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Não entendi. As opções são:\n* suporte\n* vendas", sent[0].Text)

	saved := f.repo.mustGet(t, b.ID)
	require.Len(t, saved.ActiveOn, 1)
	assert.Equal(t, "n1", saved.ActiveOn[0].CurrentNodeID)
}

func TestRuntime_ResetKeywordClosesConversation(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	f.seedConversation(t, b.ID, "n1")

	// Reset check chạy trên text đã normalize
	require.True(t, f.rt.HandleInbound(context.Background(), f.companyID, f.event("Reset!")))

	sent := f.adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bot reiniciado", sent[0].Text)

	assert.Empty(t, f.repo.mustGet(t, b.ID).ActiveOn)
	assert.Contains(t, f.publisher.eventNames(), "bot:reset")
}

func TestRuntime_ResetWithoutConversationDoesNothing(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")

	// Không có hội thoại: "reset" chỉ là text thường, không khớp trigger
	assert.False(t, f.rt.HandleInbound(context.Background(), f.companyID, f.event("reset")))
	assert.Empty(t, f.adapter.Sent())
	assert.Empty(t, f.repo.mustGet(t, b.ID).ActiveOn)
}

func TestRuntime_PausedChatSkippedUntilExpiry(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")

	seeded := f.repo.mustGet(t, b.ID)
	seeded.Pause(f.ref().ConversationKey(), 10*time.Minute, f.now)
	require.NoError(t, f.repo.Update(context.Background(), seeded))

	assert.False(t, f.rt.HandleInbound(context.Background(), f.companyID, f.event("oi")))
	assert.Empty(t, f.adapter.Sent())

	// Lazy expiry: qua hạn pause thì trigger hoạt động lại, không cần sweep
	f.now = f.now.Add(11 * time.Minute)
	assert.True(t, f.rt.HandleInbound(context.Background(), f.companyID, f.event("oi")))
	assert.Len(t, f.adapter.Sent(), 1)
}

func TestRuntime_FirstActiveFlowWins(t *testing.T) {
	f := newRuntimeFixture(t)

	holder := f.newBot(t, "holder")
	f.seedConversation(t, holder.ID, "n1")

	// Bot thứ hai có trigger khớp chính câu trả lời của bot thứ nhất
	rival := &models.Bot{
		CompanyID: f.companyID,
		Name:      "rival",
		Trigger:   "suporte",
		Flow:      menuFlow(),
		Channels: models.ChannelBindings{
			{Kind: models.ChannelWAWeb, InstanceID: f.instanceID},
		},
	}
	require.NoError(t, f.repo.Create(context.Background(), rival))

	// Giữ hội thoại của holder sống sau câu trả lời: n3 có response con
	seeded := f.repo.mustGet(t, holder.ID)
	seeded.Flow.Nodes = append(seeded.Flow.Nodes, models.FlowNode{ID: "n7", Type: models.NodeResponse, Value: "sim"})
	seeded.Flow.Edges = append(seeded.Flow.Edges, models.FlowEdge{Source: "n3", Target: "n7"})
	require.NoError(t, f.repo.Update(context.Background(), seeded))

	require.True(t, f.rt.HandleInbound(context.Background(), f.companyID, f.event("suporte")))

	// Holder tiến đến n3; rival nhường dù trigger khớp
	savedHolder := f.repo.mustGet(t, holder.ID)
	require.Len(t, savedHolder.ActiveOn, 1)
	assert.Equal(t, "n3", savedHolder.ActiveOn[0].CurrentNodeID)

	assert.Empty(t, f.repo.mustGet(t, rival.ID).ActiveOn)
	assert.Equal(t, int64(0), f.repo.mustGet(t, rival.ID).Triggered)
}

// ===========================================================================
// Pause / unpause qua API
// ===========================================================================

func TestRuntime_PauseAndUnpause(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	chatKey := f.ref().ConversationKey()

	require.NoError(t, f.rt.Pause(context.Background(), b.ID, chatKey, 30*time.Minute))
	assert.True(t, f.repo.mustGet(t, b.ID).IsPaused(chatKey, f.now))
	assert.Contains(t, f.publisher.eventNames(), "bot:paused")

	require.NoError(t, f.rt.Unpause(context.Background(), b.ID, chatKey))
	assert.False(t, f.repo.mustGet(t, b.ID).IsPaused(chatKey, f.now))
	assert.Contains(t, f.publisher.eventNames(), "bot:unpaused")
}

// ===========================================================================
// Sweep
// ===========================================================================

func TestRuntime_SweepExpiryNotifiesAndCloses(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	f.seedConversation(t, b.ID, "n1")

	seeded := f.repo.mustGet(t, b.ID)
	seeded.ActiveOn[0].ExpiresAt = f.now.Add(-time.Minute).UnixMilli()
	require.NoError(t, f.repo.Update(context.Background(), seeded))

	f.rt.Sweep(context.Background())

	sent := f.adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Esta conversa expirou. Quando quiser, comece de novo.", sent[0].Text)
	assert.Empty(t, f.repo.mustGet(t, b.ID).ActiveOn)
}

func TestRuntime_SweepUsesConfiguredExpiryMessage(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")

	seeded := f.repo.mustGet(t, b.ID)
	seeded.ExpiryMessage = "Tempo esgotado."
	conv := seeded.StartConversation(f.ref(), f.now)
	conv.ExpiresAt = f.now.Add(-time.Second).UnixMilli()
	require.NoError(t, f.repo.Update(context.Background(), seeded))

	f.rt.Sweep(context.Background())

	sent := f.adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Tempo esgotado.", sent[0].Text)
}

func TestRuntime_SweepIdleNudgesOnce(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	f.seedConversation(t, b.ID, "n1")

	seeded := f.repo.mustGet(t, b.ID)
	seeded.ActiveOn[0].IdleAt = f.now.Add(-time.Minute).UnixMilli()
	require.NoError(t, f.repo.Update(context.Background(), seeded))

	f.rt.Sweep(context.Background())

	sent := f.adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Ainda está aí? Responda para continuar.", sent[0].Text)

	// Hội thoại vẫn sống, chỉ đánh dấu đã nhắc
	saved := f.repo.mustGet(t, b.ID)
	require.Len(t, saved.ActiveOn, 1)
	assert.True(t, saved.ActiveOn[0].IdleNotified)

	// Sweep lần hai không nhắc lại
	f.rt.Sweep(context.Background())
	assert.Len(t, f.adapter.Sent(), 1)
}

func TestRuntime_SweepClosesInvalidBindingsSilently(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	f.seedConversation(t, b.ID, "n1")

	// Binding bị gỡ khỏi bot: hội thoại mồ côi, đóng không thông báo
	seeded := f.repo.mustGet(t, b.ID)
	seeded.Channels = models.ChannelBindings{}
	require.NoError(t, f.repo.Update(context.Background(), seeded))

	f.rt.Sweep(context.Background())

	assert.Empty(t, f.adapter.Sent())
	assert.Empty(t, f.repo.mustGet(t, b.ID).ActiveOn)
}

func TestRuntime_SweepClosesWhenAdapterGone(t *testing.T) {
	f := newRuntimeFixture(t)
	b := f.newBot(t, "welcome")
	f.seedConversation(t, b.ID, "n1")

	f.registry.Remove(f.instanceID)

	f.rt.Sweep(context.Background())

	assert.Empty(t, f.repo.mustGet(t, b.ID).ActiveOn)
}
