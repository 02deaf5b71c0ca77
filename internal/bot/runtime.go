package bot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatboard/internal/channel"
	"chatboard/internal/models"
	"chatboard/internal/realtime"
	"chatboard/internal/repositories"
)

// ===========================================================================
// Bot runtime
// Điều phối các bots của một company trên mỗi inbound message:
// exclusivity giữa các bots, pause/reset, advance flow và gửi replies
// Sweep định kỳ xử lý expiry/idle deadlines đã persist trên conversation
// ===========================================================================

// resetKeyword từ khóa đóng hội thoại, check độc lập với trigger của bot
const resetKeyword = "reset"

// resetAck tin xác nhận khi khách gõ reset
const resetAck = "bot reiniciado"

// defaultExpiryMessage tin báo hết hạn mặc định
const defaultExpiryMessage = "Esta conversa expirou. Quando quiser, comece de novo."

// defaultIdleMessage idle nudge mặc định
const defaultIdleMessage = "Ainda está aí? Responda para continuar."

// Runtime chạy các flow bots trên inbound messages
type Runtime struct {
	bots        repositories.BotRepository
	adapters    *channel.Registry
	publisher   realtime.Publisher
	router      ChatRouter
	blacklister Blacklister
	logger      *zap.Logger

	// delay khoảng nghỉ giữa hai tin liên tiếp của cùng một lượt advance
	delay time.Duration

	// now và sleep tách ra để tests điều khiển được thời gian
	now   func() time.Time
	sleep func(time.Duration)
}

// NewRuntime tạo bot runtime
func NewRuntime(
	bots repositories.BotRepository,
	adapters *channel.Registry,
	publisher realtime.Publisher,
	router ChatRouter,
	blacklister Blacklister,
	delay time.Duration,
	logger *zap.Logger,
) *Runtime {
	return &Runtime{
		bots:        bots,
		adapters:    adapters,
		publisher:   publisher,
		router:      router,
		blacklister: blacklister,
		logger:      logger,
		delay:       delay,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// ===========================================================================
// Inbound handling
// ===========================================================================

// HandleInbound cho mọi bot của company cơ hội intercept message
// Trả về true nếu có ít nhất một bot xử lý (board placement vẫn chạy
// vô điều kiện ở phía caller)
func (r *Runtime) HandleInbound(ctx context.Context, companyID uuid.UUID, ev channel.InboundEvent) bool {
	if ev.Type != channel.EventMessage || ev.FromMe || ev.IsGroup {
		return false
	}

	bots, err := r.bots.FindByCompany(ctx, companyID)
	if err != nil {
		r.logger.Error("load bots failed", zap.String("company_id", companyID.String()), zap.Error(err))
		return false
	}

	var bound []*models.Bot
	for i := range bots {
		if bots[i].BoundTo(ev.Channel.Kind, ev.Channel.InstanceID) {
			bound = append(bound, &bots[i])
		}
	}
	if len(bound) == 0 {
		return false
	}

	chatKey := ev.Channel.ConversationKey()
	handled := false
	for i, b := range bound {
		// First-active-flow-wins: bot khác đang giữ hội thoại thì bot này nhường
		othersActive := false
		for j, other := range bound {
			if j != i && other.ActiveConversationFor(chatKey) != nil {
				othersActive = true
				break
			}
		}
		if r.handleBot(ctx, b, othersActive, ev) {
			handled = true
		}
	}
	return handled
}

// handleBot chạy state machine của một bot cho một inbound message
func (r *Runtime) handleBot(ctx context.Context, b *models.Bot, othersActive bool, ev channel.InboundEvent) bool {
	chatKey := ev.Channel.ConversationKey()
	now := r.now()

	if othersActive {
		return false
	}
	if b.IsPaused(chatKey, now) {
		return false
	}

	adapter, err := r.adapters.Get(ev.Channel.InstanceID)
	if err != nil {
		r.logger.Warn("bot skipped, no adapter for instance",
			zap.String("bot", b.Name),
			zap.String("instance_id", ev.Channel.InstanceID.String()),
		)
		return false
	}

	conv := b.ActiveConversationFor(chatKey)
	if conv == nil {
		if _, ok := MatchTrigger(ev.Text, b.Trigger, b.FuzzyThreshold); !ok {
			return false
		}
		conv = b.StartConversation(ev.Channel, now)
		r.logger.Info("bot triggered",
			zap.String("bot", b.Name),
			zap.String("chat_key", chatKey),
		)
	} else if Normalize(ev.Text) == resetKeyword {
		b.CloseConversation(chatKey)
		r.send(ctx, adapter, ev.Channel, resetAck)
		r.save(ctx, b)
		r.publishState(b, chatKey, "bot:reset")
		return true
	}

	result := Advance(&b.Flow, conv, ev.Text, b.FuzzyThreshold)

	if result.LoopDetected {
		r.logger.Warn("flow loop guard tripped, closing conversation",
			zap.String("bot", b.Name),
			zap.String("chat_key", chatKey),
		)
	}

	for i, node := range result.Messages {
		if i > 0 {
			r.sleep(r.delay)
		}
		if err := r.deliver(ctx, adapter, ev.Channel, node); err != nil {
			r.logger.Error("bot reply delivery failed",
				zap.String("bot", b.Name),
				zap.String("node_id", node.ID),
				zap.Error(err),
			)
			continue
		}
		r.runActions(ctx, b, node, ev, now)
	}

	if result.Fallback != "" {
		r.send(ctx, adapter, ev.Channel, result.Fallback)
	}

	if result.Closed {
		b.CloseConversation(chatKey)
	} else if b.ActiveConversationFor(chatKey) != nil {
		// Actions có thể đã đóng hội thoại (bot:end); chỉ refresh khi còn sống
		b.RefreshDeadlines(conv, now)
	}

	r.save(ctx, b)
	r.publishState(b, chatKey, "bot:activity")
	return true
}

// deliver gửi một message node: media nếu có, ngược lại text
func (r *Runtime) deliver(ctx context.Context, adapter channel.Adapter, ref models.ChannelRef, node *models.FlowNode) error {
	if node.Media != nil {
		_, err := adapter.SendMedia(ctx, ref, node.Media, node.Value)
		return err
	}
	_, err := adapter.SendText(ctx, ref, node.Value)
	return err
}

// send gửi text thuần, lỗi chỉ log
func (r *Runtime) send(ctx context.Context, adapter channel.Adapter, ref models.ChannelRef, text string) {
	if _, err := adapter.SendText(ctx, ref, text); err != nil {
		r.logger.Error("bot send failed",
			zap.String("chat_key", ref.ConversationKey()),
			zap.Error(err),
		)
	}
}

// runActions chạy các side-effect actions của node sau khi node được gửi
func (r *Runtime) runActions(ctx context.Context, b *models.Bot, node *models.FlowNode, ev channel.InboundEvent, now time.Time) {
	for _, spec := range node.Actions {
		action, err := DecodeAction(spec)
		if err != nil {
			r.logger.Error("node action decode failed",
				zap.String("bot", b.Name),
				zap.String("node_id", node.ID),
				zap.Error(err),
			)
			continue
		}
		env := &ActionEnv{
			Ctx:         ctx,
			Bot:         b,
			Ref:         ev.Channel,
			SenderName:  ev.SenderName,
			Now:         now,
			Router:      r.router,
			Blacklister: r.blacklister,
			Publisher:   r.publisher,
			Logger:      r.logger,
		}
		if err := action.Execute(env); err != nil {
			r.logger.Error("node action failed",
				zap.String("bot", b.Name),
				zap.String("kind", string(action.Kind())),
				zap.Error(err),
			)
		}
	}
}

// ===========================================================================
// Pause / unpause
// ===========================================================================

// Pause tạm dừng bot cho một chat (duration 0 = vô thời hạn)
func (r *Runtime) Pause(ctx context.Context, botID uuid.UUID, chatKey string, duration time.Duration) error {
	b, err := r.bots.FindByID(ctx, botID)
	if err != nil {
		return err
	}
	b.Pause(chatKey, duration, r.now())
	if err := r.bots.Update(ctx, b); err != nil {
		return err
	}
	r.publishState(b, chatKey, "bot:paused")
	return nil
}

// Unpause gỡ pause cho một chat
func (r *Runtime) Unpause(ctx context.Context, botID uuid.UUID, chatKey string) error {
	b, err := r.bots.FindByID(ctx, botID)
	if err != nil {
		return err
	}
	b.Unpause(chatKey)
	if err := r.bots.Update(ctx, b); err != nil {
		return err
	}
	r.publishState(b, chatKey, "bot:unpaused")
	return nil
}

// ===========================================================================
// Expiry / idle sweep
// ===========================================================================

// Sweep quét mọi bot, xử lý các hội thoại đã quá expiry/idle deadline
// Deadline nằm trên ActiveConversation trong storage nên sweep hoạt động
// đúng cả sau khi process restart
func (r *Runtime) Sweep(ctx context.Context) {
	bots, err := r.bots.FindAll(ctx)
	if err != nil {
		r.logger.Error("sweep: load bots failed", zap.Error(err))
		return
	}

	now := r.now()
	nowMs := now.UnixMilli()

	for i := range bots {
		b := &bots[i]
		changed := false
		var toClose []string

		for j := range b.ActiveOn {
			conv := &b.ActiveOn[j]

			// Binding không còn hợp lệ = đóng ngầm, không phải lỗi
			if !b.BoundTo(conv.Channel.Kind, conv.Channel.InstanceID) || !r.adapters.Has(conv.Channel.InstanceID) {
				toClose = append(toClose, conv.ChatKey)
				changed = true
				continue
			}

			if conv.ExpiresAt > 0 && nowMs >= conv.ExpiresAt {
				r.notify(ctx, conv.Channel, b.ExpiryMessage, defaultExpiryMessage)
				toClose = append(toClose, conv.ChatKey)
				changed = true
				continue
			}

			if conv.IdleAt > 0 && !conv.IdleNotified && nowMs >= conv.IdleAt {
				r.notify(ctx, conv.Channel, b.IdleMessage, defaultIdleMessage)
				conv.IdleNotified = true
				changed = true
			}
		}

		for _, key := range toClose {
			b.CloseConversation(key)
		}

		if changed {
			if err := r.bots.Update(ctx, b); err != nil {
				r.logger.Error("sweep: save bot failed",
					zap.String("bot", b.Name),
					zap.Error(err),
				)
			}
		}
	}
}

// notify gửi tin expiry/idle, dùng message mặc định khi bot không cấu hình
func (r *Runtime) notify(ctx context.Context, ref models.ChannelRef, message, fallback string) {
	adapter, err := r.adapters.Get(ref.InstanceID)
	if err != nil {
		return
	}
	if message == "" {
		message = fallback
	}
	r.send(ctx, adapter, ref, message)
}

// ===========================================================================
// Helpers
// ===========================================================================

// save persist bot state, lỗi chỉ log (at-most-once durability)
func (r *Runtime) save(ctx context.Context, b *models.Bot) {
	if err := r.bots.Update(ctx, b); err != nil {
		r.logger.Error("save bot state failed",
			zap.String("bot", b.Name),
			zap.Error(err),
		)
	}
}

// publishState phát realtime event theo chat topic
func (r *Runtime) publishState(b *models.Bot, chatKey, event string) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(realtime.ChatTopic(chatKey), event, map[string]interface{}{
		"bot_id":   b.ID,
		"chat_key": chatKey,
	}); err != nil {
		r.logger.Debug("publish bot state failed", zap.Error(err))
	}
}
