package services

import (
	"context"
	"time"

	"chatboard/internal/bot"
	"chatboard/internal/channel"
	"chatboard/internal/models"
	"chatboard/internal/realtime"
	"chatboard/internal/repositories"

	"go.uber.org/zap"
)

// ===========================================================================
// Message Service Implementation
// Xử lý toàn bộ luồng định tuyến inbound events
// ===========================================================================

// messageService triển khai MessageService
type messageService struct {
	instanceRepo repositories.ChannelInstanceRepository
	boardRepo    repositories.BoardRepository
	ovenRepo     repositories.OvenRepository
	boardService BoardService
	botRuntime   *bot.Runtime
	publisher    realtime.Publisher
	logger       *zap.Logger

	now func() time.Time
}

// NewMessageService tạo instance mới của MessageService
func NewMessageService(
	instanceRepo repositories.ChannelInstanceRepository,
	boardRepo repositories.BoardRepository,
	ovenRepo repositories.OvenRepository,
	boardService BoardService,
	botRuntime *bot.Runtime,
	publisher realtime.Publisher,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		instanceRepo: instanceRepo,
		boardRepo:    boardRepo,
		ovenRepo:     ovenRepo,
		boardService: boardService,
		botRuntime:   botRuntime,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// ProcessInbound định tuyến một normalized inbound event
func (s *messageService) ProcessInbound(ctx context.Context, ev channel.InboundEvent) (*RouteResult, error) {
	// 1. Resolve company sở hữu instance
	instance, err := s.instanceRepo.FindByID(ctx, ev.Channel.InstanceID)
	if err != nil {
		return nil, err
	}
	result := &RouteResult{CompanyID: instance.CompanyID}

	// 2. Delivery acks chỉ cập nhật realtime, không đụng board/bot state
	if ev.Type == channel.EventAck {
		s.publish(realtime.ChatTopic(ev.Channel.ConversationKey()), "message:ack", map[string]interface{}{
			"message_id": ev.MessageID,
			"status":     ev.AckStatus,
		})
		return result, nil
	}

	// 3. Opt-out keyword của oven (chỉ kênh cloud)
	if ev.Channel.Kind == models.ChannelCloud && !ev.FromMe {
		s.checkBlacklistTrigger(ctx, ev)
	}

	// 4. Bots có quyền từ chối trước; replies gửi đồng bộ trong call này
	result.BotHandled = s.botRuntime.HandleInbound(ctx, instance.CompanyID, ev)

	// 5. Board fan-out vô điều kiện, lỗi từng board được cô lập
	boards, err := s.boardRepo.FindByCompany(ctx, instance.CompanyID)
	if err != nil {
		return result, err
	}

	chat := chatFromEvent(ev)
	for i := range boards {
		placement, err := s.boardService.HandleMessage(ctx, &boards[i], chat)
		if err != nil {
			s.logger.Error("board placement failed",
				zap.String("board_id", boards[i].ID.String()),
				zap.String("chat_key", ev.Channel.ConversationKey()),
				zap.Error(err),
			)
			continue
		}
		if placement.Placed {
			result.BoardsPlaced++
		}
	}

	s.logger.Info("inbound event routed",
		zap.String("instance_id", ev.Channel.InstanceID.String()),
		zap.String("chat_key", ev.Channel.ConversationKey()),
		zap.Bool("bot_handled", result.BotHandled),
		zap.Int("boards_placed", result.BoardsPlaced),
	)

	return result, nil
}

// checkBlacklistTrigger thêm người gửi vào blacklist của oven khi text
// khớp opt-out keyword
func (s *messageService) checkBlacklistTrigger(ctx context.Context, ev channel.InboundEvent) {
	oven, err := s.ovenRepo.FindByInstance(ctx, ev.Channel.InstanceID)
	if err != nil {
		return
	}
	if oven.BlacklistTrigger == "" {
		return
	}
	if bot.Normalize(ev.Text) != bot.Normalize(oven.BlacklistTrigger) {
		return
	}

	if oven.AddToBlacklist(ev.Channel.Phone, ev.SenderName, s.now()) {
		if err := s.ovenRepo.Update(ctx, oven); err != nil {
			s.logger.Error("save oven blacklist failed", zap.Error(err))
			return
		}
		s.logger.Info("sender opted out, added to blacklist",
			zap.String("oven_id", oven.ID.String()),
			zap.String("number", ev.Channel.Phone),
		)
		s.publish(realtime.OvenTopic(oven.ID), "oven:blacklist", map[string]interface{}{
			"number": ev.Channel.Phone,
		})
	}
}

// chatFromEvent dựng chat snapshot từ một inbound event
func chatFromEvent(ev channel.InboundEvent) models.Chat {
	name := ev.SenderName
	if name == "" {
		name = ev.Channel.ConversationKey()
	}
	phone := ev.Channel.Phone
	if phone == "" {
		phone = phoneFromKey(ev.Channel.ConversationKey())
	}

	chat := models.Chat{
		Name:       name,
		Phone:      phone,
		IsGroup:    ev.IsGroup,
		ProfilePic: ev.ProfilePic,
		Channel:    ev.Channel,
		LastMessage: models.MessageSnapshot{
			ID:        ev.MessageID,
			Text:      ev.Text,
			Author:    ev.SenderName,
			FromMe:    ev.FromMe,
			Timestamp: ev.Timestamp,
		},
	}
	if !ev.FromMe {
		chat.UnreadCount = 1
	}
	return chat
}

// phoneFromKey tách số điện thoại từ key dạng "5511999@c.us"
func phoneFromKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '@' {
			return key[:i]
		}
	}
	return key
}

// publish phát realtime event, lỗi chỉ log
func (s *messageService) publish(topic, event string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(topic, event, data); err != nil {
		s.logger.Debug("realtime publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
