package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatboard/internal/models"
	"chatboard/internal/realtime"
)

// ===========================================================================
// Node actions
// Side-effects gắn trên message nodes, chạy sau khi node được gửi
// Tập action kinds là đóng: kind lạ là lỗi decode, không phải no-op
// Action misconfigured chạy như no-op, không bao giờ lỗi
// ===========================================================================

// ChatRouter tạo/định tuyến chat vào một board
// Implement bởi board service; interface hẹp để tránh import cycle
type ChatRouter interface {
	// RouteChat đưa hội thoại của ref vào board/room đích
	RouteChat(ctx context.Context, boardID uuid.UUID, roomID *uuid.UUID, ref models.ChannelRef, senderName string) error
}

// Blacklister thêm người gửi vào blacklist của channel instance
// Implement bởi oven service
type Blacklister interface {
	// AddToBlacklist thêm số vào blacklist của instance
	AddToBlacklist(ctx context.Context, instanceID uuid.UUID, number, name string) error
}

// ActionEnv môi trường chạy action cho một lượt hội thoại
type ActionEnv struct {
	Ctx         context.Context
	Bot         *models.Bot
	Ref         models.ChannelRef
	SenderName  string
	Now         time.Time
	Router      ChatRouter
	Blacklister Blacklister
	Publisher   realtime.Publisher
	Logger      *zap.Logger
}

// Action một side-effect đã decode, sẵn sàng chạy
type Action interface {
	// Kind trả về loại action
	Kind() models.ActionKind

	// Execute chạy action trong môi trường env
	Execute(env *ActionEnv) error
}

// DecodeAction chuyển NodeActionSpec thành Action
// Kind không thuộc tập đã biết là lỗi decode
func DecodeAction(spec models.NodeActionSpec) (Action, error) {
	if spec.Misconfigured {
		return inertAction{kind: spec.Kind}, nil
	}

	switch spec.Kind {
	case models.ActionRouteChat:
		if spec.RouteChat == nil {
			return inertAction{kind: spec.Kind}, nil
		}
		return routeChatAction{settings: *spec.RouteChat}, nil

	case models.ActionEndConversation:
		settings := models.EndConversationSettings{}
		if spec.EndConversation != nil {
			settings = *spec.EndConversation
		}
		return endConversationAction{settings: settings}, nil

	case models.ActionBlacklist:
		return blacklistAction{}, nil

	default:
		return nil, fmt.Errorf("unknown node action kind: %q", spec.Kind)
	}
}

// ===========================================================================
// Implementations
// ===========================================================================

// inertAction no-op cho action misconfigured hoặc thiếu settings
type inertAction struct {
	kind models.ActionKind
}

func (a inertAction) Kind() models.ActionKind { return a.kind }

func (a inertAction) Execute(env *ActionEnv) error {
	env.Logger.Debug("skipping misconfigured node action",
		zap.String("kind", string(a.kind)),
		zap.String("bot", env.Bot.Name),
	)
	return nil
}

// routeChatAction đưa hội thoại vào board/room đích
type routeChatAction struct {
	settings models.RouteChatSettings
}

func (a routeChatAction) Kind() models.ActionKind { return models.ActionRouteChat }

func (a routeChatAction) Execute(env *ActionEnv) error {
	if env.Router == nil {
		return nil
	}
	return env.Router.RouteChat(env.Ctx, a.settings.BoardID, a.settings.RoomID, env.Ref, env.SenderName)
}

// endConversationAction kết thúc hội thoại và pause với cooldown
type endConversationAction struct {
	settings models.EndConversationSettings
}

func (a endConversationAction) Kind() models.ActionKind { return models.ActionEndConversation }

func (a endConversationAction) Execute(env *ActionEnv) error {
	chatKey := env.Ref.ConversationKey()
	env.Bot.Pause(chatKey, time.Duration(a.settings.CooldownMinutes)*time.Minute, env.Now)

	if env.Publisher != nil {
		if err := env.Publisher.Publish(realtime.ChatTopic(chatKey), "bot:paused", map[string]interface{}{
			"bot_id":   env.Bot.ID,
			"chat_key": chatKey,
			"paused":   true,
		}); err != nil {
			env.Logger.Warn("publish pause event failed", zap.Error(err))
		}
	}
	return nil
}

// blacklistAction thêm người gửi vào blacklist (chỉ kênh cloud)
type blacklistAction struct{}

func (a blacklistAction) Kind() models.ActionKind { return models.ActionBlacklist }

func (a blacklistAction) Execute(env *ActionEnv) error {
	if env.Ref.Kind != models.ChannelCloud {
		env.Logger.Debug("blacklist action ignored on non-cloud channel",
			zap.String("kind", string(env.Ref.Kind)),
		)
		return nil
	}
	if env.Blacklister == nil {
		return nil
	}
	return env.Blacklister.AddToBlacklist(env.Ctx, env.Ref.InstanceID, env.Ref.Phone, env.SenderName)
}
