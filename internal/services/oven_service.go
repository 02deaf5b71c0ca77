package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatboard/internal/channel"
	"chatboard/internal/models"
	"chatboard/internal/realtime"
	"chatboard/internal/repositories"
)

// ===========================================================================
// Oven Service
// Batch sender cho broadcast queues: mỗi chu kỳ lấy batch_size tin từ đầu
// queue đem gửi, bỏ qua người nhận trong blacklist, tự pause khi queue cạn
// ===========================================================================

// OvenService interface cho outbound dispatcher
type OvenService interface {
	// CreateOven tạo oven mới cho một cloud instance
	CreateOven(ctx context.Context, oven *models.Oven) error

	// GetOven lấy oven theo ID
	GetOven(ctx context.Context, id uuid.UUID) (*models.Oven, error)

	// ListOvens lấy danh sách ovens của company
	ListOvens(ctx context.Context, companyID uuid.UUID) ([]models.Oven, error)

	// QueueMessages nối thêm tin vào cuối queue
	QueueMessages(ctx context.Context, ovenID uuid.UUID, msgs []models.TemplateMessage) error

	// SetPaused bật/tắt oven
	SetPaused(ctx context.Context, ovenID uuid.UUID, paused bool) error

	// AddToBlacklist thêm số vào blacklist của instance (bot action/opt-out)
	AddToBlacklist(ctx context.Context, instanceID uuid.UUID, number, name string) error

	// RemoveFromBlacklist gỡ số khỏi blacklist
	RemoveFromBlacklist(ctx context.Context, ovenID uuid.UUID, number string) error

	// Bake gửi một batch từ queue của oven
	Bake(ctx context.Context, oven *models.Oven) error

	// Sweep quét mọi oven đến chu kỳ, gọi từ cron
	Sweep(ctx context.Context)
}

// ovenService triển khai OvenService
type ovenService struct {
	ovenRepo repositories.OvenRepository
	adapters *channel.Registry
	publisher realtime.Publisher
	logger   *zap.Logger

	now func() time.Time
}

// NewOvenService tạo instance mới của OvenService
func NewOvenService(
	ovenRepo repositories.OvenRepository,
	adapters *channel.Registry,
	publisher realtime.Publisher,
	logger *zap.Logger,
) OvenService {
	return &ovenService{
		ovenRepo:  ovenRepo,
		adapters:  adapters,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOven tạo oven mới
func (s *ovenService) CreateOven(ctx context.Context, oven *models.Oven) error {
	return s.ovenRepo.Create(ctx, oven)
}

// GetOven lấy oven theo ID
func (s *ovenService) GetOven(ctx context.Context, id uuid.UUID) (*models.Oven, error) {
	return s.ovenRepo.FindByID(ctx, id)
}

// ListOvens lấy danh sách ovens của company
func (s *ovenService) ListOvens(ctx context.Context, companyID uuid.UUID) ([]models.Oven, error) {
	return s.ovenRepo.FindByCompany(ctx, companyID)
}

// QueueMessages nối thêm tin vào cuối queue
func (s *ovenService) QueueMessages(ctx context.Context, ovenID uuid.UUID, msgs []models.TemplateMessage) error {
	oven, err := s.ovenRepo.FindByID(ctx, ovenID)
	if err != nil {
		return err
	}
	oven.Queue = append(oven.Queue, msgs...)
	if err := s.ovenRepo.Update(ctx, oven); err != nil {
		return err
	}
	s.publish(oven, "oven:queued", map[string]interface{}{"queued": len(msgs), "total": len(oven.Queue)})
	return nil
}

// SetPaused bật/tắt oven
func (s *ovenService) SetPaused(ctx context.Context, ovenID uuid.UUID, paused bool) error {
	oven, err := s.ovenRepo.FindByID(ctx, ovenID)
	if err != nil {
		return err
	}
	oven.Paused = paused
	if err := s.ovenRepo.Update(ctx, oven); err != nil {
		return err
	}
	s.publish(oven, "oven:updated", oven)
	return nil
}

// AddToBlacklist thêm số vào blacklist của instance
func (s *ovenService) AddToBlacklist(ctx context.Context, instanceID uuid.UUID, number, name string) error {
	oven, err := s.ovenRepo.FindByInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if oven.AddToBlacklist(number, name, s.now()) {
		if err := s.ovenRepo.Update(ctx, oven); err != nil {
			return err
		}
		s.publish(oven, "oven:blacklist", map[string]interface{}{"number": number})
	}
	return nil
}

// RemoveFromBlacklist gỡ số khỏi blacklist
func (s *ovenService) RemoveFromBlacklist(ctx context.Context, ovenID uuid.UUID, number string) error {
	oven, err := s.ovenRepo.FindByID(ctx, ovenID)
	if err != nil {
		return err
	}
	if oven.RemoveFromBlacklist(number) {
		if err := s.ovenRepo.Update(ctx, oven); err != nil {
			return err
		}
		s.publish(oven, "oven:blacklist", map[string]interface{}{"number": number, "removed": true})
	}
	return nil
}

// Sweep quét mọi oven, bake những oven đến chu kỳ
// Mỗi oven chạy độc lập; lỗi một oven không chặn các oven còn lại
func (s *ovenService) Sweep(ctx context.Context) {
	ovens, err := s.ovenRepo.FindAll(ctx)
	if err != nil {
		s.logger.Error("oven sweep: load ovens failed", zap.Error(err))
		return
	}

	now := s.now()
	for i := range ovens {
		oven := &ovens[i]
		if !oven.ShouldBake(now) {
			continue
		}
		if err := s.Bake(ctx, oven); err != nil {
			s.logger.Error("oven bake failed",
				zap.String("oven_id", oven.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// Bake gửi một batch: mỗi send độc lập, thất bại từng tin chỉ log,
// người nhận trong blacklist bị bỏ qua (skipped, không phải lỗi)
func (s *ovenService) Bake(ctx context.Context, oven *models.Oven) error {
	adapter, err := s.adapters.Get(oven.ChannelInstanceID)
	if err != nil {
		return err
	}
	sender, ok := adapter.(channel.TemplateSender)
	if !ok {
		return fmt.Errorf("instance %s không hỗ trợ template sending", oven.ChannelInstanceID)
	}

	now := s.now()
	batch := oven.NextBatch()
	sent, skipped := 0, 0

	for _, msg := range batch {
		if oven.Blacklist.Contains(msg.To) {
			oven.AppendLog(models.SendRecord{
				To:           msg.To,
				TemplateName: msg.TemplateName,
				Skipped:      true,
				Timestamp:    now.UnixMilli(),
			})
			skipped++
			s.logger.Info("oven send skipped, recipient blacklisted",
				zap.String("oven_id", oven.ID.String()),
				zap.String("to", msg.To),
			)
			continue
		}

		record := models.SendRecord{
			To:           msg.To,
			TemplateName: msg.TemplateName,
			Timestamp:    now.UnixMilli(),
		}
		if _, err := sender.SendTemplate(ctx, msg); err != nil {
			record.Error = err.Error()
			s.logger.Error("oven send failed",
				zap.String("oven_id", oven.ID.String()),
				zap.String("to", msg.To),
				zap.Error(err),
			)
		} else {
			record.Success = true
			sent++
		}
		oven.AppendLog(record)
	}

	oven.LastBakedAt = now.UnixMilli()

	// Queue cạn thì tự pause, chờ được nạp và bật lại
	if len(oven.Queue) == 0 {
		oven.Paused = true
	}

	if err := s.ovenRepo.Update(ctx, oven); err != nil {
		return err
	}

	s.logger.Info("oven baked",
		zap.String("oven_id", oven.ID.String()),
		zap.Int("sent", sent),
		zap.Int("skipped", skipped),
		zap.Int("remaining", len(oven.Queue)),
	)
	s.publish(oven, "oven:baked", map[string]interface{}{
		"sent":      sent,
		"skipped":   skipped,
		"remaining": len(oven.Queue),
	})
	return nil
}

// publish phát realtime event theo oven topic, lỗi chỉ log
func (s *ovenService) publish(oven *models.Oven, event string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(realtime.OvenTopic(oven.ID), event, data); err != nil {
		s.logger.Debug("realtime publish failed", zap.Error(err))
	}
}
