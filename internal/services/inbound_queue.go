package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatboard/internal/channel"
)

// ===========================================================================
// Inbound Queue
// Serialize events theo từng (instance, sender): webhook duplicate hoặc
// ack/message đến gần nhau phải được xử lý theo thứ tự timestamp,
// bất kể thứ tự đến vật lý
// Mỗi tick drain đúng một event (sớm nhất) cho mỗi sender
// ===========================================================================

// InboundQueue hàng đợi micro theo sender cho inbound events
type InboundQueue struct {
	service  MessageService
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string][]channel.InboundEvent

	stopOnce sync.Once
	stop     chan struct{}
}

// NewInboundQueue tạo queue mới, interval là chu kỳ drain (thường 1s)
func NewInboundQueue(service MessageService, interval time.Duration, logger *zap.Logger) *InboundQueue {
	return &InboundQueue{
		service:  service,
		interval: interval,
		logger:   logger,
		pending:  make(map[string][]channel.InboundEvent),
		stop:     make(chan struct{}),
	}
}

// Enqueue thêm event vào hàng đợi của sender
func (q *InboundQueue) Enqueue(ev channel.InboundEvent) {
	key := fmt.Sprintf("%s:%s", ev.Channel.InstanceID, ev.Channel.ConversationKey())

	q.mu.Lock()
	q.pending[key] = append(q.pending[key], ev)
	q.mu.Unlock()
}

// Start chạy vòng drain định kỳ cho đến khi Stop được gọi
func (q *InboundQueue) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.DrainOnce(ctx)
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop dừng vòng drain
func (q *InboundQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// DrainOnce lấy event có timestamp sớm nhất của mỗi sender đem xử lý
// Export để tests điều khiển được từng tick
func (q *InboundQueue) DrainOnce(ctx context.Context) {
	batch := q.takeEarliest()
	for _, ev := range batch {
		if _, err := q.service.ProcessInbound(ctx, ev); err != nil {
			q.logger.Error("inbound event processing failed",
				zap.String("chat_key", ev.Channel.ConversationKey()),
				zap.Error(err),
			)
		}
	}
}

// takeEarliest gỡ event sớm nhất khỏi hàng đợi của từng sender
func (q *InboundQueue) takeEarliest() []channel.InboundEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []channel.InboundEvent
	for key, events := range q.pending {
		earliest := 0
		for i := 1; i < len(events); i++ {
			if events[i].Timestamp < events[earliest].Timestamp {
				earliest = i
			}
		}
		batch = append(batch, events[earliest])

		if len(events) == 1 {
			delete(q.pending, key)
		} else {
			q.pending[key] = append(events[:earliest], events[earliest+1:]...)
		}
	}
	return batch
}

// Len tổng số events đang chờ (cho tests/metrics)
func (q *InboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for _, events := range q.pending {
		total += len(events)
	}
	return total
}
