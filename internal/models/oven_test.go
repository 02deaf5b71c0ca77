package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================================================================
// Tests cho Oven model
// ===========================================================================

func TestOven_ShouldBake(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	queue := OvenQueue{{To: "5511999", TemplateName: "promo"}}

	tests := []struct {
		name     string
		oven     Oven
		expected bool
	}{
		{"paused không bake", Oven{Paused: true, Queue: queue}, false},
		{"queue rỗng không bake", Oven{FrequencyMinutes: 60}, false},
		{"chưa từng bake thì bake ngay", Oven{FrequencyMinutes: 60, Queue: queue}, true},
		{"chưa đến chu kỳ", Oven{
			FrequencyMinutes: 60,
			Queue:            queue,
			LastBakedAt:      now.Add(-30 * time.Minute).UnixMilli(),
		}, false},
		{"đúng chu kỳ", Oven{
			FrequencyMinutes: 60,
			Queue:            queue,
			LastBakedAt:      now.Add(-60 * time.Minute).UnixMilli(),
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.oven.ShouldBake(now))
		})
	}
}

func TestOven_NextBatch(t *testing.T) {
	oven := Oven{BatchSize: 2}
	for i := 0; i < 5; i++ {
		oven.Queue = append(oven.Queue, TemplateMessage{To: fmt.Sprintf("55%d", i)})
	}

	batch := oven.NextBatch()
	require.Len(t, batch, 2)
	assert.Equal(t, "550", batch[0].To)
	assert.Equal(t, "551", batch[1].To)
	assert.Len(t, oven.Queue, 3)

	// Batch lớn hơn queue còn lại: lấy hết
	oven.BatchSize = 10
	batch = oven.NextBatch()
	assert.Len(t, batch, 3)
	assert.Empty(t, oven.Queue)
}

func TestOven_NextBatchZeroSizeDefaultsToOne(t *testing.T) {
	oven := Oven{Queue: OvenQueue{{To: "a"}, {To: "b"}}}

	batch := oven.NextBatch()
	require.Len(t, batch, 1)
	assert.Equal(t, "a", batch[0].To)
}

func TestOven_Blacklist(t *testing.T) {
	now := time.Now()
	oven := Oven{}

	assert.True(t, oven.AddToBlacklist("5511999", "Maria", now))
	assert.True(t, oven.Blacklist.Contains("5511999"))

	// Thêm trùng không duplicate
	assert.False(t, oven.AddToBlacklist("5511999", "Maria", now))
	assert.Len(t, oven.Blacklist, 1)

	assert.True(t, oven.RemoveFromBlacklist("5511999"))
	assert.False(t, oven.Blacklist.Contains("5511999"))
	assert.False(t, oven.RemoveFromBlacklist("5511999"))
}

func TestOven_AppendLogIsBounded(t *testing.T) {
	oven := Oven{}
	for i := 0; i < sendLogLimit+50; i++ {
		oven.AppendLog(SendRecord{To: fmt.Sprintf("55%d", i), Success: true})
	}

	assert.Len(t, oven.Log, sendLogLimit)
	// Giữ các dòng mới nhất, cắt dòng cũ
	assert.Equal(t, fmt.Sprintf("55%d", sendLogLimit+49), oven.Log[len(oven.Log)-1].To)
	assert.Equal(t, "5550", oven.Log[0].To)
}
