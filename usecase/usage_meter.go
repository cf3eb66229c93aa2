package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/utils/log"
)

const dayLayout = "2006-01-02"

type usageKey struct {
	userID string
	day    string
}

// UsageMeter counts chat round trips per user and UTC day.
type UsageMeter struct {
	mu     sync.RWMutex
	counts map[usageKey]int
	now    func() time.Time
}

func NewUsageMeter() *UsageMeter {
	return &UsageMeter{
		counts: make(map[usageKey]int),
		now:    time.Now,
	}
}

// Run consumes round trip events until ctx is done or the broker closes.
func (m *UsageMeter) Run(ctx context.Context, broker domain.MessageBroker) error {
	events, err := broker.Subscribe(ctx, RoundTripTopic, UsageRoutingKey)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", RoundTripTopic, err)
	}

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				log.WithCtx(ctx).Info("🔒 Usage meter stopped, broker closed")
				return nil
			}
			var event domain.RoundTripEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.WithCtx(ctx).Error("❌ Failed to unmarshal round trip event", zap.Error(err))
				continue
			}
			m.Record(event.UserID, event.Timestamp)
		case <-ctx.Done():
			log.WithCtx(ctx).Info("🔒 Usage meter stopped")
			return nil
		}
	}
}

// Record counts one round trip of userID at time at.
func (m *UsageMeter) Record(userID string, at time.Time) {
	if userID == "" {
		return
	}
	key := usageKey{userID: userID, day: at.UTC().Format(dayLayout)}

	m.mu.Lock()
	m.counts[key]++
	m.mu.Unlock()
}

// Usage returns today's count for userID.
func (m *UsageMeter) Usage(userID string) domain.Usage {
	day := m.now().UTC().Format(dayLayout)

	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.Usage{
		UserID:   userID,
		Day:      day,
		Messages: m.counts[usageKey{userID: userID, day: day}],
	}
}
