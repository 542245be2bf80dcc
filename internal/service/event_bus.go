package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"wellbeing-companion/internal/safety"
)

type EventType string

const (
	EventTurnCompleted  EventType = "turn_completed"
	EventCrisisDetected EventType = "crisis_detected"
)

// Event es la notificación que recibe la UI; reemplaza la observación implícita de estado.
type Event struct {
	Type          EventType        `json:"type"`
	DeviceID      string           `json:"device_id"`
	SessionID     string           `json:"session_id"`
	MessageID     string           `json:"message_id,omitempty"`
	Fallback      bool             `json:"fallback,omitempty"`
	MatchedSignal string           `json:"matched_signal,omitempty"`
	Hotlines      []safety.Hotline `json:"crisis_resources,omitempty"`
	At            time.Time        `json:"at"`
}

// EventBus reparte eventos por dispositivo.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe devuelve un canal de eventos del dispositivo y la función para cancelar la suscripción.
	Subscribe(ctx context.Context, deviceID string) (<-chan Event, func(), error)
}

const subscriberBuffer = 16

// MemoryEventBus entrega eventos dentro del proceso. Si un suscriptor está lleno el evento se descarta.
type MemoryEventBus struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	logger *zap.Logger
}

func NewMemoryEventBus(logger *zap.Logger) *MemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryEventBus{
		subs:   make(map[string]map[chan Event]struct{}),
		logger: logger,
	}
}

func (b *MemoryEventBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[event.DeviceID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				zap.String("device_id", event.DeviceID),
				zap.String("type", string(event.Type)),
			)
		}
	}
	return nil
}

func (b *MemoryEventBus) Subscribe(_ context.Context, deviceID string) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[deviceID] == nil {
		b.subs[deviceID] = make(map[chan Event]struct{})
	}
	b.subs[deviceID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[deviceID], ch)
			if len(b.subs[deviceID]) == 0 {
				delete(b.subs, deviceID)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}
