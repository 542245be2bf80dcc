package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wellbeing-companion/internal/domain"
)

// MemoryChatRepository guarda sesiones y mensajes en memoria. Útil para desarrollo y tests.
type MemoryChatRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.ChatSession
	order    []string
	messages map[string][]domain.ChatMessage
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		sessions: make(map[string]domain.ChatSession),
		messages: make(map[string][]domain.ChatMessage),
	}
}

func (r *MemoryChatRepository) Append(_ context.Context, sessionID string, message domain.ChatMessage) (domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return domain.ChatMessage{}, ErrSessionNotFound
	}
	if session.Ended() {
		return domain.ChatMessage{}, ErrSessionEnded
	}

	existing := r.messages[sessionID]
	var previous time.Time
	if len(existing) > 0 {
		previous = existing[len(existing)-1].CreatedAt
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.SessionID = sessionID
	message.Seq = int64(len(existing)) + 1
	message.CreatedAt = nextCreatedAt(message.CreatedAt, previous)
	if message.SafetyFlag == "" {
		message.SafetyFlag = domain.SafetyFlagNone
	}

	r.messages[sessionID] = append(existing, message)
	if message.CreatedAt.After(session.LastActivityAt) {
		session.LastActivityAt = message.CreatedAt
		r.sessions[sessionID] = session
	}
	return message, nil
}

func (r *MemoryChatRepository) ListBySessionID(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]domain.ChatMessage, len(r.messages[sessionID]))
	copy(out, r.messages[sessionID])
	return out, nil
}

func (r *MemoryChatRepository) GetOrCreateActive(_ context.Context, deviceID string, staleness time.Duration, now time.Time) (domain.ChatSession, error) {
	deviceID = strings.TrimSpace(deviceID)
	now = now.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Recorremos de la más reciente a la más vieja.
	var active *domain.ChatSession
	for i := len(r.order) - 1; i >= 0; i-- {
		s := r.sessions[r.order[i]]
		if s.DeviceID != deviceID || s.Ended() {
			continue
		}
		if active == nil && !s.IsStale(now, staleness) {
			found := s
			active = &found
			continue
		}
		ended := now
		s.EndedAt = &ended
		r.sessions[s.ID] = s
	}
	if active != nil {
		return *active, nil
	}

	session := domain.ChatSession{
		ID:             uuid.NewString(),
		DeviceID:       deviceID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	r.sessions[session.ID] = session
	r.order = append(r.order, session.ID)
	return session, nil
}

func (r *MemoryChatRepository) GetByID(_ context.Context, id string) (domain.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	return s, nil
}

func (r *MemoryChatRepository) End(_ context.Context, id string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.EndedAt == nil {
		t := endedAt.UTC()
		s.EndedAt = &t
		r.sessions[id] = s
	}
	return nil
}

func (r *MemoryChatRepository) MarkCrisis(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if !s.CrisisFlag {
		s.CrisisFlag = true
		if reason != "" {
			rs := reason
			s.CrisisFlagReason = &rs
		}
		r.sessions[id] = s
	}
	return nil
}

func (r *MemoryChatRepository) Close() error { return nil }

var _ ChatStore = (*MemoryChatRepository)(nil)
