package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wellbeing-companion/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrSessionEnded    = errors.New("chat session has ended")
)

// StorageError envuelve cualquier falla de I/O del store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ChatMessageRepository es el log append-only de mensajes por sesión.
type ChatMessageRepository interface {
	// Append asigna Seq y garantiza CreatedAt estrictamente posterior al mensaje previo de la sesión.
	// Una sesión terminada no admite mensajes: devuelve ErrSessionEnded.
	Append(ctx context.Context, sessionID string, message domain.ChatMessage) (domain.ChatMessage, error)
	ListBySessionID(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

// ChatSessionRepository resuelve y actualiza sesiones de un dispositivo.
type ChatSessionRepository interface {
	// GetOrCreateActive retoma la sesión abierta más reciente dentro de staleness o crea una nueva,
	// cerrando las sesiones abiertas que reemplaza.
	GetOrCreateActive(ctx context.Context, deviceID string, staleness time.Duration, now time.Time) (domain.ChatSession, error)
	GetByID(ctx context.Context, id string) (domain.ChatSession, error)
	End(ctx context.Context, id string, endedAt time.Time) error
	// MarkCrisis fija el flag de crisis; la primera razón registrada se conserva.
	MarkCrisis(ctx context.Context, id, reason string) error
}

// ChatStore agrupa ambos contratos; todas las implementaciones los cumplen juntos.
type ChatStore interface {
	ChatMessageRepository
	ChatSessionRepository
	Close() error
}

// nextCreatedAt mantiene el orden estricto por timestamp dentro de una sesión.
func nextCreatedAt(candidate, previous time.Time) time.Time {
	if candidate.IsZero() {
		candidate = time.Now()
	}
	candidate = candidate.UTC().Truncate(time.Microsecond)
	if previous.IsZero() {
		return candidate
	}
	if !candidate.After(previous) {
		return previous.Add(time.Microsecond)
	}
	return candidate
}
