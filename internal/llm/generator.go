package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"wellbeing-companion/internal/domain"
)

// Reply es la respuesta ya parseada del modelo.
type Reply struct {
	Text          string
	SuggestedTool *domain.ToolID
}

// Generator produce la respuesta del acompañante para un turno.
// history son los mensajes previos de la sesión, sin incluir utterance.
type Generator interface {
	Generate(ctx context.Context, history []domain.ChatMessage, utterance string) (Reply, error)
}

type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindCanceled  ErrorKind = "canceled"
	KindNetwork   ErrorKind = "network"
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindUpstream  ErrorKind = "upstream"
	KindMalformed ErrorKind = "malformed"
)

// GenerationError es cualquier falla al producir una respuesta.
type GenerationError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("llm %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func genErr(provider string, kind ErrorKind, err error) error {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}
	return &GenerationError{Kind: kind, Provider: provider, Err: err}
}

// classifyTransportErr mapea errores de contexto y red a un ErrorKind.
func classifyTransportErr(provider string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return genErr(provider, KindTimeout, err)
	case errors.Is(err, context.Canceled):
		return genErr(provider, KindCanceled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return genErr(provider, KindTimeout, err)
	}
	return genErr(provider, KindNetwork, err)
}

// kindForStatus traduce un status HTTP del proveedor.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status == 408 || status == 504:
		return KindTimeout
	default:
		return KindUpstream
	}
}

// IsKind informa si err es un GenerationError del tipo indicado.
func IsKind(err error, kind ErrorKind) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Kind == kind
}
