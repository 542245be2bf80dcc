package service

import (
	"errors"

	"wellbeing-companion/internal/repository"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
	ErrTurnCanceled   = errors.New("turn canceled before the reply was stored")

	// Los sentinels de sesión son los mismos del store para que errors.Is funcione en ambas capas.
	ErrSessionNotFound = repository.ErrSessionNotFound
	ErrSessionEnded    = repository.ErrSessionEnded
)

// IsStorageError distingue fallas de persistencia del resto.
func IsStorageError(err error) bool {
	var se *repository.StorageError
	return errors.As(err, &se)
}
