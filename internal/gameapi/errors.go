package gameapi

import "errors"

var (
	// ErrTimeout means the upstream did not answer within the client timeout.
	ErrTimeout = errors.New("gameapi: request timed out")

	// ErrUnavailable covers transport failures, non-2xx answers and bodies
	// that cannot be decoded.
	ErrUnavailable = errors.New("gameapi: upstream unavailable")

	// ErrNotFound means the upstream does not know the player.
	ErrNotFound = errors.New("gameapi: player not found")
)
