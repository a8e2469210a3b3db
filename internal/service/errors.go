package service

import (
	"errors"
	"fmt"

	"riddlehunt/internal/repository"
)

// Error kinds surfaced by the game engine and leaderboard. Returned errors wrap one of
// these with context, so callers classify them with errors.Is.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("unprocessable")
)

// translate maps storage-level conflicts onto ErrConflict and leaves everything else alone.
func translate(err error) error {
	if errors.Is(err, repository.ErrConcurrentUpdate) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
