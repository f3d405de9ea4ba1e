package idme

import (
	"errors"

	"github.com/S0me0neR0man/idmestash/internal/blockdev"
)

var (
	ErrInvalidMagic   = errors.New("idme data is invalid")
	ErrNotFound       = errors.New("idme item not found")
	ErrUnbound        = errors.New("idme version not supported")
	ErrNilBuffer      = errors.New("idme buffer is nil")
	ErrNilValue       = errors.New("idme value is nil")
	ErrCapacity       = errors.New("idme export out of capacity")
	ErrCorrupt        = errors.New("idme image is corrupt")
	ErrUnknownVersion = errors.New("idme unknown version")
	ErrNotLoaded      = errors.New("idme not loaded")
)

// Return codes surfaced by the console
const (
	CodeOK           = 0
	CodeFailure      = -1
	CodeUnbound      = -2
	CodeInvalidMagic = -3
	CodeNotFound     = -4
	CodeIO           = -5
	CodeCapacity     = -6
)

// Code maps an error to a console return code
func Code(err error) int {
	var (
		ioErr *blockdev.BlockIOError
		swErr *blockdev.SwitchError
	)
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrUnbound):
		return CodeUnbound
	case errors.Is(err, ErrInvalidMagic):
		return CodeInvalidMagic
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.As(err, &ioErr), errors.As(err, &swErr):
		return CodeIO
	case errors.Is(err, ErrCapacity):
		return CodeCapacity
	default:
		return CodeFailure
	}
}
