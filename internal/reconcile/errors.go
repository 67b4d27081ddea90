package reconcile

import "errors"

var (
	ErrUnknownItem      = errors.New("reconcile: unknown item")
	ErrUnknownAction    = errors.New("reconcile: unknown action")
	ErrActionNotAllowed = errors.New("reconcile: action not allowed for item")
	ErrEmptySelection   = errors.New("reconcile: nothing selected")
	ErrInvalidPageSize  = errors.New("reconcile: invalid page size")
	ErrPageOutOfRange   = errors.New("reconcile: page out of range")
)
