package errors

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalid   = errors.New("invalid")
	ErrInternal  = errors.New("internal")
	ErrNoContent = errors.New("no content extracted")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsNoContent(err error) bool {
	return errors.Is(err, ErrNoContent)
}
