package cvs

import "errors"

var (
	ErrNotFound       = errors.New("cv not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidContent = errors.New("invalid cv content")
)
