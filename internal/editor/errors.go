package editor

import "errors"

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrUnknownSection = errors.New("unknown section")
	ErrEntryNotFound  = errors.New("entry not found")
	ErrSessionClosed  = errors.New("editor session closed")
	ErrNotText        = errors.New("field is not free text")
)
