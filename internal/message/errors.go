package message

import "errors"

var (
	ErrDuplicateType = errors.New("message type already registered")
	ErrInvalidType   = errors.New("invalid message type")
	ErrUnknownType   = errors.New("unknown message type")
	ErrTypeMismatch  = errors.New("parameter type mismatch")
	ErrParamNotFound = errors.New("parameter not found")
	ErrBadValue      = errors.New("bad parameter value")
)
