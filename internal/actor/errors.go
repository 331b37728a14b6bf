package actor

import "errors"

var (
	ErrDuplicateComponent    = errors.New("component type already present on actor")
	ErrComponentTypeMismatch = errors.New("component has unexpected type")
	ErrNoOwner               = errors.New("component is not attached to an actor")
	ErrNotTicker             = errors.New("component does not implement Ticker")
	ErrDuplicateInvokable    = errors.New("invokable already exists")
	ErrUnknownInvokable      = errors.New("unknown invokable")
	ErrNotInGM               = errors.New("actor is not in the game manager")
	ErrUnknownActorType      = errors.New("unknown actor type")
	ErrDuplicateActorType    = errors.New("actor type already registered")
)
