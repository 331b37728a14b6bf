package gm

import "errors"

var (
	ErrDuplicateComponent = errors.New("gm component name already registered")
	ErrNilComponent       = errors.New("nil gm component")
	ErrDuplicateActor     = errors.New("actor id already in the game manager")
	ErrUnknownActor       = errors.New("actor is not in the game manager")
	ErrActorRemote        = errors.New("operation needs a local actor")
	ErrNoMaps             = errors.New("at least one map name is required")
	ErrInvalidMapName     = errors.New("empty string is not a valid map name")
	ErrNoLoader           = errors.New("game manager has no map loader")
	ErrShutdown           = errors.New("game manager is shut down")
)
