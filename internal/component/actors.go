package component

import (
	"github.com/dtsim/server/internal/actor"
)

// StaticType is a plain actor with properties and an optional model and no
// behavior of its own.
var StaticType = actor.Type{Category: "dtsim.static", Name: "Static"}

// RegisterActorTypes adds the built-in actor types to lib.
func RegisterActorTypes(lib *actor.Library) error {
	return lib.Register(StaticType, nil)
}
