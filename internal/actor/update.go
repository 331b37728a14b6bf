package actor

import (
	"fmt"
	"strings"

	"github.com/dtsim/server/internal/message"
)

// PopulateUpdate fills msg with p's type, name and properties and makes it
// about p. Properties travel as "name=value" entries.
func PopulateUpdate(p *Proxy, msg *message.Message) error {
	msg.AboutActorID = p.id
	if msg.SendingActorID.IsNull() {
		msg.SendingActorID = p.id
	}
	props := make([]string, 0, len(p.properties))
	for _, k := range p.PropertyNames() {
		props = append(props, k+"="+p.properties[k])
	}
	if err := msg.SetStr(message.ParamActorCategory, p.typ.Category); err != nil {
		return fmt.Errorf("populate update: %w", err)
	}
	if err := msg.SetStr(message.ParamActorType, p.typ.Name); err != nil {
		return fmt.Errorf("populate update: %w", err)
	}
	if err := msg.SetStr(message.ParamActorName, p.name); err != nil {
		return fmt.Errorf("populate update: %w", err)
	}
	if err := msg.SetStringList(message.ParamProperties, props); err != nil {
		return fmt.Errorf("populate update: %w", err)
	}
	return nil
}

// ApplyUpdate copies the name and properties carried by msg onto p. Missing
// parameters leave p unchanged.
func ApplyUpdate(p *Proxy, msg *message.Message) error {
	if name, err := msg.GetStr(message.ParamActorName); err == nil && name != "" {
		p.name = name
	}
	props, err := msg.GetStringList(message.ParamProperties)
	if err != nil {
		return nil
	}
	for _, kv := range props {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("apply update to %s: property %q: %w", p.name, kv, message.ErrBadValue)
		}
		p.properties[k] = v
	}
	return nil
}

// UpdateType reads the actor type carried by an update message.
func UpdateType(msg *message.Message) (Type, error) {
	cat, err := msg.GetStr(message.ParamActorCategory)
	if err != nil {
		return Type{}, err
	}
	name, err := msg.GetStr(message.ParamActorType)
	if err != nil {
		return Type{}, err
	}
	return Type{Category: cat, Name: name}, nil
}
