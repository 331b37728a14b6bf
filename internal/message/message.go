package message

import (
	"fmt"
	"unicode/utf8"
)

// Delivery controls how GameManager.SendMessage treats a message.
type Delivery uint8

const (
	// Queued messages are delivered at the start of the next frame.
	Queued Delivery = iota
	// Immediate messages are delivered synchronously from SendMessage.
	Immediate
)

// Message is the unit of communication between the game manager, its
// components and actors. A message is owned by whoever created it until it is
// sent; after that it must be treated as read-only.
type Message struct {
	typ *Type

	Source         *MachineInfo
	Destination    *MachineInfo
	SendingActorID UniqueID
	AboutActorID   UniqueID
	// Causing is set on rejection replies to the message being rejected.
	Causing  *Message
	Delivery Delivery

	params []*Param
	index  map[string]int
}

// New creates a bare message of type t. Factory.CreateMessage is preferred
// since it fills in the source and the parameter schema.
func New(t *Type) *Message {
	return &Message{typ: t, index: make(map[string]int)}
}

func (m *Message) Type() *Type { return m.typ }

// Params returns the parameters in the order they were added.
func (m *Message) Params() []*Param {
	out := make([]*Param, len(m.params))
	copy(out, m.params)
	return out
}

func (m *Message) Param(name string) (*Param, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.params[i], true
}

func (m *Message) HasParam(name string) bool {
	_, ok := m.index[name]
	return ok
}

// AddParam declares a parameter with its zero value. Re-declaring an existing
// name with the same type is a no-op.
func (m *Message) AddParam(name string, d DataType) error {
	if i, ok := m.index[name]; ok {
		if m.params[i].dtype != d {
			return fmt.Errorf("param %q is %s, not %s: %w", name, m.params[i].dtype, d, ErrTypeMismatch)
		}
		return nil
	}
	v := zeroValue(d)
	if v == nil {
		return fmt.Errorf("param %q: data type %d: %w", name, d, ErrBadValue)
	}
	m.index[name] = len(m.params)
	m.params = append(m.params, &Param{name: name, dtype: d, value: v})
	return nil
}

func (m *Message) set(name string, d DataType, v any) error {
	if !validText(v) {
		return fmt.Errorf("set %q: invalid UTF-8: %w", name, ErrBadValue)
	}
	if i, ok := m.index[name]; ok {
		p := m.params[i]
		if p.dtype != d {
			return fmt.Errorf("set %q as %s, stored as %s: %w", name, d, p.dtype, ErrTypeMismatch)
		}
		p.value = v
		return nil
	}
	m.index[name] = len(m.params)
	m.params = append(m.params, &Param{name: name, dtype: d, value: v})
	return nil
}

// validText reports whether every string in v survives the JSON codec.
func validText(v any) bool {
	switch v := v.(type) {
	case string:
		return utf8.ValidString(v)
	case UniqueID:
		return utf8.ValidString(string(v))
	case []string:
		for _, s := range v {
			if !utf8.ValidString(s) {
				return false
			}
		}
	}
	return true
}

func (m *Message) get(name string, d DataType) (any, error) {
	i, ok := m.index[name]
	if !ok {
		return nil, fmt.Errorf("get %q on %s: %w", name, m.typ, ErrParamNotFound)
	}
	p := m.params[i]
	if p.dtype != d {
		return nil, fmt.Errorf("get %q as %s, stored as %s: %w", name, d, p.dtype, ErrTypeMismatch)
	}
	return p.value, nil
}

// SetString parses s into the named parameter according to its declared type.
func (m *Message) SetString(name, s string) error {
	i, ok := m.index[name]
	if !ok {
		return fmt.Errorf("set %q from string: %w", name, ErrParamNotFound)
	}
	p := m.params[i]
	v, err := parseValue(p.dtype, s)
	if err == nil && !validText(v) {
		err = ErrBadValue
	}
	if err != nil {
		return fmt.Errorf("set %q from %q: %w", name, s, ErrBadValue)
	}
	p.value = v
	return nil
}

func (m *Message) SetBool(name string, v bool) error      { return m.set(name, TypeBool, v) }
func (m *Message) SetInt(name string, v int32) error      { return m.set(name, TypeInt, v) }
func (m *Message) SetInt64(name string, v int64) error    { return m.set(name, TypeInt64, v) }
func (m *Message) SetFloat(name string, v float32) error  { return m.set(name, TypeFloat, v) }
func (m *Message) SetDouble(name string, v float64) error { return m.set(name, TypeDouble, v) }
func (m *Message) SetStr(name string, v string) error     { return m.set(name, TypeString, v) }
func (m *Message) SetEnum(name string, v string) error    { return m.set(name, TypeEnum, v) }
func (m *Message) SetActorID(name string, v UniqueID) error {
	return m.set(name, TypeActorID, v)
}
func (m *Message) SetVec3(name string, v Vec3) error { return m.set(name, TypeVec3, v) }
func (m *Message) SetStringList(name string, v []string) error {
	return m.set(name, TypeStringList, append([]string{}, v...))
}

func (m *Message) GetBool(name string) (bool, error) {
	v, err := m.get(name, TypeBool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (m *Message) GetInt(name string) (int32, error) {
	v, err := m.get(name, TypeInt)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func (m *Message) GetInt64(name string) (int64, error) {
	v, err := m.get(name, TypeInt64)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (m *Message) GetFloat(name string) (float32, error) {
	v, err := m.get(name, TypeFloat)
	if err != nil {
		return 0, err
	}
	return v.(float32), nil
}

func (m *Message) GetDouble(name string) (float64, error) {
	v, err := m.get(name, TypeDouble)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (m *Message) GetStr(name string) (string, error) {
	v, err := m.get(name, TypeString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Message) GetEnum(name string) (string, error) {
	v, err := m.get(name, TypeEnum)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Message) GetActorID(name string) (UniqueID, error) {
	v, err := m.get(name, TypeActorID)
	if err != nil {
		return "", err
	}
	return v.(UniqueID), nil
}

func (m *Message) GetVec3(name string) (Vec3, error) {
	v, err := m.get(name, TypeVec3)
	if err != nil {
		return Vec3{}, err
	}
	return v.(Vec3), nil
}

func (m *Message) GetStringList(name string) ([]string, error) {
	v, err := m.get(name, TypeStringList)
	if err != nil {
		return nil, err
	}
	return append([]string{}, v.([]string)...), nil
}

// Clone returns a deep copy of the message. The causing message is shared.
func (m *Message) Clone() *Message {
	c := &Message{
		typ:            m.typ,
		Source:         m.Source.Clone(),
		Destination:    m.Destination.Clone(),
		SendingActorID: m.SendingActorID,
		AboutActorID:   m.AboutActorID,
		Causing:        m.Causing,
		Delivery:       m.Delivery,
		params:         make([]*Param, len(m.params)),
		index:          make(map[string]int, len(m.index)),
	}
	for i, p := range m.params {
		c.params[i] = p.clone()
		c.index[p.name] = i
	}
	return c
}

func (m *Message) String() string {
	return fmt.Sprintf("%s/%s about=%s params=%d", m.typ.category, m.typ.name, m.AboutActorID, len(m.params))
}
