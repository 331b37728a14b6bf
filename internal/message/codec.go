package message

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Wire form of a message. Parameter values travel as their own string form so
// every data type shares one representation.
type envelope struct {
	Type        string       `json:"type"`
	Category    string       `json:"category"`
	ID          uint16       `json:"id"`
	Source      *machineWire `json:"source,omitempty"`
	Destination *machineWire `json:"destination,omitempty"`
	Sending     UniqueID     `json:"sending,omitempty"`
	About       UniqueID     `json:"about,omitempty"`
	Causing     *envelope    `json:"causing,omitempty"`
	Params      []paramWire  `json:"params"`
}

type machineWire struct {
	ID        UniqueID `json:"id"`
	Name      string   `json:"name,omitempty"`
	Host      string   `json:"host,omitempty"`
	IP        string   `json:"ip,omitempty"`
	Port      int      `json:"port,omitempty"`
	Ping      int      `json:"ping,omitempty"`
	Timestamp int64    `json:"ts,omitempty"`
}

type paramWire struct {
	Name  string `json:"n"`
	Type  string `json:"t"`
	Value string `json:"v"`
}

func toMachineWire(m *MachineInfo) *machineWire {
	if m == nil {
		return nil
	}
	return &machineWire{ID: m.ID, Name: m.Name, Host: m.Host, IP: m.IP, Port: m.Port, Ping: m.Ping, Timestamp: m.Timestamp}
}

func (w *machineWire) machine() *MachineInfo {
	if w == nil {
		return nil
	}
	return &MachineInfo{ID: w.ID, Name: w.Name, Host: w.Host, IP: w.IP, Port: w.Port, Ping: w.Ping, Timestamp: w.Timestamp}
}

func (m *Message) envelope() *envelope {
	e := &envelope{
		Type:        m.typ.name,
		Category:    m.typ.category,
		ID:          m.typ.id,
		Source:      toMachineWire(m.Source),
		Destination: toMachineWire(m.Destination),
		Sending:     m.SendingActorID,
		About:       m.AboutActorID,
		Params:      make([]paramWire, 0, len(m.params)),
	}
	if m.Causing != nil {
		e.Causing = m.Causing.envelope()
	}
	for _, p := range m.params {
		e.Params = append(e.Params, paramWire{Name: p.name, Type: p.dtype.String(), Value: p.String()})
	}
	return e
}

// ToString serializes the message. Factory.FromString reverses it.
func (m *Message) ToString() (string, error) {
	b, err := json.Marshal(m.envelope())
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", m.typ, err)
	}
	return string(b), nil
}

// FromString decodes a message produced by ToString. The type must be known
// to the factory's registry.
func (f *Factory) FromString(s string) (*Message, error) {
	var e envelope
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return f.fromEnvelope(&e)
}

func (f *Factory) fromEnvelope(e *envelope) (*Message, error) {
	t := f.types.Find(e.Type, e.Category)
	if t == nil {
		return nil, fmt.Errorf("decode %q/%q: %w", e.Category, e.Type, ErrUnknownType)
	}
	m := New(t)
	m.Source = e.Source.machine()
	m.Destination = e.Destination.machine()
	m.SendingActorID = e.Sending
	m.AboutActorID = e.About
	if e.Causing != nil {
		c, err := f.fromEnvelope(e.Causing)
		if err != nil {
			return nil, fmt.Errorf("decode causing message: %w", err)
		}
		m.Causing = c
	}
	for _, pw := range e.Params {
		d, err := ParseDataType(pw.Type)
		if err != nil {
			return nil, fmt.Errorf("decode param %q: %w", pw.Name, err)
		}
		v, err := parseValue(d, pw.Value)
		if err != nil {
			return nil, fmt.Errorf("decode param %q value %q: %w", pw.Name, pw.Value, ErrBadValue)
		}
		if err := m.set(pw.Name, d, v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// PeekTypeName returns the type name and category of an encoded message
// without decoding it.
func PeekTypeName(data []byte) (name, category string, ok bool) {
	res := gjson.GetManyBytes(data, "type", "category")
	if !res[0].Exists() {
		return "", "", false
	}
	return res[0].String(), res[1].String(), true
}
