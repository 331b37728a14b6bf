package message

import "time"

// MachineInfo identifies a simulation endpoint. Exactly one instance per
// process describes the local machine; the rest describe remote peers.
type MachineInfo struct {
	ID        UniqueID
	Name      string
	Host      string
	IP        string
	Port      int
	Ping      int
	Timestamp int64
}

// NewMachineInfo creates a machine description with a fresh id.
func NewMachineInfo(name string) *MachineInfo {
	return &MachineInfo{
		ID:        NewUniqueID(),
		Name:      name,
		Timestamp: time.Now().Unix(),
	}
}

// Equal reports whether both describe the same endpoint. Only ids are compared.
func (m *MachineInfo) Equal(other *MachineInfo) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.ID == other.ID
}

// Less orders machines by unique id.
func (m *MachineInfo) Less(other *MachineInfo) bool {
	return m.ID < other.ID
}

func (m *MachineInfo) Clone() *MachineInfo {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

func (m *MachineInfo) String() string {
	if m == nil {
		return "<nil>"
	}
	return m.Name + "/" + string(m.ID)
}
