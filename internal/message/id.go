package message

import "github.com/google/uuid"

// UniqueID identifies actors and machines. It holds the canonical string
// form of a UUID; the empty string is the null id.
type UniqueID string

func NewUniqueID() UniqueID {
	return UniqueID(uuid.NewString())
}

func (id UniqueID) IsNull() bool   { return id == "" }
func (id UniqueID) String() string { return string(id) }
