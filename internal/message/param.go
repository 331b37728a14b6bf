package message

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DataType is the closed set of parameter value types a message can carry.
type DataType uint8

const (
	TypeBool DataType = iota + 1
	TypeInt
	TypeInt64
	TypeFloat
	TypeDouble
	TypeString
	TypeEnum
	TypeActorID
	TypeVec3
	TypeStringList
)

var dataTypeNames = map[DataType]string{
	TypeBool:       "bool",
	TypeInt:        "int",
	TypeInt64:      "int64",
	TypeFloat:      "float",
	TypeDouble:     "double",
	TypeString:     "string",
	TypeEnum:       "enum",
	TypeActorID:    "actor",
	TypeVec3:       "vec3",
	TypeStringList: "stringlist",
}

func (d DataType) String() string {
	if s, ok := dataTypeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", int(d))
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, error) {
	for d, name := range dataTypeNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("data type %q: %w", s, ErrBadValue)
}

type Vec3 [3]float64

// Param is one named, typed message parameter. The Go type of value is fixed
// by dtype: bool, int32, int64, float32, float64, string (string and enum),
// UniqueID, Vec3 or []string.
type Param struct {
	name  string
	dtype DataType
	value any
}

func (p *Param) Name() string       { return p.name }
func (p *Param) DataType() DataType { return p.dtype }
func (p *Param) Value() any         { return p.value }

// String renders the value in the form accepted by parseValue.
func (p *Param) String() string {
	return formatValue(p.dtype, p.value)
}

func (p *Param) clone() *Param {
	c := *p
	if l, ok := p.value.([]string); ok {
		c.value = append([]string(nil), l...)
	}
	return &c
}

func zeroValue(d DataType) any {
	switch d {
	case TypeBool:
		return false
	case TypeInt:
		return int32(0)
	case TypeInt64:
		return int64(0)
	case TypeFloat:
		return float32(0)
	case TypeDouble:
		return float64(0)
	case TypeString, TypeEnum:
		return ""
	case TypeActorID:
		return UniqueID("")
	case TypeVec3:
		return Vec3{}
	case TypeStringList:
		return []string{}
	}
	return nil
}

// checkValue reports whether v has the Go type that d stores.
func checkValue(d DataType, v any) bool {
	switch d {
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeInt:
		_, ok := v.(int32)
		return ok
	case TypeInt64:
		_, ok := v.(int64)
		return ok
	case TypeFloat:
		_, ok := v.(float32)
		return ok
	case TypeDouble:
		_, ok := v.(float64)
		return ok
	case TypeString, TypeEnum:
		_, ok := v.(string)
		return ok
	case TypeActorID:
		_, ok := v.(UniqueID)
		return ok
	case TypeVec3:
		_, ok := v.(Vec3)
		return ok
	case TypeStringList:
		_, ok := v.([]string)
		return ok
	}
	return false
}

func formatValue(d DataType, v any) string {
	switch d {
	case TypeBool:
		return strconv.FormatBool(v.(bool))
	case TypeInt:
		return strconv.FormatInt(int64(v.(int32)), 10)
	case TypeInt64:
		return strconv.FormatInt(v.(int64), 10)
	case TypeFloat:
		return strconv.FormatFloat(float64(v.(float32)), 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64)
	case TypeString, TypeEnum:
		return v.(string)
	case TypeActorID:
		return string(v.(UniqueID))
	case TypeVec3:
		vec := v.(Vec3)
		return strconv.FormatFloat(vec[0], 'g', -1, 64) + " " +
			strconv.FormatFloat(vec[1], 'g', -1, 64) + " " +
			strconv.FormatFloat(vec[2], 'g', -1, 64)
	case TypeStringList:
		// JSON keeps list entries containing separators intact.
		b, _ := json.Marshal(v.([]string))
		return string(b)
	}
	return ""
}

func parseValue(d DataType, s string) (any, error) {
	switch d {
	case TypeBool:
		return strconv.ParseBool(s)
	case TypeInt:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case TypeInt64:
		return strconv.ParseInt(s, 10, 64)
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	case TypeDouble:
		return strconv.ParseFloat(s, 64)
	case TypeString, TypeEnum:
		return s, nil
	case TypeActorID:
		return UniqueID(s), nil
	case TypeVec3:
		fields := strings.Fields(s)
		if len(fields) != 3 {
			return nil, fmt.Errorf("vec3 %q needs 3 components", s)
		}
		var vec Vec3
		for i, f := range fields {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, err
			}
			vec[i] = x
		}
		return vec, nil
	case TypeStringList:
		var l []string
		if err := json.Unmarshal([]byte(s), &l); err != nil {
			return nil, err
		}
		if l == nil {
			l = []string{}
		}
		return l, nil
	}
	return nil, fmt.Errorf("data type %d: %w", d, ErrBadValue)
}
