package entity

import (
	"fmt"
	"strings"
)

// Kind identifies the owning entity kind of an attribute or mapping item.
type Kind int

const (
	KindUser Kind = iota
	KindGroup
	KindAnyObject
	KindMembership
)

// Built-in any type names. Any-object types use their own configured names.
const (
	AnyTypeUser  = "USER"
	AnyTypeGroup = "GROUP"
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "USER"
	case KindGroup:
		return "GROUP"
	case KindAnyObject:
		return "ANY_OBJECT"
	case KindMembership:
		return "MEMBERSHIP"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the textual form produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return KindUser, nil
	case "GROUP":
		return KindGroup, nil
	case "ANY_OBJECT", "ANYOBJECT":
		return KindAnyObject, nil
	case "MEMBERSHIP":
		return KindMembership, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KindForAnyType maps an any type name to its entity kind.
func KindForAnyType(anyType string) Kind {
	switch anyType {
	case AnyTypeUser:
		return KindUser
	case AnyTypeGroup:
		return KindGroup
	default:
		return KindAnyObject
	}
}
