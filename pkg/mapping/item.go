package mapping

import (
	"fmt"
	"strings"

	"github.com/marmos91/attrsync/pkg/entity"
)

// Kind selects how a mapping item reads or writes the internal side.
type Kind int

const (
	KindPlainSchema Kind = iota
	KindDerivedSchema
	KindVirtualSchema
	KindUsername
	KindGroupName
	KindAnyObjectName
	KindPassword
	KindID
	KindGroupOwnerSchema
)

var kindNames = map[Kind]string{
	KindPlainSchema:      "PlainSchema",
	KindDerivedSchema:    "DerivedSchema",
	KindVirtualSchema:    "VirtualSchema",
	KindUsername:         "Username",
	KindGroupName:        "GroupName",
	KindAnyObjectName:    "AnyObjectName",
	KindPassword:         "Password",
	KindID:               "ID",
	KindGroupOwnerSchema: "GroupOwnerSchema",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses the textual form produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown mapping kind %q", s)
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

// IsVirtual reports whether items of this kind resolve through the
// virtual attribute cache.
func (k Kind) IsVirtual() bool {
	return k == KindVirtualSchema
}

// Purpose restricts the direction a mapping item is used in.
type Purpose int

const (
	PurposeBoth Purpose = iota
	PurposePropagation
	PurposeSynchronization
	PurposeNone
)

func (p Purpose) String() string {
	switch p {
	case PurposeBoth:
		return "BOTH"
	case PurposePropagation:
		return "PROPAGATION"
	case PurposeSynchronization:
		return "SYNCHRONIZATION"
	case PurposeNone:
		return "NONE"
	default:
		return fmt.Sprintf("Purpose(%d)", int(p))
	}
}

// ParsePurpose parses the textual form produced by Purpose.String. An empty
// string is PurposeBoth.
func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "BOTH":
		return PurposeBoth, nil
	case "PROPAGATION":
		return PurposePropagation, nil
	case "SYNCHRONIZATION":
		return PurposeSynchronization, nil
	case "NONE":
		return PurposeNone, nil
	default:
		return PurposeBoth, fmt.Errorf("unknown mapping purpose %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Purpose) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Purpose) UnmarshalText(text []byte) error {
	parsed, err := ParsePurpose(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Item is one correspondence between an internal attribute or field and an
// external connector attribute.
type Item struct {
	IntAttrName string `yaml:"int_attr_name" json:"int_attr_name" mapstructure:"int_attr_name"`
	ExtAttrName string `yaml:"ext_attr_name" json:"ext_attr_name" mapstructure:"ext_attr_name"`

	Kind   Kind        `yaml:"kind" json:"kind" mapstructure:"kind"`
	Entity entity.Kind `yaml:"entity" json:"entity" mapstructure:"entity"`

	AccountID bool `yaml:"account_id,omitempty" json:"account_id,omitempty" mapstructure:"account_id"`
	Password  bool `yaml:"password,omitempty" json:"password,omitempty" mapstructure:"password"`

	// MandatoryCondition is an expression; "true" marks the item mandatory.
	MandatoryCondition string `yaml:"mandatory_condition,omitempty" json:"mandatory_condition,omitempty" mapstructure:"mandatory_condition"`

	Multivalue bool    `yaml:"multivalue,omitempty" json:"multivalue,omitempty" mapstructure:"multivalue"`
	Purpose    Purpose `yaml:"purpose,omitempty" json:"purpose,omitempty" mapstructure:"purpose"`
}

func (it Item) String() string {
	return fmt.Sprintf("%s:%s(%s)->%s", it.Entity, it.Kind, it.IntAttrName, it.ExtAttrName)
}

// OwnedBy reports whether the item maps an attribute of an entity of kind k
// itself, rather than of its memberships or of the groups it belongs to.
func (it Item) OwnedBy(k entity.Kind) bool {
	switch it.Entity {
	case entity.KindMembership:
		return k == entity.KindMembership
	case entity.KindGroup:
		return k == entity.KindGroup
	default:
		return k != entity.KindMembership
	}
}
