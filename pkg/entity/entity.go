package entity

import (
	"context"
	"errors"
	"slices"
)

// ErrNotFound is returned by Lookup implementations for unknown keys.
var ErrNotFound = errors.New("entity not found")

// Attr is a named, multi-valued attribute.
//
// Values hold canonical string forms (see Coerce). For plain attributes bound
// to a unique schema, UniqueValue takes precedence over Values.
type Attr struct {
	Schema      string   `yaml:"schema" json:"schema"`
	Type        AttrType `yaml:"type,omitempty" json:"type,omitempty"`
	Values      []string `yaml:"values,omitempty" json:"values,omitempty"`
	UniqueValue string   `yaml:"unique_value,omitempty" json:"unique_value,omitempty"`
	ReadOnly    bool     `yaml:"readonly,omitempty" json:"readonly,omitempty"`
}

// IsEmpty reports whether the attribute holds no value.
func (a *Attr) IsEmpty() bool {
	return a == nil || (a.UniqueValue == "" && len(a.Values) == 0)
}

// EffectiveValues returns the unique value when set, otherwise all values.
func (a *Attr) EffectiveValues() []string {
	if a == nil {
		return nil
	}
	if a.UniqueValue != "" {
		return []string{a.UniqueValue}
	}
	return a.Values
}

// Clone returns a deep copy.
func (a *Attr) Clone() *Attr {
	if a == nil {
		return nil
	}
	c := *a
	c.Values = slices.Clone(a.Values)
	return &c
}

// Entity is the internal representation of a user, group, any object or
// group membership.
type Entity struct {
	Kind  Kind   `yaml:"kind" json:"kind"`
	Type  string `yaml:"type" json:"type"`
	Key   string `yaml:"key" json:"key"`
	Realm string `yaml:"realm" json:"realm"`

	// Username is set for users, Name for groups and any objects.
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`

	// Password is a clear-text value carried transiently during translation.
	// EncodedPassword is the stored bcrypt hash.
	Password        string `yaml:"password,omitempty" json:"-"`
	EncodedPassword string `yaml:"encoded_password,omitempty" json:"encoded_password,omitempty"`

	// Group owners.
	UserOwner  string `yaml:"user_owner,omitempty" json:"user_owner,omitempty"`
	GroupOwner string `yaml:"group_owner,omitempty" json:"group_owner,omitempty"`

	Plain   map[string]*Attr `yaml:"plain,omitempty" json:"plain,omitempty"`
	Derived map[string]*Attr `yaml:"derived,omitempty" json:"derived,omitempty"`
	Virtual map[string]*Attr `yaml:"virtual,omitempty" json:"virtual,omitempty"`

	Resources   []string `yaml:"resources,omitempty" json:"resources,omitempty"`
	Memberships []string `yaml:"memberships,omitempty" json:"memberships,omitempty"`

	// Subject is the user a membership belongs to. Only set for KindMembership.
	Subject *Entity `yaml:"-" json:"-"`
}

// New creates an empty entity of the given kind and any type.
func New(kind Kind, anyType string) *Entity {
	return &Entity{
		Kind:    kind,
		Type:    anyType,
		Plain:   make(map[string]*Attr),
		Derived: make(map[string]*Attr),
		Virtual: make(map[string]*Attr),
	}
}

// NewUser creates a user entity.
func NewUser(key, username string) *Entity {
	e := New(KindUser, AnyTypeUser)
	e.Key = key
	e.Username = username
	return e
}

// NewGroup creates a group entity.
func NewGroup(key, name string) *Entity {
	e := New(KindGroup, AnyTypeGroup)
	e.Key = key
	e.Name = name
	return e
}

// NewAnyObject creates an any object of the given type.
func NewAnyObject(anyType, key, name string) *Entity {
	e := New(KindAnyObject, anyType)
	e.Key = key
	e.Name = name
	return e
}

// NewMembership creates the membership of subject in group.
func NewMembership(key string, subject *Entity, group string) *Entity {
	e := New(KindMembership, subject.Type)
	e.Key = key
	e.Name = group
	e.Subject = subject
	return e
}

// EnsureMaps initializes nil attribute maps, typically after decoding.
func (e *Entity) EnsureMaps() {
	if e.Plain == nil {
		e.Plain = make(map[string]*Attr)
	}
	if e.Derived == nil {
		e.Derived = make(map[string]*Attr)
	}
	if e.Virtual == nil {
		e.Virtual = make(map[string]*Attr)
	}
}

// DisplayName returns the username for users and the name otherwise.
func (e *Entity) DisplayName() string {
	if e.Kind == KindUser {
		return e.Username
	}
	return e.Name
}

func (e *Entity) PlainAttr(schema string) *Attr   { return e.Plain[schema] }
func (e *Entity) DerivedAttr(schema string) *Attr { return e.Derived[schema] }
func (e *Entity) VirtualAttr(schema string) *Attr { return e.Virtual[schema] }

// SetPlain stores a plain attribute, replacing any previous one.
func (e *Entity) SetPlain(a *Attr) {
	e.EnsureMaps()
	e.Plain[a.Schema] = a
}

// SetDerived stores a derived attribute placeholder or value.
func (e *Entity) SetDerived(a *Attr) {
	e.EnsureMaps()
	e.Derived[a.Schema] = a
}

// SetVirtual stores a virtual attribute.
func (e *Entity) SetVirtual(a *Attr) {
	e.EnsureMaps()
	e.Virtual[a.Schema] = a
}

// AddResource appends key to the resources, keeping them unique.
func (e *Entity) AddResource(key string) {
	if !slices.Contains(e.Resources, key) {
		e.Resources = append(e.Resources, key)
	}
}

// HasResource reports whether the entity is assigned to the resource.
func (e *Entity) HasResource(key string) bool {
	return slices.Contains(e.Resources, key)
}

// AddMembership appends a group key, keeping memberships unique.
func (e *Entity) AddMembership(group string) {
	if !slices.Contains(e.Memberships, group) {
		e.Memberships = append(e.Memberships, group)
	}
}

// Clone returns a deep copy. The membership subject is shared, not copied.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Plain = cloneAttrs(e.Plain)
	c.Derived = cloneAttrs(e.Derived)
	c.Virtual = cloneAttrs(e.Virtual)
	c.Resources = slices.Clone(e.Resources)
	c.Memberships = slices.Clone(e.Memberships)
	return &c
}

func cloneAttrs(in map[string]*Attr) map[string]*Attr {
	out := make(map[string]*Attr, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

// ResolveRealOwner returns the subject that owns e's resources and virtual
// values. A membership resolves to the user it belongs to; anything else
// resolves to itself.
func ResolveRealOwner(e *Entity) *Entity {
	if e != nil && e.Kind == KindMembership && e.Subject != nil {
		return e.Subject
	}
	return e
}

// Lookup retrieves related entities such as group owners and the groups a
// user belongs to.
type Lookup interface {
	// Get returns the entity of the given kind and key, or ErrNotFound.
	Get(ctx context.Context, kind Kind, key string) (*Entity, error)
}
