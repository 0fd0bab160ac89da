// Package connector defines the boundary types exchanged with external
// resources and the gateway used to fetch and push them.
package connector

import (
	"log/slog"
	"slices"
	"strings"
)

// Special attribute names understood by every connector.
const (
	NameAttr     = "__NAME__"
	UIDAttr      = "__UID__"
	PasswordAttr = "__PASSWORD__"
	EnableAttr   = "__ENABLE__"
)

// Attribute is a named list of raw values. Values may be strings, byte
// slices, numbers, booleans or Secret wrappers.
type Attribute struct {
	Name   string
	Values []any
}

// NewAttribute creates an attribute with the given values.
func NewAttribute(name string, values ...any) Attribute {
	return Attribute{Name: name, Values: values}
}

// IsSpecial reports whether the name is one of the reserved __X__ names.
func IsSpecial(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// First returns the first value, or nil.
func (a *Attribute) First() any {
	if a == nil || len(a.Values) == 0 {
		return nil
	}
	return a.Values[0]
}

// Strings returns every value decoded to a string.
func (a *Attribute) Strings() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.Values))
	for _, v := range a.Values {
		out = append(out, DecodeSecret(v))
	}
	return out
}

// LogValue implements slog.LogValuer; password values are masked.
func (a Attribute) LogValue() slog.Value {
	if a.Name == PasswordAttr {
		return slog.GroupValue(slog.String("name", a.Name), slog.String("values", "******"))
	}
	return slog.GroupValue(slog.String("name", a.Name), slog.Any("values", a.Strings()))
}

// AttributeSet is an ordered collection of attributes with unique names.
type AttributeSet struct {
	attrs []Attribute
}

// Get returns the named attribute, or nil.
func (s *AttributeSet) Get(name string) *Attribute {
	for i := range s.attrs {
		if s.attrs[i].Name == name {
			return &s.attrs[i]
		}
	}
	return nil
}

// Put adds the attribute, replacing one with the same name.
func (s *AttributeSet) Put(a Attribute) {
	if existing := s.Get(a.Name); existing != nil {
		existing.Values = a.Values
		return
	}
	s.attrs = append(s.attrs, a)
}

// Merge adds the attribute, or unions its values into an existing one with
// the same name. Value identity is by decoded string.
func (s *AttributeSet) Merge(a Attribute) {
	existing := s.Get(a.Name)
	if existing == nil {
		s.attrs = append(s.attrs, Attribute{Name: a.Name, Values: slices.Clone(a.Values)})
		return
	}
	seen := make(map[string]struct{}, len(existing.Values))
	for _, v := range existing.Values {
		seen[DecodeSecret(v)] = struct{}{}
	}
	for _, v := range a.Values {
		key := DecodeSecret(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		existing.Values = append(existing.Values, v)
	}
}

// Remove deletes the named attribute.
func (s *AttributeSet) Remove(name string) {
	s.attrs = slices.DeleteFunc(s.attrs, func(a Attribute) bool { return a.Name == name })
}

// Len returns the number of attributes.
func (s *AttributeSet) Len() int { return len(s.attrs) }

// All returns the attributes in insertion order.
func (s *AttributeSet) All() []Attribute {
	return slices.Clone(s.attrs)
}

// Names returns the attribute names in insertion order.
func (s *AttributeSet) Names() []string {
	names := make([]string, 0, len(s.attrs))
	for _, a := range s.attrs {
		names = append(names, a.Name)
	}
	return names
}

// Object is a connector object as seen by the mapping engine.
type Object struct {
	ObjectClass string
	UID         string
	Name        string
	Attributes  []Attribute
}

// Attribute returns the named attribute, or nil. __UID__ and __NAME__ are
// synthesized from the object identity when not present as attributes.
func (o *Object) Attribute(name string) *Attribute {
	if o == nil {
		return nil
	}
	for i := range o.Attributes {
		if o.Attributes[i].Name == name {
			return &o.Attributes[i]
		}
	}
	switch name {
	case UIDAttr:
		if o.UID != "" {
			return &Attribute{Name: UIDAttr, Values: []any{o.UID}}
		}
	case NameAttr:
		if o.Name != "" {
			return &Attribute{Name: NameAttr, Values: []any{o.Name}}
		}
	}
	return nil
}
