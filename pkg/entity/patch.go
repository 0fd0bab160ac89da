package entity

import (
	"fmt"
	"maps"
	"slices"
	"sort"
)

// AttrMod describes a value-level change of one attribute.
type AttrMod struct {
	Schema            string   `yaml:"schema" json:"schema"`
	ValuesToBeAdded   []string `yaml:"values_to_be_added,omitempty" json:"values_to_be_added,omitempty"`
	ValuesToBeRemoved []string `yaml:"values_to_be_removed,omitempty" json:"values_to_be_removed,omitempty"`
}

// IsEmpty reports whether the modification adds or removes nothing.
func (m AttrMod) IsEmpty() bool {
	return len(m.ValuesToBeAdded) == 0 && len(m.ValuesToBeRemoved) == 0
}

// Patch is the structural difference needed to turn an original entity into
// an updated one. Empty scalar fields mean "unchanged".
//
// An attribute listed both in a ToRemove list and in the matching ToUpdate
// list is replaced: the old values are dropped before the new ones are added.
type Patch struct {
	Key  string `yaml:"key" json:"key"`
	Kind Kind   `yaml:"kind" json:"kind"`

	Realm      string `yaml:"realm,omitempty" json:"realm,omitempty"`
	Username   string `yaml:"username,omitempty" json:"username,omitempty"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Password   string `yaml:"password,omitempty" json:"-"`
	UserOwner  string `yaml:"user_owner,omitempty" json:"user_owner,omitempty"`
	GroupOwner string `yaml:"group_owner,omitempty" json:"group_owner,omitempty"`

	PlainToRemove []string  `yaml:"plain_to_remove,omitempty" json:"plain_to_remove,omitempty"`
	PlainToUpdate []AttrMod `yaml:"plain_to_update,omitempty" json:"plain_to_update,omitempty"`

	DerivedToAdd    []string `yaml:"derived_to_add,omitempty" json:"derived_to_add,omitempty"`
	DerivedToRemove []string `yaml:"derived_to_remove,omitempty" json:"derived_to_remove,omitempty"`

	VirtualToRemove []string  `yaml:"virtual_to_remove,omitempty" json:"virtual_to_remove,omitempty"`
	VirtualToUpdate []AttrMod `yaml:"virtual_to_update,omitempty" json:"virtual_to_update,omitempty"`

	ResourcesToAdd    []string `yaml:"resources_to_add,omitempty" json:"resources_to_add,omitempty"`
	ResourcesToRemove []string `yaml:"resources_to_remove,omitempty" json:"resources_to_remove,omitempty"`

	MembershipsToAdd    []string `yaml:"memberships_to_add,omitempty" json:"memberships_to_add,omitempty"`
	MembershipsToRemove []string `yaml:"memberships_to_remove,omitempty" json:"memberships_to_remove,omitempty"`
}

// IsEmpty reports whether applying the patch would change nothing.
func (p *Patch) IsEmpty() bool {
	return p.Realm == "" && p.Username == "" && p.Name == "" && p.Password == "" &&
		p.UserOwner == "" && p.GroupOwner == "" &&
		len(p.PlainToRemove) == 0 && len(p.PlainToUpdate) == 0 &&
		len(p.DerivedToAdd) == 0 && len(p.DerivedToRemove) == 0 &&
		len(p.VirtualToRemove) == 0 && len(p.VirtualToUpdate) == 0 &&
		len(p.ResourcesToAdd) == 0 && len(p.ResourcesToRemove) == 0 &&
		len(p.MembershipsToAdd) == 0 && len(p.MembershipsToRemove) == 0
}

// Diff computes the patch turning original into updated.
//
// With incremental set, nothing present only in original is removed.
// Results are sorted by name so equal inputs always yield equal patches.
func Diff(updated, original *Entity, incremental bool) (*Patch, error) {
	if updated.Key != original.Key {
		return nil, fmt.Errorf("cannot diff entities with different keys %q and %q", updated.Key, original.Key)
	}
	if updated.Kind != original.Kind {
		return nil, fmt.Errorf("cannot diff %s against %s", updated.Kind, original.Kind)
	}

	p := &Patch{Key: updated.Key, Kind: updated.Kind}

	// Plain attributes: drop those missing from updated, and those updated to empty.
	if !incremental {
		p.PlainToRemove = missingNames(original.Plain, updated.Plain)
	}
	nonEmpty := make(map[string]*Attr, len(updated.Plain))
	for name, attr := range updated.Plain {
		if attr.IsEmpty() {
			p.PlainToRemove = appendUnique(p.PlainToRemove, name)
			continue
		}
		nonEmpty[name] = attr
	}
	p.PlainToRemove, p.PlainToUpdate = populate(nonEmpty, original.Plain, p.PlainToRemove, p.PlainToUpdate)

	// Derived attributes are added or removed by name only.
	if !incremental {
		p.DerivedToRemove = missingNames(original.Derived, updated.Derived)
	}
	p.DerivedToAdd = missingNames(updated.Derived, original.Derived)

	if !incremental {
		p.VirtualToRemove = missingNames(original.Virtual, updated.Virtual)
	}
	p.VirtualToRemove, p.VirtualToUpdate = populate(updated.Virtual, original.Virtual, p.VirtualToRemove, p.VirtualToUpdate)

	p.ResourcesToAdd = sortedDifference(updated.Resources, original.Resources)
	if !incremental {
		p.ResourcesToRemove = sortedDifference(original.Resources, updated.Resources)
	}

	if original.Realm != "" && updated.Realm != "" && original.Realm != updated.Realm {
		p.Realm = updated.Realm
	}

	switch updated.Kind {
	case KindUser:
		if updated.Password != "" && original.Password != updated.Password {
			p.Password = updated.Password
		}
		if original.Username != "" && updated.Username != "" && original.Username != updated.Username {
			p.Username = updated.Username
		}
	case KindGroup:
		if updated.Name != "" && original.Name != updated.Name {
			p.Name = updated.Name
		}
		if updated.UserOwner != original.UserOwner {
			p.UserOwner = updated.UserOwner
		}
		if updated.GroupOwner != original.GroupOwner {
			p.GroupOwner = updated.GroupOwner
		}
	case KindAnyObject:
		if updated.Name != "" && original.Name != updated.Name {
			p.Name = updated.Name
		}
	}

	if updated.Kind == KindUser || updated.Kind == KindAnyObject {
		p.MembershipsToAdd = sortedDifference(updated.Memberships, original.Memberships)
		if !incremental {
			p.MembershipsToRemove = sortedDifference(original.Memberships, updated.Memberships)
		}
	}

	sort.Strings(p.PlainToRemove)
	sort.Strings(p.VirtualToRemove)
	return p, nil
}

// populate records value changes of every updated attribute. A changed
// attribute is replaced: its name goes to the remove list and its new
// values to the update list, with the original values to be removed.
func populate(updated, original map[string]*Attr, toRemove []string, toUpdate []AttrMod) ([]string, []AttrMod) {
	for _, name := range slices.Sorted(maps.Keys(updated)) {
		attr := updated[name]
		updatedValues := valueSet(attr.EffectiveValues())
		var originalValues map[string]struct{}
		if orig, ok := original[name]; ok {
			originalValues = valueSet(orig.EffectiveValues())
		}
		if maps.Equal(updatedValues, originalValues) {
			continue
		}

		mod := AttrMod{Schema: name}
		delete(updatedValues, "")
		if !attr.ReadOnly {
			mod.ValuesToBeAdded = slices.Sorted(maps.Keys(updatedValues))
			if len(mod.ValuesToBeAdded) > 0 {
				toRemove = appendUnique(toRemove, name)
			}
		}
		mod.ValuesToBeRemoved = slices.Sorted(maps.Keys(originalValues))

		if !mod.IsEmpty() {
			toUpdate = append(toUpdate, mod)
		}
	}
	return toRemove, toUpdate
}

// Apply returns a copy of original with p applied.
func Apply(original *Entity, p *Patch) *Entity {
	e := original.Clone()
	e.EnsureMaps()

	if p.Realm != "" {
		e.Realm = p.Realm
	}
	if p.Username != "" {
		e.Username = p.Username
	}
	if p.Name != "" {
		e.Name = p.Name
	}
	if p.Password != "" {
		e.Password = p.Password
	}
	if p.UserOwner != "" {
		e.UserOwner = p.UserOwner
	}
	if p.GroupOwner != "" {
		e.GroupOwner = p.GroupOwner
	}

	applyAttrs(e.Plain, p.PlainToRemove, p.PlainToUpdate, func(name string) *Attr {
		return &Attr{Schema: name}
	})
	for _, name := range p.DerivedToRemove {
		delete(e.Derived, name)
	}
	for _, name := range p.DerivedToAdd {
		if _, ok := e.Derived[name]; !ok {
			e.Derived[name] = &Attr{Schema: name}
		}
	}
	applyAttrs(e.Virtual, p.VirtualToRemove, p.VirtualToUpdate, func(name string) *Attr {
		return &Attr{Schema: name}
	})

	for _, r := range p.ResourcesToRemove {
		e.Resources = slices.DeleteFunc(e.Resources, func(s string) bool { return s == r })
	}
	for _, r := range p.ResourcesToAdd {
		e.AddResource(r)
	}
	for _, m := range p.MembershipsToRemove {
		e.Memberships = slices.DeleteFunc(e.Memberships, func(s string) bool { return s == m })
	}
	for _, m := range p.MembershipsToAdd {
		e.AddMembership(m)
	}
	return e
}

func applyAttrs(attrs map[string]*Attr, toRemove []string, toUpdate []AttrMod, create func(string) *Attr) {
	for _, name := range toRemove {
		delete(attrs, name)
	}
	for _, mod := range toUpdate {
		attr, ok := attrs[mod.Schema]
		if !ok {
			attr = create(mod.Schema)
			attrs[mod.Schema] = attr
		}
		for _, v := range mod.ValuesToBeRemoved {
			attr.Values = slices.DeleteFunc(attr.Values, func(s string) bool { return s == v })
		}
		for _, v := range mod.ValuesToBeAdded {
			if !slices.Contains(attr.Values, v) {
				attr.Values = append(attr.Values, v)
			}
		}
		if attr.IsEmpty() {
			delete(attrs, mod.Schema)
		}
	}
}

func valueSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// missingNames returns the sorted keys of from that are absent in other.
func missingNames(from, other map[string]*Attr) []string {
	var names []string
	for name := range from {
		if _, ok := other[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// sortedDifference returns the sorted elements of a not contained in b.
func sortedDifference(a, b []string) []string {
	var out []string
	for _, s := range a {
		if !slices.Contains(b, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
