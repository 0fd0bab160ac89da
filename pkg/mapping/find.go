package mapping

import (
	"errors"
	"fmt"
)

// ErrInvalidMapping is returned when a provision's mapping is structurally
// inconsistent, such as holding more than one account id item.
var ErrInvalidMapping = errors.New("invalid mapping")

// ItemsFor returns the provision's items usable for purpose, in catalog order.
//
// Propagation and Synchronization select their own items plus Both items;
// Both selects every item except None; None selects only None items.
func ItemsFor(p *Provision, purpose Purpose) []Item {
	if p == nil {
		return []Item{}
	}
	items := make([]Item, 0, len(p.Items))
	for _, it := range p.Items {
		if purposeMatches(it.Purpose, purpose) {
			items = append(items, it)
		}
	}
	return items
}

func purposeMatches(item, requested Purpose) bool {
	switch requested {
	case PurposePropagation, PurposeSynchronization:
		return item == requested || item == PurposeBoth
	case PurposeBoth:
		return item != PurposeNone
	case PurposeNone:
		return item == PurposeNone
	default:
		return false
	}
}

// FindByKind returns the items of the given kind.
func FindByKind(items []Item, kind Kind) []Item {
	return filter(items, func(it Item) bool { return it.Kind == kind })
}

// FindByName returns the items bound to the internal attribute name.
func FindByName(items []Item, intAttrName string) []Item {
	return filter(items, func(it Item) bool { return it.IntAttrName == intAttrName })
}

// Find returns the items bound to the internal attribute name with the given kind.
func Find(items []Item, intAttrName string, kind Kind) []Item {
	return filter(items, func(it Item) bool { return it.IntAttrName == intAttrName && it.Kind == kind })
}

// FindExt returns the items targeting the external attribute name.
func FindExt(items []Item, extAttrName string) []Item {
	return filter(items, func(it Item) bool { return it.ExtAttrName == extAttrName })
}

func filter(items []Item, keep func(Item) bool) []Item {
	out := []Item{}
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// AccountIDItem returns the single account id item, nil if there is none, or
// ErrInvalidMapping if more than one item claims the role.
func AccountIDItem(items []Item) (*Item, error) {
	var found *Item
	for i := range items {
		if !items[i].AccountID {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: account id claimed by both %s and %s", ErrInvalidMapping, found, items[i])
		}
		found = &items[i]
	}
	return found, nil
}

// PasswordItems returns the items flagged as carrying the password.
func PasswordItems(items []Item) []Item {
	return filter(items, func(it Item) bool { return it.Password || it.Kind == KindPassword })
}

// Validate checks the invariants of a provision: at most one account id
// item, and items unique by owning entity kind, internal name and kind.
func Validate(p *Provision) error {
	if _, err := AccountIDItem(p.Items); err != nil {
		return fmt.Errorf("provision %s: %w", p.AnyType, err)
	}
	type key struct {
		entity string
		name   string
		kind   Kind
	}
	seen := make(map[key]struct{}, len(p.Items))
	for _, it := range p.Items {
		k := key{it.Entity.String(), it.IntAttrName, it.Kind}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("provision %s: %w: duplicate item %s", p.AnyType, ErrInvalidMapping, it)
		}
		seen[k] = struct{}{}
	}
	return nil
}
