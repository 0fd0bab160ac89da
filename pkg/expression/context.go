package expression

import (
	"github.com/marmos91/attrsync/pkg/entity"
)

// Vars is the variable context an expression is evaluated against.
type Vars map[string]any

// NewVars returns an empty context.
func NewVars() Vars {
	return make(Vars)
}

// ForEntity builds the context used by templates and NAME resolution:
// entity fields first, then plain attributes, each shadowing the previous.
func ForEntity(e *entity.Entity) Vars {
	return NewVars().WithFields(e).WithPlain(e)
}

// WithFields adds the entity's scalar fields.
func (v Vars) WithFields(e *entity.Entity) Vars {
	v["key"] = e.Key
	v["type"] = e.Type
	v["realm"] = e.Realm
	switch e.Kind {
	case entity.KindUser:
		v["username"] = e.Username
	case entity.KindGroup:
		v["name"] = e.Name
		v["userOwner"] = e.UserOwner
		v["groupOwner"] = e.GroupOwner
	default:
		v["name"] = e.Name
	}
	return v
}

// WithPlain adds plain attributes.
func (v Vars) WithPlain(e *entity.Entity) Vars {
	for name, attr := range e.Plain {
		v[name] = valueOf(attr.EffectiveValues())
	}
	return v
}

// WithVirtual adds virtual attributes.
func (v Vars) WithVirtual(e *entity.Entity) Vars {
	for name, attr := range e.Virtual {
		v[name] = valueOf(attr.Values)
	}
	return v
}

// WithValues adds precomputed values, such as derived attributes.
func (v Vars) WithValues(values map[string][]string) Vars {
	for name, vals := range values {
		v[name] = valueOf(vals)
	}
	return v
}

// valueOf renders single values as strings and multiple values as slices.
func valueOf(values []string) any {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	default:
		return append([]string(nil), values...)
	}
}
