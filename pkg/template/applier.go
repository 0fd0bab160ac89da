// Package template overlays configured template entities onto translated
// entities.
package template

import (
	"maps"
	"slices"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/expression"
)

// Applier fills unset fields and attributes of an entity from a template.
type Applier struct {
	eval expression.Evaluator
}

// NewApplier creates an applier evaluating template values with eval.
func NewApplier(eval expression.Evaluator) *Applier {
	return &Applier{eval: eval}
}

// Apply overlays tmpl onto e. Only empty fields and attributes are filled;
// template values are expressions evaluated against e's current state, and
// blank results are skipped. A template realm always overrides. A nil
// template is a no-op.
func (a *Applier) Apply(e, tmpl *entity.Entity) {
	if tmpl == nil {
		return
	}
	e.EnsureMaps()

	if tmpl.Realm != "" {
		e.Realm = tmpl.Realm
	}

	switch e.Kind {
	case entity.KindUser:
		a.fill(&e.Username, tmpl.Username, e)
		a.fill(&e.Password, tmpl.Password, e)
	case entity.KindGroup:
		a.fill(&e.Name, tmpl.Name, e)
		a.fill(&e.UserOwner, tmpl.UserOwner, e)
		a.fill(&e.GroupOwner, tmpl.GroupOwner, e)
	default:
		a.fill(&e.Name, tmpl.Name, e)
	}

	for _, name := range slices.Sorted(maps.Keys(tmpl.Plain)) {
		if v, ok := a.attrValue(e.Plain[name], tmpl.Plain[name], e); ok {
			attr := tmpl.Plain[name].Clone()
			attr.Schema, attr.Values, attr.UniqueValue = name, []string{v}, ""
			e.SetPlain(attr)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(tmpl.Virtual)) {
		if v, ok := a.attrValue(e.Virtual[name], tmpl.Virtual[name], e); ok {
			e.SetVirtual(&entity.Attr{Schema: name, Values: []string{v}})
		}
	}
	for name := range tmpl.Derived {
		if _, ok := e.Derived[name]; !ok {
			e.SetDerived(&entity.Attr{Schema: name})
		}
	}

	for _, r := range tmpl.Resources {
		e.AddResource(r)
	}
	if e.Kind != entity.KindGroup {
		for _, m := range tmpl.Memberships {
			e.AddMembership(m)
		}
	}
}

// fill sets *field to the evaluation of expr when *field is blank.
func (a *Applier) fill(field *string, expr string, e *entity.Entity) {
	if !expression.IsBlank(*field) || expr == "" {
		return
	}
	if v := a.eval.Evaluate(expr, expression.ForEntity(e)); !expression.IsBlank(v) {
		*field = v
	}
}

// attrValue evaluates the first template value when current is empty.
func (a *Applier) attrValue(current, tmpl *entity.Attr, e *entity.Entity) (string, bool) {
	if !current.IsEmpty() {
		return "", false
	}
	values := tmpl.EffectiveValues()
	if len(values) == 0 || values[0] == "" {
		return "", false
	}
	v := a.eval.Evaluate(values[0], expression.ForEntity(e))
	if expression.IsBlank(v) {
		logger.Debug("template value evaluated blank, skipped", logger.Schema(tmpl.Schema))
		return "", false
	}
	return v, true
}
