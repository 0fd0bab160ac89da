package outbound

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/expression"
	"github.com/marmos91/attrsync/pkg/mapping"
)

// IntValues returns the internal values item maps for e.
//
// Items bound to groups on a non-group entity collect the values of every
// group e belongs to. Virtual items honor opts.Virtual; when it is set and
// names neither an update nor a removal for the schema, the error is
// ErrNoPendingVirtualUpdate.
func (p *Preparer) IntValues(ctx context.Context, e *entity.Entity, resource *mapping.Resource, provision *mapping.Provision, item mapping.Item, opts Options) ([]string, error) {
	if item.Entity == entity.KindGroup && e.Kind != entity.KindGroup {
		return p.groupValues(ctx, e, resource, provision, item, opts)
	}
	if item.Entity == entity.KindMembership && item.Kind != mapping.KindVirtualSchema {
		return nil, fmt.Errorf("membership %s items are not propagated", item.Kind)
	}

	switch item.Kind {
	case mapping.KindPlainSchema:
		return slices.Clone(e.PlainAttr(item.IntAttrName).EffectiveValues()), nil

	case mapping.KindDerivedSchema:
		return p.derivedValue(e, item.IntAttrName), nil

	case mapping.KindVirtualSchema:
		return p.virtualValues(e, item.IntAttrName, opts.Virtual)

	case mapping.KindID:
		return nonEmpty(e.Key), nil

	case mapping.KindUsername:
		return nonEmpty(e.Username), nil

	case mapping.KindGroupName, mapping.KindAnyObjectName:
		return nonEmpty(e.Name), nil

	case mapping.KindGroupOwnerSchema:
		return p.ownerName(ctx, e, resource)

	case mapping.KindPassword:
		return p.passwordValue(ctx, e, resource, opts)

	default:
		return nil, fmt.Errorf("%w: unsupported mapping kind %s", mapping.ErrInvalidMapping, item.Kind)
	}
}

// virtualValues applies the pending change for schema: an update replaces
// the values, a removal clears them.
func (p *Preparer) virtualValues(e *entity.Entity, schema string, override *VirtualOverride) ([]string, error) {
	if vs, _ := p.schemas.Virtual(schema); vs.ReadOnly {
		return nil, fmt.Errorf("virtual schema %s is read only", schema)
	}
	if override == nil {
		return slices.Clone(e.VirtualAttr(schema).EffectiveValues()), nil
	}
	if values, ok := override.ToUpdate[schema]; ok {
		return slices.Clone(values), nil
	}
	if slices.Contains(override.ToRemove, schema) {
		return []string{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoPendingVirtualUpdate, schema)
}

// derivedValue evaluates the derived schema expression against e. Derived
// attributes without a declared schema keep their stored values.
func (p *Preparer) derivedValue(e *entity.Entity, schema string) []string {
	ds, ok := p.schemas.Derived(schema)
	if !ok {
		return slices.Clone(e.DerivedAttr(schema).EffectiveValues())
	}
	v := p.eval.Evaluate(ds.Expression, expression.ForEntity(e))
	if expression.IsBlank(v) {
		return []string{}
	}
	return []string{v}
}

// derivedValues computes every derived attribute of e.
func (p *Preparer) derivedValues(e *entity.Entity) map[string][]string {
	out := make(map[string][]string, len(e.Derived))
	for _, name := range slices.Sorted(maps.Keys(e.Derived)) {
		out[name] = p.derivedValue(e, name)
	}
	return out
}

// groupValues collects the values of item from every group e belongs to.
func (p *Preparer) groupValues(ctx context.Context, e *entity.Entity, resource *mapping.Resource, provision *mapping.Provision, item mapping.Item, opts Options) ([]string, error) {
	if p.lookup == nil {
		return nil, fmt.Errorf("no lookup configured for group item %s", item.IntAttrName)
	}
	values := []string{}
	for _, key := range e.Memberships {
		group, err := p.lookup.Get(ctx, entity.KindGroup, key)
		if err != nil {
			logger.DebugCtx(ctx, "group not found, skipped", "group", key, logger.Err(err))
			continue
		}
		groupValues, err := p.IntValues(ctx, group, resource, provision, item, opts)
		if err != nil {
			return nil, err
		}
		values = appendUnique(values, groupValues...)
	}
	return values, nil
}

// ownerName resolves the NAME of the user or group owning group e on
// resource. Resolution is a single level: the owner's own account id item
// never resolves further owners.
func (p *Preparer) ownerName(ctx context.Context, e *entity.Entity, resource *mapping.Resource) ([]string, error) {
	if e.Kind != entity.KindGroup {
		return nil, fmt.Errorf("owner items apply to groups, not %s", e.Kind)
	}
	kind, key := entity.KindUser, e.UserOwner
	if key == "" {
		kind, key = entity.KindGroup, e.GroupOwner
	}
	if key == "" {
		return []string{}, nil
	}
	if p.lookup == nil {
		return nil, fmt.Errorf("no lookup configured to resolve owner %s", key)
	}
	owner, err := p.lookup.Get(ctx, kind, key)
	if err != nil {
		return nil, fmt.Errorf("group owner %s: %w", key, err)
	}
	provision := resource.Provision(owner.Type)
	if provision == nil {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoProvision, owner.Type, resource.Key)
	}
	item, err := mapping.AccountIDItem(mapping.ItemsFor(provision, mapping.PurposePropagation))
	if err != nil {
		return nil, err
	}
	if item == nil || item.Kind == mapping.KindGroupOwnerSchema {
		return []string{}, nil
	}
	values, err := p.IntValues(ctx, owner, resource, provision, *item, Options{})
	if err != nil || len(values) == 0 {
		return []string{}, err
	}
	return []string{p.EvaluateName(owner, provision, values[0])}, nil
}

// passwordValue picks the explicit password, then the entity's clear text
// password, then a generated one when the resource requires it.
func (p *Preparer) passwordValue(ctx context.Context, e *entity.Entity, resource *mapping.Resource, opts Options) ([]string, error) {
	if e.Kind != entity.KindUser || !opts.ChangePassword {
		return []string{}, nil
	}
	switch {
	case opts.Password != "":
		return []string{opts.Password}, nil
	case e.Password != "":
		return []string{e.Password}, nil
	case resource.RandomPasswordIfNotProvided:
		return []string{p.generatePassword(ctx, e)}, nil
	default:
		return []string{}, nil
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return []string{}
	}
	return []string{s}
}
