// Package outbound prepares the connector attributes propagated for an
// entity to a resource.
package outbound

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/internal/telemetry"
	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/expression"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/marmos91/attrsync/pkg/policy"
	"github.com/marmos91/attrsync/pkg/virattr"
)

// ErrNoPendingVirtualUpdate is returned when a virtual attribute is resolved
// for propagation without any update or removal requested for it.
var ErrNoPendingVirtualUpdate = errors.New("no pending virtual attribute update")

// ErrNoProvision is returned when the resource does not provision the
// entity's any type.
var ErrNoProvision = errors.New("resource has no provision for any type")

// DefaultFallbackLength is the length of random passwords used when the
// resource asks for one and no policy-compliant password can be generated.
const DefaultFallbackLength = 16

// VirtualOverride lists the virtual attribute changes being propagated.
type VirtualOverride struct {
	// ToUpdate replaces the values of the named schemas.
	ToUpdate map[string][]string `yaml:"to_update,omitempty" json:"to_update,omitempty"`
	// ToRemove clears the named schemas.
	ToRemove []string `yaml:"to_remove,omitempty" json:"to_remove,omitempty"`
}

// Options drive a single preparation.
type Options struct {
	// Password, when set, is propagated instead of the entity's own.
	Password string
	// ChangePassword keeps the password attribute in the result.
	ChangePassword bool
	// Enable attaches the enable flag when non-nil.
	Enable *bool
	// Virtual restricts virtual values to explicit changes. When nil, the
	// entity's current virtual values are propagated.
	Virtual *VirtualOverride
}

// Warning is a recoverable anomaly met during preparation.
type Warning struct {
	Item    string
	Message string
}

func (w Warning) String() string {
	return w.Item + ": " + w.Message
}

// Result is the prepared connector payload.
type Result struct {
	AccountID  string
	Name       string
	Attributes []connector.Attribute
	Warnings   []Warning
}

// PasswordGenerator produces policy-compliant passwords.
type PasswordGenerator interface {
	Generate(ctx context.Context, e *entity.Entity) (string, error)
}

// Preparer builds outbound attribute sets.
type Preparer struct {
	schemas        *entity.Schemas
	eval           expression.Evaluator
	cache          *virattr.Cache
	lookup         entity.Lookup
	passwords      PasswordGenerator
	fallbackLength int
}

// Option configures a Preparer.
type Option func(*Preparer)

// WithCache sets the virtual attribute cache expired before propagation.
func WithCache(c *virattr.Cache) Option {
	return func(p *Preparer) { p.cache = c }
}

// WithLookup sets the lookup used for group owners and user groups.
func WithLookup(l entity.Lookup) Option {
	return func(p *Preparer) { p.lookup = l }
}

// WithPasswordGenerator sets the generator used by resources that require a
// password when none is provided.
func WithPasswordGenerator(g PasswordGenerator) Option {
	return func(p *Preparer) { p.passwords = g }
}

// WithFallbackLength sets the length of random fallback passwords.
func WithFallbackLength(n int) Option {
	return func(p *Preparer) {
		if n > 0 {
			p.fallbackLength = n
		}
	}
}

// NewPreparer creates a preparer.
func NewPreparer(schemas *entity.Schemas, eval expression.Evaluator, opts ...Option) *Preparer {
	p := &Preparer{schemas: schemas, eval: eval, fallbackLength: DefaultFallbackLength}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare builds the attributes propagated for e to resource, processing the
// propagation items of e's provision in order. Values of items sharing an
// external name are merged. Only an ambiguous account id mapping or a
// missing provision fails; other item failures skip the item.
func (p *Preparer) Prepare(ctx context.Context, e *entity.Entity, resource *mapping.Resource, opts Options) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanOutboundPrepare)
	defer span.End()
	span.SetAttributes(telemetry.AnyType(e.Type), telemetry.OwnerKey(e.Key), telemetry.Resource(resource.Key))

	provision := resource.Provision(e.Type)
	if provision == nil {
		err := fmt.Errorf("%w: %s on %s", ErrNoProvision, e.Type, resource.Key)
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	items := mapping.ItemsFor(provision, mapping.PurposePropagation)
	accountItem, err := mapping.AccountIDItem(items)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	res := &Result{}
	var attrs connector.AttributeSet
	for _, item := range items {
		if item.Kind.IsVirtual() && p.cache != nil {
			if err := p.cache.ForceExpire(ctx, virattr.KeyFor(e, item.IntAttrName)); err != nil {
				logger.WarnCtx(ctx, "virtual cache not expired", logger.Schema(item.IntAttrName), logger.Err(err))
			}
		}

		values, err := p.IntValues(ctx, e, resource, provision, item, opts)
		if errors.Is(err, mapping.ErrInvalidMapping) {
			telemetry.RecordError(ctx, err)
			return nil, err
		}
		if err != nil {
			logger.DebugCtx(ctx, "mapping item skipped", "item", item.String(), logger.Err(err))
			continue
		}
		p.checkMandatory(e, item, values, res)

		if item.AccountID && res.AccountID == "" && len(values) > 0 {
			res.AccountID = values[0]
		}
		if item.Kind == mapping.KindPassword || item.Password {
			if len(values) > 0 {
				attrs.Put(connector.NewAttribute(connector.PasswordAttr, connector.NewGuardedString(values[0])))
			}
			continue
		}
		attrs.Merge(connector.Attribute{Name: item.ExtAttrName, Values: p.connectorValues(e, item, values)})
	}

	if accountItem != nil && res.AccountID != "" && attrs.Get(accountItem.ExtAttrName) != nil {
		attrs.Put(connector.NewAttribute(accountItem.ExtAttrName, res.AccountID))
	}
	if res.AccountID == "" {
		logger.WarnCtx(ctx, "no account id computed", logger.Owner(e.Key), logger.Resource(resource.Key))
		res.Warnings = append(res.Warnings, Warning{Item: "accountId", Message: "no account id computed"})
	} else {
		res.Name = p.EvaluateName(e, provision, res.AccountID)
		attrs.Put(connector.NewAttribute(connector.NameAttr, res.Name))
	}

	if opts.Enable != nil {
		attrs.Put(connector.NewAttribute(connector.EnableAttr, *opts.Enable))
	}
	if !opts.ChangePassword {
		attrs.Remove(connector.PasswordAttr)
	}

	res.Attributes = attrs.All()
	span.SetAttributes(telemetry.AccountID(res.AccountID), telemetry.AttrCountOf(len(res.Attributes)),
		telemetry.Warnings(len(res.Warnings)))
	logger.DebugCtx(ctx, "outbound attributes prepared",
		logger.Owner(e.Key), logger.Resource(resource.Key), logger.AccountID(res.AccountID),
		logger.KeyAttrCount, len(res.Attributes))
	return res, nil
}

// AccountID returns the account id of e on resource, computed from the
// account id item of provision. It satisfies virattr.AccountResolver.
func (p *Preparer) AccountID(ctx context.Context, e *entity.Entity, resource *mapping.Resource, provision *mapping.Provision) (string, error) {
	item, err := mapping.AccountIDItem(mapping.ItemsFor(provision, mapping.PurposeBoth))
	if err != nil || item == nil {
		return "", err
	}
	values, err := p.IntValues(ctx, e, resource, provision, *item, Options{})
	if err != nil || len(values) == 0 {
		return "", err
	}
	return values[0], nil
}

// EvaluateName computes the NAME of e: the connector object link expression
// of provision evaluated against the plain then derived attributes of e, or
// accountID when the expression is unset or evaluates blank.
func (p *Preparer) EvaluateName(e *entity.Entity, provision *mapping.Provision, accountID string) string {
	if provision == nil || provision.ConnObjectLink == "" {
		return accountID
	}
	vars := expression.ForEntity(e).WithValues(p.derivedValues(e))
	name := p.eval.Evaluate(provision.ConnObjectLink, vars)
	if expression.IsBlank(name) {
		return accountID
	}
	return name
}

func (p *Preparer) checkMandatory(e *entity.Entity, item mapping.Item, values []string, res *Result) {
	cond := strings.TrimSpace(item.MandatoryCondition)
	if cond == "" || cond == "false" || len(values) > 0 {
		return
	}
	if cond != "true" && strings.TrimSpace(p.eval.Evaluate(cond, expression.ForEntity(e))) != "true" {
		return
	}
	res.Warnings = append(res.Warnings, Warning{Item: item.String(), Message: "mandatory attribute has no value"})
}

// connectorValues converts internal values to connector values. Binary
// plain values are decoded from base64.
func (p *Preparer) connectorValues(e *entity.Entity, item mapping.Item, values []string) []any {
	binary := false
	if item.Kind == mapping.KindPlainSchema {
		if a := e.PlainAttr(item.IntAttrName); a != nil {
			binary = a.Type == entity.TypeBinary
		} else if ps, ok := p.schemas.Plain(item.IntAttrName); ok {
			binary = ps.Type == entity.TypeBinary
		}
	}
	out := make([]any, 0, len(values))
	for _, v := range values {
		if binary {
			if b, err := base64.StdEncoding.DecodeString(v); err == nil {
				out = append(out, b)
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

func (p *Preparer) generatePassword(ctx context.Context, e *entity.Entity) string {
	if p.passwords != nil {
		pw, err := p.passwords.Generate(ctx, e)
		if err == nil {
			return pw
		}
		logger.DebugCtx(ctx, "random password used", logger.Owner(e.Key), logger.Err(err))
	}
	return policy.RandomPassword(p.fallbackLength)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
