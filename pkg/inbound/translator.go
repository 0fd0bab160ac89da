// Package inbound translates connector objects into internal entities and
// patches.
package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/internal/telemetry"
	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/marmos91/attrsync/pkg/policy"
	"github.com/marmos91/attrsync/pkg/template"
)

// DefaultFallbackLength is the length of random passwords used when no
// policy-compliant password can be generated.
const DefaultFallbackLength = 16

// GroupOwnerSchema is the plain attribute key carrying the raw group owner
// value read from the connector object.
const GroupOwnerSchema = ""

// Warning is a recoverable anomaly met during translation.
type Warning struct {
	Item    string
	Message string
}

func (w Warning) String() string {
	return w.Item + ": " + w.Message
}

// Result is a translated entity and the warnings raised building it.
type Result struct {
	Entity   *entity.Entity
	Warnings []Warning
}

// PasswordGenerator produces policy-compliant passwords.
type PasswordGenerator interface {
	Generate(ctx context.Context, e *entity.Entity) (string, error)
}

// Translator builds internal entities from connector objects.
type Translator struct {
	schemas        *entity.Schemas
	templates      *template.Applier
	passwords      PasswordGenerator
	verify         func(encoded, clear string) bool
	fallbackLength int
}

// Option configures a Translator.
type Option func(*Translator)

// WithPasswordGenerator sets the generator used for users left without a
// password.
func WithPasswordGenerator(g PasswordGenerator) Option {
	return func(t *Translator) { t.passwords = g }
}

// WithFallbackLength sets the length of random fallback passwords.
func WithFallbackLength(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.fallbackLength = n
		}
	}
}

// WithPasswordVerifier replaces the check of a candidate password against
// the stored credential.
func WithPasswordVerifier(verify func(encoded, clear string) bool) Option {
	return func(t *Translator) { t.verify = verify }
}

// NewTranslator creates a translator. Schemas may be nil, in which case every
// plain attribute is a string.
func NewTranslator(schemas *entity.Schemas, templates *template.Applier, opts ...Option) *Translator {
	t := &Translator{
		schemas:        schemas,
		templates:      templates,
		verify:         entity.VerifyPassword,
		fallbackLength: DefaultFallbackLength,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate builds an entity of anyType from obj using items, overlays tmpl
// and, for users left without a password, generates one.
//
// An ambiguous account id, an unsupported mapping kind or a group owner item
// on a non-group entity fail with mapping.ErrInvalidMapping. Every other
// anomaly is reported as a warning.
func (t *Translator) Translate(ctx context.Context, obj *connector.Object, items []mapping.Item, anyType string, tmpl *entity.Entity) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanInboundTranslate)
	defer span.End()
	span.SetAttributes(telemetry.AnyType(anyType), telemetry.ItemCount(len(items)))

	res, err := t.translate(ctx, obj, items, anyType, tmpl)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	if res.Entity.Kind == entity.KindUser && res.Entity.Password == "" {
		res.Entity.Password = t.generatePassword(ctx, res)
	}
	span.SetAttributes(telemetry.Warnings(len(res.Warnings)))
	return res, nil
}

func (t *Translator) translate(ctx context.Context, obj *connector.Object, items []mapping.Item, anyType string, tmpl *entity.Entity) (*Result, error) {
	if _, err := mapping.AccountIDItem(items); err != nil {
		return nil, err
	}

	e := entity.New(entity.KindForAnyType(anyType), anyType)
	res := &Result{Entity: e}

	for _, item := range items {
		if !item.OwnedBy(e.Kind) {
			logger.DebugCtx(ctx, "mapping item not owned by entity, skipped", "item", item.String())
			continue
		}
		attr := obj.Attribute(item.ExtAttrName)

		switch item.Kind {
		case mapping.KindID:
			// Keys are assigned by the identity store.

		case mapping.KindPassword:
			if attr != nil && len(attr.Values) > 0 {
				if pw := connector.DecodeSecret(attr.First()); pw != "" {
					e.Password = pw
				}
			}

		case mapping.KindUsername:
			e.Username = firstValue(attr)

		case mapping.KindGroupName, mapping.KindAnyObjectName:
			e.Name = firstValue(attr)

		case mapping.KindGroupOwnerSchema:
			if e.Kind != entity.KindGroup {
				return nil, fmt.Errorf("%w: group owner item %s on %s", mapping.ErrInvalidMapping, item, anyType)
			}
			if v := firstValue(attr); v != "" {
				e.Plain[GroupOwnerSchema] = &entity.Attr{Schema: GroupOwnerSchema, Values: []string{v}}
			}

		case mapping.KindPlainSchema:
			t.fillPlain(ctx, res, item, attr)

		case mapping.KindDerivedSchema:
			if _, ok := e.Derived[item.IntAttrName]; !ok {
				e.SetDerived(&entity.Attr{Schema: item.IntAttrName})
			}

		case mapping.KindVirtualSchema:
			v := &entity.Attr{Schema: item.IntAttrName}
			if attr != nil {
				v.Values = attr.Strings()
			}
			e.SetVirtual(v)

		default:
			return nil, fmt.Errorf("%w: unsupported mapping kind %s", mapping.ErrInvalidMapping, item.Kind)
		}
	}

	if t.templates != nil {
		t.templates.Apply(e, tmpl)
	}
	return res, nil
}

// fillPlain coerces every value of attr to the schema type of item. Values
// that cannot be coerced are kept as strings and the attribute is downgraded
// to the string type.
func (t *Translator) fillPlain(ctx context.Context, res *Result, item mapping.Item, attr *connector.Attribute) {
	schema, _ := t.schemas.Plain(item.IntAttrName)
	a := &entity.Attr{Schema: item.IntAttrName, Type: schema.Type}
	if attr != nil {
		for _, raw := range attr.Values {
			if s, ok := raw.(connector.Secret); ok {
				raw = s.Reveal()
			}
			if raw == nil {
				continue
			}
			v, err := entity.Coerce(a.Type, raw)
			if err != nil {
				logger.WarnCtx(ctx, "value does not match schema type, kept as string",
					logger.Schema(item.IntAttrName), logger.KeyType, a.Type.String(), logger.Err(err))
				res.Warnings = append(res.Warnings, Warning{
					Item:    item.String(),
					Message: fmt.Sprintf("value not a valid %s, stored as string: %v", a.Type, err),
				})
				a.Type = entity.TypeString
				v = connector.DecodeSecret(raw)
			}
			a.Values = append(a.Values, v)
		}
	}
	if schema.Unique && len(a.Values) > 0 {
		a.UniqueValue, a.Values = a.Values[0], nil
	}
	res.Entity.SetPlain(a)
}

func (t *Translator) generatePassword(ctx context.Context, res *Result) string {
	if t.passwords != nil {
		pw, err := t.passwords.Generate(ctx, res.Entity)
		if err == nil {
			return pw
		}
		if !errors.Is(err, policy.ErrUnsatisfiablePolicy) {
			logger.WarnCtx(ctx, "password policy unavailable", logger.Err(err))
		}
		res.Warnings = append(res.Warnings, Warning{
			Item:    "password",
			Message: fmt.Sprintf("random password used: %v", err),
		})
	}
	return policy.RandomPassword(t.fallbackLength)
}

// firstValue returns the first value of attr as a string, or "" when attr
// is absent or its first value is nil.
func firstValue(attr *connector.Attribute) string {
	if attr == nil {
		return ""
	}
	v := attr.First()
	if v == nil {
		return ""
	}
	return connector.DecodeSecret(v)
}
