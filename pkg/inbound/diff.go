package inbound

import (
	"context"
	"fmt"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/internal/telemetry"
	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/mapping"
)

// DiffResult is the patch bringing an existing entity in line with a
// connector object.
type DiffResult struct {
	Patch    *entity.Patch
	Warnings []Warning
}

// Diff translates obj into a candidate for the entity identified by key and
// returns the incremental patch from original to the candidate. Blank
// passwords and passwords matching the stored credential never appear in
// the patch. No password is generated.
func (t *Translator) Diff(ctx context.Context, key string, obj *connector.Object, original *entity.Entity, items []mapping.Item, tmpl *entity.Entity) (*DiffResult, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanInboundDiff)
	defer span.End()
	span.SetAttributes(telemetry.AnyType(original.Type), telemetry.OwnerKey(key), telemetry.ItemCount(len(items)))

	res, err := t.translate(ctx, obj, items, original.Type, tmpl)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	candidate := res.Entity
	candidate.Key = key
	delete(candidate.Plain, GroupOwnerSchema)

	if candidate.Password != "" && t.samePassword(original, candidate.Password) {
		logger.DebugCtx(ctx, "password unchanged, left out of patch", logger.Owner(key))
		candidate.Password = ""
	}

	patch, err := entity.Diff(candidate, original, true)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("diff %s: %w", key, err)
	}
	span.SetAttributes(telemetry.Warnings(len(res.Warnings)))
	return &DiffResult{Patch: patch, Warnings: res.Warnings}, nil
}

func (t *Translator) samePassword(original *entity.Entity, candidate string) bool {
	if original.Password != "" && original.Password == candidate {
		return true
	}
	return t.verify != nil && t.verify(original.EncodedPassword, candidate)
}

// GroupOwner returns the raw group owner value captured during translation.
func GroupOwner(e *entity.Entity) (string, bool) {
	a, ok := e.Plain[GroupOwnerSchema]
	if !ok || a.IsEmpty() {
		return "", false
	}
	return a.EffectiveValues()[0], true
}
