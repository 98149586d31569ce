package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	warperrors "github.com/mirkobrombin/go-txlock/v1/errors"
	"github.com/mirkobrombin/go-txlock/v1/locktx"
)

// LookupIndex returns the chunk key recorded under name. tx must hold a lock
// on the index topic.
func (e *Engine) LookupIndex(ctx context.Context, tx Txn, name string) (string, error) {
	ctx, span := e.startSpan(ctx, "Engine.LookupIndex", tx, attribute.String("txlock.index", name))
	defer span.End()
	if err := e.require(ctx, tx, locktx.CapReadIndex); err != nil {
		failSpan(span, err)
		return "", err
	}
	key, ok, err := e.index.Get(ctx, name)
	if err != nil {
		failSpan(span, err)
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: index entry %q", warperrors.ErrNotFound, name)
	}
	return key, nil
}

// UpdateIndex records chunkKey under name. tx must hold an exclusive lock on
// the index topic.
func (e *Engine) UpdateIndex(ctx context.Context, tx Txn, name, chunkKey string) error {
	ctx, span := e.startSpan(ctx, "Engine.UpdateIndex", tx, attribute.String("txlock.index", name))
	defer span.End()
	if err := e.require(ctx, tx, locktx.CapUpdateIndex); err != nil {
		failSpan(span, err)
		return err
	}
	if err := e.index.Set(ctx, name, chunkKey); err != nil {
		failSpan(span, err)
		return err
	}
	return nil
}

// RemoveIndex drops the entry name. tx must hold an exclusive lock on the
// index topic.
func (e *Engine) RemoveIndex(ctx context.Context, tx Txn, name string) error {
	ctx, span := e.startSpan(ctx, "Engine.RemoveIndex", tx, attribute.String("txlock.index", name))
	defer span.End()
	if err := e.require(ctx, tx, locktx.CapUpdateIndex); err != nil {
		failSpan(span, err)
		return err
	}
	if err := e.index.Delete(ctx, name); err != nil {
		failSpan(span, err)
		return err
	}
	return nil
}
