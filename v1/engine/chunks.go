package engine

import (
	"bytes"
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	warperrors "github.com/mirkobrombin/go-txlock/v1/errors"
	"github.com/mirkobrombin/go-txlock/v1/locktx"
)

// ReadChunk returns the content of chunk key. tx must hold a lock on the
// chunks topic.
func (e *Engine) ReadChunk(ctx context.Context, tx Txn, key string) ([]byte, error) {
	ctx, span := e.startSpan(ctx, "Engine.ReadChunk", tx, attribute.String("txlock.chunk", key))
	defer span.End()
	if err := e.require(ctx, tx, locktx.CapReadChunk); err != nil {
		failSpan(span, err)
		return nil, err
	}
	data, err := e.readChunk(ctx, key)
	if err != nil {
		failSpan(span, err)
	}
	return data, err
}

// ReadChunks reads several chunks in parallel. The result is in the order of
// keys; the first failure cancels the remaining reads.
func (e *Engine) ReadChunks(ctx context.Context, tx Txn, keys []string) ([][]byte, error) {
	ctx, span := e.startSpan(ctx, "Engine.ReadChunks", tx, attribute.Int("txlock.chunks", len(keys)))
	defer span.End()
	if err := e.require(ctx, tx, locktx.CapReadChunk); err != nil {
		failSpan(span, err)
		return nil, err
	}
	out := make([][]byte, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.readConcurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			data, err := e.readChunk(gctx, key)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		failSpan(span, err)
		return nil, err
	}
	return out, nil
}

func (e *Engine) readChunk(ctx context.Context, key string) ([]byte, error) {
	if e.cache != nil {
		data, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.WarnContext(ctx, "txlock: chunk cache get failed", "chunk", key, "error", err)
		} else if ok {
			return bytes.Clone(data), nil
		}
	}
	gen := e.generation(key)
	data, ok, err := e.chunks.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: chunk %q", warperrors.ErrNotFound, key)
	}
	if e.cache != nil {
		e.fill(ctx, key, gen, bytes.Clone(data))
	}
	return bytes.Clone(data), nil
}

func (e *Engine) generation(key string) uint64 {
	e.fillMu.Lock()
	defer e.fillMu.Unlock()
	return e.gens[key]
}

// fill caches data read while key was at generation gen. The fill is
// dropped if key was written or deleted since.
func (e *Engine) fill(ctx context.Context, key string, gen uint64, data []byte) {
	e.fillMu.Lock()
	defer e.fillMu.Unlock()
	if e.gens[key] != gen {
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cacheTTL); err != nil {
		e.logger.WarnContext(ctx, "txlock: chunk cache set failed", "chunk", key, "error", err)
	}
}

// WriteChunk stores data as chunk key. tx must hold a lock on the chunks
// topic; shared is enough.
func (e *Engine) WriteChunk(ctx context.Context, tx Txn, key string, data []byte) error {
	ctx, span := e.startSpan(ctx, "Engine.WriteChunk", tx,
		attribute.String("txlock.chunk", key),
		attribute.Int("txlock.bytes", len(data)))
	defer span.End()
	if err := e.require(ctx, tx, locktx.CapWriteChunk); err != nil {
		failSpan(span, err)
		return err
	}
	if err := e.chunks.Set(ctx, key, bytes.Clone(data)); err != nil {
		failSpan(span, err)
		return err
	}
	e.invalidate(ctx, key)
	return nil
}

// DeleteChunk removes chunk key. tx must hold an exclusive lock on the
// chunks topic.
func (e *Engine) DeleteChunk(ctx context.Context, tx Txn, key string) error {
	ctx, span := e.startSpan(ctx, "Engine.DeleteChunk", tx, attribute.String("txlock.chunk", key))
	defer span.End()
	if err := e.require(ctx, tx, locktx.CapDeleteChunk); err != nil {
		failSpan(span, err)
		return err
	}
	if err := e.chunks.Delete(ctx, key); err != nil {
		failSpan(span, err)
		return err
	}
	e.invalidate(ctx, key)
	return nil
}

// ChunkKeys lists the stored chunks. tx must hold a lock on the chunks topic.
func (e *Engine) ChunkKeys(ctx context.Context, tx Txn) ([]string, error) {
	ctx, span := e.startSpan(ctx, "Engine.ChunkKeys", tx)
	defer span.End()
	if err := e.require(ctx, tx, locktx.CapReadChunk); err != nil {
		failSpan(span, err)
		return nil, err
	}
	keys, err := e.chunks.Keys(ctx)
	if err != nil {
		failSpan(span, err)
	}
	return keys, err
}

func (e *Engine) invalidate(ctx context.Context, key string) {
	if e.cache == nil {
		return
	}
	e.fillMu.Lock()
	defer e.fillMu.Unlock()
	e.gens[key]++
	if err := e.cache.Invalidate(ctx, key); err != nil {
		e.logger.WarnContext(ctx, "txlock: chunk cache invalidate failed", "chunk", key, "error", err)
	}
}
