package usecase

import (
	"context"
	"sync"

	"crazeai/internal/domain/model"
	"crazeai/internal/domain/ports/adapter"
)

// CapabilityCache asks a source exactly once and serves the cached answer afterwards.
// A failed check degrades to text-only.
type CapabilityCache struct {
	source adapter.CapabilitySource

	once sync.Once
	caps model.Capabilities
	err  error
}

func NewCapabilityCache(p adapter.CapabilitySource) *CapabilityCache {
	return &CapabilityCache{source: p}
}

// Detect runs the underlying check on first call only; the error is reported to that caller
// and remembered.
func (c *CapabilityCache) Detect(ctx context.Context) (model.Capabilities, error) {
	c.once.Do(func() {
		if c.source == nil {
			return
		}
		caps, err := c.source.Capabilities(ctx)
		if err != nil {
			c.err = err
			return
		}
		c.caps = caps
	})
	return c.caps, c.err
}

// Capabilities makes the cache itself a CapabilitySource.
func (c *CapabilityCache) Capabilities(ctx context.Context) (model.Capabilities, error) {
	return c.Detect(ctx)
}
