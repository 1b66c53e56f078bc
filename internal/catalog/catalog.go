// Package catalog caches the curated option sets fetched from the server.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"course-authoring/internal/domain"
	"course-authoring/internal/logger"
)

// Fetcher loads one curated option set.
type Fetcher interface {
	Options(ctx context.Context, kind domain.OptionKind) ([]domain.Option, error)
}

// Cache holds the option sets loaded so far. Kinds that failed to load
// stay absent, which disables membership checks for them.
type Cache struct {
	fetcher Fetcher

	mu      sync.RWMutex
	catalog domain.Catalog
}

func New(fetcher Fetcher) *Cache {
	return &Cache{fetcher: fetcher, catalog: domain.Catalog{}}
}

// Load fetches every option kind. Kinds that load successfully are kept
// even when others fail.
func (c *Cache) Load(ctx context.Context) error {
	var errs []error
	for _, kind := range domain.OptionKinds {
		opts, err := c.fetcher.Options(ctx, kind)
		if err != nil {
			logger.Warn("Failed to load options",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("load %s: %w", kind, err))
			continue
		}
		c.Set(kind, opts)
	}
	return errors.Join(errs...)
}

// Set replaces the values for kind.
func (c *Cache) Set(kind domain.OptionKind, opts []domain.Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog[kind] = append([]domain.Option(nil), opts...)
}

// Catalog returns a snapshot of the loaded sets.
func (c *Cache) Catalog() domain.Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(domain.Catalog, len(c.catalog))
	for k, v := range c.catalog {
		out[k] = append([]domain.Option(nil), v...)
	}
	return out
}
