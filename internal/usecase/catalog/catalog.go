package usecase_catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/humanbelnik/kinomatch/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrFetchFailed   = errors.New("catalog fetch failed")
	ErrNotConfigured = errors.New("catalog provider is not configured")
)

const defaultPrefetchTimeout = 30 * time.Second

//go:generate mockery --name=Provider --output=./mocks/provider --filename=provider.go
type Provider interface {
	Discover(ctx context.Context, filters model.Filters, page int) (model.CatalogPage, error)
}

// SharedCache is an optional tier shared between processes.
//
//go:generate mockery --name=SharedCache --output=./mocks/shared --filename=shared.go
type SharedCache interface {
	Get(ctx context.Context, key string) (model.CatalogPage, bool, error)
	Set(ctx context.Context, key string, page model.CatalogPage) error
	Clear(ctx context.Context) error
}

// Client serves catalog pages from its own cache and keeps one page of
// lookahead warm. A cache miss costs one provider call no matter how many
// callers wait for the same page.
type Client struct {
	provider Provider
	shared   SharedCache
	logger   *zap.Logger

	mu    sync.RWMutex
	pages map[string]model.CatalogPage
	// generation moves on every Clear so late fills of an older
	// generation are dropped instead of stored.
	generation uint64

	group           singleflight.Group
	prefetch        sync.WaitGroup
	prefetchTimeout time.Duration
}

// New builds a client. shared may be nil.
func New(provider Provider, shared SharedCache, logger *zap.Logger) *Client {
	if provider == nil {
		panic("usecase_catalog: nil provider")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		provider:        provider,
		shared:          shared,
		logger:          logger.Named("catalog"),
		pages:           make(map[string]model.CatalogPage),
		prefetchTimeout: defaultPrefetchTimeout,
	}
}

// Fetch returns the page for filters. On failure the page is empty and the
// error wraps ErrFetchFailed, so callers can tell it from an empty catalog.
func (c *Client) Fetch(ctx context.Context, filters model.Filters, page int) (model.CatalogPage, error) {
	if page < 1 {
		page = 1
	}
	filters = filters.Normalize()

	result, err := c.load(ctx, filters, page)
	if err != nil {
		c.logger.Warn("catalog fetch failed",
			zap.String("key", filters.CacheKey(page)),
			zap.Error(err),
		)
		return model.CatalogPage{Page: page, Items: []model.MovieSummary{}}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if result.HasNext() {
		c.prefetchPage(filters, page+1)
	}
	return result, nil
}

// Clear drops every cached page, including pages still being fetched.
func (c *Client) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.pages = make(map[string]model.CatalogPage)
	c.generation++
	c.mu.Unlock()

	if c.shared != nil {
		if err := c.shared.Clear(ctx); err != nil {
			return fmt.Errorf("clear shared catalog cache: %w", err)
		}
	}
	return nil
}

// Wait blocks until background prefetches finish.
func (c *Client) Wait() {
	c.prefetch.Wait()
}

func (c *Client) cached(key string) (model.CatalogPage, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	page, ok := c.pages[key]
	return page, c.generation, ok
}

func (c *Client) load(ctx context.Context, filters model.Filters, page int) (model.CatalogPage, error) {
	key := filters.CacheKey(page)

	cached, generation, ok := c.cached(key)
	if ok {
		return cached, nil
	}

	flightKey := fmt.Sprintf("%d/%s", generation, key)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		return c.fill(context.WithoutCancel(ctx), filters, page, key, generation)
	})

	select {
	case <-ctx.Done():
		return model.CatalogPage{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.CatalogPage{}, res.Err
		}
		return res.Val.(model.CatalogPage), nil
	}
}

func (c *Client) fill(ctx context.Context, filters model.Filters, page int, key string, generation uint64) (model.CatalogPage, error) {
	// A flight that finished between the caller's lookup and this one
	// already stored the page.
	if cached, current, ok := c.cached(key); ok && current == generation {
		return cached, nil
	}

	if c.shared != nil {
		hit, ok, err := c.shared.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("shared catalog cache unavailable", zap.String("key", key), zap.Error(err))
		case ok:
			c.store(key, hit, generation)
			return hit, nil
		}
	}

	result, err := c.provider.Discover(ctx, filters, page)
	if err != nil {
		return model.CatalogPage{}, err
	}

	if c.store(key, result, generation) && c.shared != nil {
		if err := c.shared.Set(ctx, key, result); err != nil {
			c.logger.Warn("failed to share catalog page", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

func (c *Client) store(key string, page model.CatalogPage, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return false
	}
	c.pages[key] = page
	return true
}

func (c *Client) prefetchPage(filters model.Filters, page int) {
	key := filters.CacheKey(page)
	if _, _, ok := c.cached(key); ok {
		return
	}

	c.prefetch.Add(1)
	go func() {
		defer c.prefetch.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.prefetchTimeout)
		defer cancel()

		if _, err := c.load(ctx, filters, page); err != nil {
			c.logger.Debug("prefetch failed", zap.String("key", key), zap.Error(err))
		}
	}()
}
