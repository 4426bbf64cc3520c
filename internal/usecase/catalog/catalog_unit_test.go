package usecase_catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/humanbelnik/kinomatch/internal/model"
	provider_mocks "github.com/humanbelnik/kinomatch/internal/usecase/catalog/mocks/provider"
	shared_mocks "github.com/humanbelnik/kinomatch/internal/usecase/catalog/mocks/shared"
	"github.com/ozontech/allure-go/pkg/framework/provider"
	"github.com/ozontech/allure-go/pkg/framework/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type UsecaseCatalogUnitSuite struct {
	suite.Suite
}

type resources struct {
	client   *Client
	provider *provider_mocks.Provider
	ctx      context.Context
}

func initResources(t provider.T) *resources {
	p := provider_mocks.NewProvider(t)

	return &resources{
		client:   New(p, nil, zap.NewNop()),
		provider: p,
		ctx:      context.Background(),
	}
}

func validFilters() model.Filters {
	return model.Filters{
		ProviderIDs:      []string{"337", "8"},
		GenreIDs:         []string{"35"},
		MaxCertification: model.Certification12,
	}
}

func catalogPage(page, totalPages int, ids ...int64) model.CatalogPage {
	items := make([]model.MovieSummary, 0, len(ids))
	for _, id := range ids {
		items = append(items, model.MovieSummary{ID: id, Title: "movie"})
	}
	return model.CatalogPage{Items: items, Page: page, TotalPages: totalPages, TotalResults: totalPages * len(ids)}
}

func (s *UsecaseCatalogUnitSuite) TestFetchIsCachedPerFiltersAndPage(t provider.T) {
	t.Parallel()
	r := initResources(t)
	f := validFilters()

	r.provider.On("Discover", mock.Anything, f, 1).Return(catalogPage(1, 1, 10, 11), nil).Once()

	first, err := r.client.Fetch(r.ctx, f, 1)
	assert.NoError(t, err)
	second, err := r.client.Fetch(r.ctx, model.Filters{
		ProviderIDs:      []string{"8", "337", "8"},
		GenreIDs:         []string{" 35"},
		MaxCertification: model.Certification12,
	}, 1)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	r.provider.AssertExpectations(t)
}

func (s *UsecaseCatalogUnitSuite) TestClearForcesFreshCall(t provider.T) {
	t.Parallel()
	r := initResources(t)
	f := validFilters()

	r.provider.On("Discover", mock.Anything, f, 1).Return(catalogPage(1, 1, 10), nil).Times(2)

	_, err := r.client.Fetch(r.ctx, f, 1)
	assert.NoError(t, err)
	assert.NoError(t, r.client.Clear(r.ctx))
	_, err = r.client.Fetch(r.ctx, f, 1)
	assert.NoError(t, err)

	r.provider.AssertExpectations(t)
}

func (s *UsecaseCatalogUnitSuite) TestFetchPrefetchesNextPage(t provider.T) {
	t.Parallel()
	r := initResources(t)
	f := validFilters()

	r.provider.On("Discover", mock.Anything, f, 1).Return(catalogPage(1, 2, 10), nil).Once()
	r.provider.On("Discover", mock.Anything, f, 2).Return(catalogPage(2, 2, 20), nil).Once()

	_, err := r.client.Fetch(r.ctx, f, 1)
	assert.NoError(t, err)
	r.client.Wait()

	next, err := r.client.Fetch(r.ctx, f, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(20), next.Items[0].ID)
	r.client.Wait()

	r.provider.AssertExpectations(t)
}

func (s *UsecaseCatalogUnitSuite) TestFetchFailureReturnsEmptyPage(t provider.T) {
	t.Parallel()
	r := initResources(t)
	f := validFilters()
	providerErr := errors.New("503 from upstream")

	r.provider.On("Discover", mock.Anything, f, 3).Return(model.CatalogPage{}, providerErr).Once()

	result, err := r.client.Fetch(r.ctx, f, 3)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, providerErr)
	assert.Empty(t, result.Items)
	assert.NotNil(t, result.Items)
	assert.Equal(t, 3, result.Page)
	r.provider.AssertExpectations(t)
}

func (s *UsecaseCatalogUnitSuite) TestEmptyCatalogIsNotAnError(t provider.T) {
	t.Parallel()
	r := initResources(t)
	f := validFilters()

	r.provider.On("Discover", mock.Anything, f, 1).Return(catalogPage(1, 0), nil).Once()

	result, err := r.client.Fetch(r.ctx, f, 1)

	assert.NoError(t, err)
	assert.Empty(t, result.Items)
}

func (s *UsecaseCatalogUnitSuite) TestConcurrentMissesShareOneCall(t provider.T) {
	t.Parallel()
	r := initResources(t)
	f := validFilters()
	release := make(chan struct{})

	r.provider.On("Discover", mock.Anything, f, 1).
		Run(func(mock.Arguments) { <-release }).
		Return(catalogPage(1, 1, 10), nil).Once()

	var wg sync.WaitGroup
	results := make([]model.CatalogPage, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.client.Fetch(r.ctx, f, 1)
		}(i)
	}
	close(release)
	wg.Wait()

	for i := range results {
		assert.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	r.provider.AssertExpectations(t)
}

func (s *UsecaseCatalogUnitSuite) TestClearDropsInFlightPrefetch(t provider.T) {
	t.Parallel()
	r := initResources(t)
	f := validFilters()
	started := make(chan struct{})
	release := make(chan struct{})

	r.provider.On("Discover", mock.Anything, f, 1).Return(catalogPage(1, 2, 10), nil).Once()
	r.provider.On("Discover", mock.Anything, f, 2).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(catalogPage(2, 2, 20), nil).Once()
	r.provider.On("Discover", mock.Anything, f, 2).Return(catalogPage(2, 2, 21), nil).Once()

	_, err := r.client.Fetch(r.ctx, f, 1)
	assert.NoError(t, err)
	<-started
	assert.NoError(t, r.client.Clear(r.ctx))
	close(release)
	r.client.Wait()

	fresh, err := r.client.Fetch(r.ctx, f, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(21), fresh.Items[0].ID)
	r.provider.AssertExpectations(t)
}

func (s *UsecaseCatalogUnitSuite) TestSharedTier(t provider.T) {
	t.Parallel()

	t.Run("Should serve shared hit without provider", func(t provider.T) {
		t.Parallel()
		p := provider_mocks.NewProvider(t)
		shared := shared_mocks.NewSharedCache(t)
		client := New(p, shared, zap.NewNop())
		f := validFilters()

		shared.On("Get", mock.Anything, f.CacheKey(1)).Return(catalogPage(1, 1, 10), true, nil).Once()

		result, err := client.Fetch(context.Background(), f, 1)

		assert.NoError(t, err)
		assert.Equal(t, int64(10), result.Items[0].ID)
		p.AssertNotCalled(t, "Discover", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should fill shared tier on miss and tolerate its outage", func(t provider.T) {
		t.Parallel()
		p := provider_mocks.NewProvider(t)
		shared := shared_mocks.NewSharedCache(t)
		client := New(p, shared, zap.NewNop())
		f := validFilters()

		shared.On("Get", mock.Anything, f.CacheKey(1)).Return(model.CatalogPage{}, false, errors.New("redis down")).Once()
		p.On("Discover", mock.Anything, f, 1).Return(catalogPage(1, 1, 10), nil).Once()
		shared.On("Set", mock.Anything, f.CacheKey(1), catalogPage(1, 1, 10)).Return(nil).Once()
		shared.On("Clear", mock.Anything).Return(nil).Once()

		_, err := client.Fetch(context.Background(), f, 1)
		assert.NoError(t, err)
		assert.NoError(t, client.Clear(context.Background()))
	})
}

func TestUnitSuite(t *testing.T) {
	suite.RunSuite(t, new(UsecaseCatalogUnitSuite))
}
