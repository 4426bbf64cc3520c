package http_catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_catalog "github.com/humanbelnik/kinomatch/internal/usecase/catalog"
	"github.com/humanbelnik/kinomatch/internal/usecase/catalog/mocks/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRouter(p *mocks.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(usecase_catalog.New(p, nil, nil), nil).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestCatalogPage(t *testing.T) {
	p := mocks.NewProvider(t)
	want := model.Filters{ProviderIDs: []string{"337", "8"}, GenreIDs: []string{"28"}, MaxCertification: model.Certification9}
	p.On("Discover", mock.Anything, want, 2).
		Return(model.CatalogPage{Items: []model.MovieSummary{{ID: 11, Title: "Star Wars"}}, Page: 2, TotalPages: 2}, nil).
		Once()

	w := get(newRouter(p), "/api/v1/catalog?providers=8,337&genres=28&certification=9&page=2")

	require.Equal(t, http.StatusOK, w.Code)
	var page model.CatalogPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Star Wars", page.Items[0].Title)
}

func TestCatalogRejectsBadInput(t *testing.T) {
	r := newRouter(mocks.NewProvider(t))

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/catalog?providers=8").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/catalog?providers=8&genres=28&page=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/catalog?providers=8&genres=28&certification=X").Code)
}

func TestCatalogProviderFailure(t *testing.T) {
	p := mocks.NewProvider(t)
	p.On("Discover", mock.Anything, mock.Anything, 1).Return(model.CatalogPage{}, errors.New("timeout")).Once()

	w := get(newRouter(p), "/api/v1/catalog?providers=8&genres=28")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "FETCH_FAILED")
}
