package infra_tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/humanbelnik/kinomatch/internal/config"
	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_catalog "github.com/humanbelnik/kinomatch/internal/usecase/catalog"
)

const (
	discoverPath         = "/discover/movie"
	certificationCountry = "NL"
	// TMDB refuses pages past 500 regardless of total_pages.
	maxPages = 500
)

type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tmdb: status %d", e.StatusCode)
	}
	return fmt.Sprintf("tmdb: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	cfg        config.TMDB
	httpClient *http.Client
}

func New(cfg config.TMDB) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type movieDTO struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"poster_path"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	GenreIDs    []int   `json:"genre_ids"`
}

type discoverDTO struct {
	Page         int        `json:"page"`
	Results      []movieDTO `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

type errorDTO struct {
	StatusMessage string `json:"status_message"`
}

// Discover lists movies streamable on any of the providers, tagged with
// every genre and rated at most the filter's certification.
func (c *Client) Discover(ctx context.Context, filters model.Filters, page int) (model.CatalogPage, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return model.CatalogPage{}, usecase_catalog.ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.discoverURL(filters, page), nil)
	if err != nil {
		return model.CatalogPage{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.CatalogPage{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return model.CatalogPage{}, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorDTO
		_ = json.Unmarshal(body, &apiErr)
		return model.CatalogPage{}, &StatusError{StatusCode: resp.StatusCode, Message: apiErr.StatusMessage}
	}

	var dto discoverDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return model.CatalogPage{}, fmt.Errorf("tmdb: decode discover response: %w", err)
	}

	return dto.toModel(), nil
}

func (c *Client) discoverURL(filters model.Filters, page int) string {
	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("language", c.cfg.Language)
	params.Set("region", c.cfg.Region)
	params.Set("watch_region", c.cfg.Region)
	params.Set("sort_by", c.cfg.SortBy)
	params.Set("vote_count.gte", strconv.Itoa(c.cfg.MinVoteCount))
	params.Set("page", strconv.Itoa(page))

	if len(filters.ProviderIDs) > 0 {
		params.Set("with_watch_providers", strings.Join(filters.ProviderIDs, "|"))
	}
	if len(filters.GenreIDs) > 0 {
		params.Set("with_genres", strings.Join(filters.GenreIDs, ","))
	}
	params.Set("certification_country", certificationCountry)
	params.Set("certification.lte", filters.MaxCertification.String())

	return strings.TrimRight(c.cfg.BaseURL, "/") + discoverPath + "?" + params.Encode()
}

func (dto discoverDTO) toModel() model.CatalogPage {
	items := make([]model.MovieSummary, 0, len(dto.Results))
	for _, m := range dto.Results {
		items = append(items, model.MovieSummary{
			ID:          m.ID,
			Title:       m.Title,
			PosterPath:  m.PosterPath,
			Overview:    m.Overview,
			ReleaseDate: m.ReleaseDate,
			VoteAverage: m.VoteAverage,
			GenreIDs:    m.GenreIDs,
		})
	}

	return model.CatalogPage{
		Items:        items,
		Page:         dto.Page,
		TotalPages:   min(dto.TotalPages, maxPages),
		TotalResults: dto.TotalResults,
	}
}
