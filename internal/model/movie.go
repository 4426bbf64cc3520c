package model

import "strings"

const EmptyTitle string = ""

// MovieSummary is the snapshot of a catalog title stored with swipes and matches.
type MovieSummary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"poster_path"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	GenreIDs    []int   `json:"genre_ids"`
}

type CatalogPage struct {
	Items        []MovieSummary `json:"items"`
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

func (p CatalogPage) HasNext() bool {
	return p.Page < p.TotalPages
}

// PosterURL joins an image base with a size and poster path.
// An empty path yields an empty URL.
func PosterURL(imageBase, posterPath, size string) string {
	if posterPath == "" {
		return ""
	}
	if size == "" {
		size = "w500"
	}
	return strings.TrimRight(imageBase, "/") + "/" + size + "/" + strings.TrimLeft(posterPath, "/")
}
