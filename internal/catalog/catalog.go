// Package catalog holds the fixed universe of selectable movies.
//
// A Catalog is built once at startup and never mutated. Movies keep the order
// of the source feed; that order is the candidate order the picker draws from.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/mmcdole/pickflix/internal/domain"
)

// ErrUnavailable indicates the catalog feed is missing or empty
var ErrUnavailable = errors.New("movie catalog is unavailable")

// Catalog is an immutable, ordered movie list with lookup by id.
type Catalog struct {
	movies []domain.Movie
	byID   map[int]int // id -> index into movies
}

// New builds a catalog. Ids must be unique. An empty list is allowed and
// reported through Available.
func New(movies []domain.Movie) (*Catalog, error) {
	c := &Catalog{
		movies: make([]domain.Movie, len(movies)),
		byID:   make(map[int]int, len(movies)),
	}
	copy(c.movies, movies)
	for i, m := range c.movies {
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate movie id %d", m.ID)
		}
		c.byID[m.ID] = i
	}
	return c, nil
}

// LoadFile reads a JSON movie feed. A missing or empty feed yields ErrUnavailable.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrUnavailable, path)
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Decode(data)
}

// Decode parses a JSON array of movies.
func Decode(data []byte) (*Catalog, error) {
	var movies []domain.Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(movies) == 0 {
		return nil, ErrUnavailable
	}
	return New(movies)
}

// Available reports whether the catalog has at least one movie
func (c *Catalog) Available() bool {
	return c != nil && len(c.movies) > 0
}

// Len returns the number of movies
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.movies)
}

// Lookup returns the movie with the given id
func (c *Catalog) Lookup(id int) (domain.Movie, bool) {
	if c == nil {
		return domain.Movie{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return domain.Movie{}, false
	}
	return c.movies[i], true
}

// Has reports whether id is a known movie
func (c *Catalog) Has(id int) bool {
	if c == nil {
		return false
	}
	_, ok := c.byID[id]
	return ok
}

// IDs returns all ids in catalog order
func (c *Catalog) IDs() []int {
	if c == nil {
		return nil
	}
	ids := make([]int, len(c.movies))
	for i, m := range c.movies {
		ids[i] = m.ID
	}
	return ids
}

// Movies returns a copy of the movie list in catalog order
func (c *Catalog) Movies() []domain.Movie {
	if c == nil {
		return nil
	}
	out := make([]domain.Movie, len(c.movies))
	copy(out, c.movies)
	return out
}
