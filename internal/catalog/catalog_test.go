package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmcdole/pickflix/internal/domain"
)

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]domain.Movie{{ID: 1}, {ID: 2}, {ID: 1}})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestLookupAndOrder(t *testing.T) {
	c, err := New([]domain.Movie{
		{ID: 3, Title: "C"},
		{ID: 1, Title: "A"},
		{ID: 2, Title: "B"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if c.Len() != 3 || !c.Available() {
		t.Fatalf("Len = %d, Available = %v", c.Len(), c.Available())
	}

	ids := c.IDs()
	want := []int{3, 1, 2}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("IDs = %v, want %v", ids, want)
		}
	}

	m, ok := c.Lookup(1)
	if !ok || m.Title != "A" {
		t.Errorf("Lookup(1) = %+v, %v", m, ok)
	}
	if _, ok := c.Lookup(99); ok {
		t.Error("Lookup(99) should miss")
	}
	if !c.Has(2) || c.Has(4) {
		t.Error("Has returned wrong result")
	}
}

func TestMoviesReturnsCopy(t *testing.T) {
	c, _ := New([]domain.Movie{{ID: 1, Title: "A"}})
	movies := c.Movies()
	movies[0].Title = "changed"

	m, _ := c.Lookup(1)
	if m.Title != "A" {
		t.Errorf("catalog mutated through Movies(): %q", m.Title)
	}
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	if c.Available() || c.Len() != 0 || c.Has(1) || c.IDs() != nil {
		t.Error("nil catalog should behave as empty")
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestLoadFile(t *testing.T) {
	feed := `[
	  {"id": 1, "title": "The Shawshank Redemption", "year": 1994, "runtime": "2h 22m",
	   "certificate": "R", "metascore": 82, "imdb_rating": 9.3, "votes": "3.1M"},
	  {"id": 2, "title": "Unrated", "year": 2001, "runtime": "95m",
	   "certificate": null, "metascore": null, "imdb_rating": 7.1, "votes": 12000}
	]`
	path := filepath.Join(t.TempDir(), "movies.json")
	if err := os.WriteFile(path, []byte(feed), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}

	m, _ := c.Lookup(2)
	if m.Certificate != nil || m.Metascore != nil {
		t.Errorf("expected nil certificate/metascore, got %+v", m)
	}
	if m.Votes != "12000" {
		t.Errorf("Votes = %q, want 12000", m.Votes)
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path)
	if err == nil || errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want parse error", err)
	}
}
