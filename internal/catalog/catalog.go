// Package catalog holds the ordered in-memory collection of book records.
package catalog

import (
	"iter"
	"slices"

	"bookledger/internal/models"
)

// Catalog is an ordered collection of books, newest first.
//
// Ids are not required to be unique. Lookups and removals act on the most
// recently inserted record with a matching id.
//
// Catalog is not safe for concurrent use.
type Catalog struct {
	// books is kept oldest to newest so inserts append; scans walk it backwards.
	books []*models.Book
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{}
}

// Insert adds an available book as the newest entry
func (c *Catalog) Insert(id int64, title, author string) {
	c.books = append(c.books, &models.Book{
		ID:     id,
		Title:  title,
		Author: author,
		Status: models.StatusAvailable,
	})
}

// Remove unlinks the first book matching id and returns a copy of it
func (c *Catalog) Remove(id int64) (models.Book, bool) {
	i := c.index(id)
	if i < 0 {
		return models.Book{}, false
	}
	removed := *c.books[i]
	c.books = slices.Delete(c.books, i, i+1)
	return removed, true
}

// Find returns the first book matching id. The pointer stays valid until the
// book is removed and may be used to change its status in place.
func (c *Catalog) Find(id int64) (*models.Book, bool) {
	i := c.index(id)
	if i < 0 {
		return nil, false
	}
	return c.books[i], true
}

// All yields a copy of every book, newest first
func (c *Catalog) All() iter.Seq[models.Book] {
	return func(yield func(models.Book) bool) {
		for i := len(c.books) - 1; i >= 0; i-- {
			if !yield(*c.books[i]) {
				return
			}
		}
	}
}

// Len returns the number of books in the catalog
func (c *Catalog) Len() int {
	return len(c.books)
}

func (c *Catalog) index(id int64) int {
	for i := len(c.books) - 1; i >= 0; i-- {
		if c.books[i].ID == id {
			return i
		}
	}
	return -1
}
