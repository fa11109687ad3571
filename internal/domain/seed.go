package domain

import (
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage/memory"
)

// MemoryStores holds the in-memory tables backing the demo resources.
type MemoryStores struct {
	People   *memory.Store
	Comments *memory.Store
	Articles *memory.Store
}

// NewMemoryStores builds the in-memory storage layers with their
// relationship graph wired up.
func NewMemoryStores() *MemoryStores {
	people := memory.New(memory.Options{Type: "people"})
	comments := memory.New(memory.Options{Type: "comments"}).
		Relate("author", people, false)
	articles := memory.New(memory.Options{Type: "articles", SoftDeleteField: "deleted_at"}).
		Relate("author", people, false).
		Relate("comments", comments, true)
	return &MemoryStores{People: people, Comments: comments, Articles: articles}
}

// SeedDemo loads a small fixture so a fresh server answers something.
func (s *MemoryStores) SeedDemo() {
	s.People.Seed(
		schema.Object{"id": "1", "name": "Ada Lovelace", "email": "ada@example.org"},
		schema.Object{"id": "2", "name": "Alan Turing", "email": "alan@example.org"},
	)
	s.Comments.Seed(
		schema.Object{"id": "1", "body": "Great read."},
		schema.Object{"id": "2", "body": "Looking forward to the sequel."},
	)

	ada, _ := s.People.Get("1")
	alan, _ := s.People.Get("2")
	c1, _ := s.Comments.Get("1")
	c2, _ := s.Comments.Get("2")
	if c1 != nil {
		c1["author"] = alan
	}

	s.Articles.Seed(
		schema.Object{
			"id":       "1",
			"title":    "Notes on the Analytical Engine",
			"body":     "On the composition of operations.",
			"views":    42,
			"author":   ada,
			"comments": []schema.Object{c1, c2},
		},
		schema.Object{
			"id":     "2",
			"title":  "Computing Machinery",
			"body":   "Can machines think?",
			"views":  10,
			"author": alan,
		},
	)
}
