package library

import "bookledger/internal/models"

// SampleBooks returns the three books used by the demo and by SEED_DEMO,
// in insertion order
func SampleBooks() []models.Book {
	return []models.Book{
		{ID: 1, Title: "DSA Fundamentals", Author: "Alice"},
		{ID: 2, Title: "Python Basics", Author: "Bob"},
		{ID: 3, Title: "Algorithms", Author: "Carol"},
	}
}

// Seed inserts books in order
func (s *Service) Seed(books []models.Book) {
	for _, b := range books {
		s.InsertBook(b.ID, b.Title, b.Author)
	}
}
