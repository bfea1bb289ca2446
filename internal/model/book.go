package model

import "time"

// Book is a catalog title with the number of copies currently on the shelf.
type Book struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Author    string    `json:"author" db:"author"`
	Category  string    `json:"category" db:"category"`
	Stock     int       `json:"stock" db:"stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DefaultCategory is used when a book is received without a category.
const DefaultCategory = "General"

// Catalog sort orders.
const (
	SortStockLow  = "stock_low"
	SortStockHigh = "stock_high"
	SortRecent    = "recent"
	SortAvailable = "available"
	SortGenre     = "genre"
	SortPopular   = "popular"
)

// ValidSort reports whether sort is empty or a known catalog order.
func ValidSort(sort string) bool {
	switch sort {
	case "", SortStockLow, SortStockHigh, SortRecent, SortAvailable, SortGenre, SortPopular:
		return true
	}
	return false
}
