package model

// BookCount is a book with its total number of loans.
type BookCount struct {
	Book
	Total int `json:"total" db:"total"`
}

// GenreCount is a category with its total number of loans.
type GenreCount struct {
	Category string `json:"category" db:"category"`
	Total    int    `json:"total" db:"total"`
}

// BorrowerCount is a user with their total number of loans.
type BorrowerCount struct {
	UserID   int64  `json:"user_id" db:"user_id"`
	Username string `json:"username" db:"username"`
	Total    int    `json:"total" db:"total"`
}
