package model

import "errors"

// Rejections returned by library operations. They are wrapped with detail
// and must be matched with errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrOutOfStock       = errors.New("out of stock")
	ErrAlreadyClosed    = errors.New("loan already returned")
	ErrNegativeStock    = errors.New("stock cannot be negative")
)
