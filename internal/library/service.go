// Package library implements circulation: checking books out and back in,
// keeping the shelf count right, and the reports built from loan history.
//
// Every operation takes the acting user explicitly and checks the
// capability it needs before touching the database.
package library

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// DateLayout is the format of due dates and explicit return dates.
const DateLayout = "2006-01-02"

// MaxLoanDays is how far ahead of today a due date may be.
const MaxLoanDays = 30

// DefaultTopN is the length of the top-N reports.
const DefaultTopN = 5

// Service runs library operations against a database.
type Service struct {
	DB *sql.DB

	// Now returns the current time. Dates are read in its location.
	Now func() time.Time
}

// New returns a Service using the wall clock.
func New(db *sql.DB) *Service {
	return &Service{DB: db, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().Round(0)
	}
	return s.Now().Round(0)
}

// parseDate parses a YYYY-MM-DD date as midnight in loc.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", model.ErrInvalidInput, value)
	}
	return d, nil
}

// midnight returns the start of t's calendar day in t's location.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%w: %s %d", model.ErrNotFound, what, id)
}
