package library

import (
	"context"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

func topN(n int) (int, error) {
	if n == 0 {
		return DefaultTopN, nil
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: report size %d", model.ErrInvalidInput, n)
	}
	return n, nil
}

// TopBooks returns the n most borrowed books. Zero means DefaultTopN.
func (s *Service) TopBooks(ctx context.Context, actor model.Actor, n int) ([]model.BookCount, error) {
	if err := model.Authorize(actor.Role, model.CapViewReports); err != nil {
		return nil, err
	}
	n, err := topN(n)
	if err != nil {
		return nil, err
	}
	return store.TopBooks(ctx, s.DB, n)
}

// TopGenres returns the n categories with the most loans.
func (s *Service) TopGenres(ctx context.Context, actor model.Actor, n int) ([]model.GenreCount, error) {
	if err := model.Authorize(actor.Role, model.CapViewReports); err != nil {
		return nil, err
	}
	n, err := topN(n)
	if err != nil {
		return nil, err
	}
	return store.TopGenres(ctx, s.DB, n)
}

// TopBorrowers returns the n users with the most loans.
func (s *Service) TopBorrowers(ctx context.Context, actor model.Actor, n int) ([]model.BorrowerCount, error) {
	if err := model.Authorize(actor.Role, model.CapViewReports); err != nil {
		return nil, err
	}
	n, err := topN(n)
	if err != nil {
		return nil, err
	}
	return store.TopBorrowers(ctx, s.DB, n)
}

// RecommendationsFor suggests books to a borrower based on their latest
// loan. Patrons may only ask for themselves.
func (s *Service) RecommendationsFor(ctx context.Context, actor model.Actor, borrowerID int64) ([]model.Book, error) {
	if err := model.AuthorizeSelf(actor, borrowerID, model.CapViewAnyLoans); err != nil {
		return nil, err
	}

	borrower, err := store.GetUser(ctx, s.DB, borrowerID)
	if err != nil {
		return nil, err
	}
	if borrower == nil {
		return nil, notFound("user", borrowerID)
	}

	return store.RecommendBooks(ctx, s.DB, borrowerID)
}

// Dashboard is the landing view for a logged-in user.
type Dashboard struct {
	OpenLoans       []model.Loan          `json:"open_loans"`
	Recommendations []model.Book          `json:"recommendations,omitempty"`
	TopBooks        []model.BookCount     `json:"top_books,omitempty"`
	TopGenres       []model.GenreCount    `json:"top_genres,omitempty"`
	TopBorrowers    []model.BorrowerCount `json:"top_borrowers,omitempty"`
}

// Dashboard shows the actor their open loans. Patrons also get
// recommendations; staff get the top-N reports instead.
func (s *Service) Dashboard(ctx context.Context, actor model.Actor) (*Dashboard, error) {
	loans, err := s.LoansFor(ctx, actor, actor.UserID, true)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{OpenLoans: loans}

	if !model.Can(actor.Role, model.CapViewReports) {
		if d.Recommendations, err = s.RecommendationsFor(ctx, actor, actor.UserID); err != nil {
			return nil, err
		}
		return d, nil
	}

	if d.TopBooks, err = s.TopBooks(ctx, actor, DefaultTopN); err != nil {
		return nil, err
	}
	if d.TopGenres, err = s.TopGenres(ctx, actor, DefaultTopN); err != nil {
		return nil, err
	}
	if d.TopBorrowers, err = s.TopBorrowers(ctx, actor, DefaultTopN); err != nil {
		return nil, err
	}
	return d, nil
}
