// Package score owns score submission and retrieval: validation,
// authorization, the (username, date) upsert and the ranked reads.
package score

import (
	"context"
	"time"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
	"github.com/bananagame/banago/internal/event"
)

// Store is the persistence port. Upsert must be an atomic replace-or-insert
// on the (username, UTC date) key: concurrent submissions for the same key
// must never leave two records behind.
type Store interface {
	Upsert(ctx context.Context, rec domain.ScoreRecord) error
	// Top returns up to n records ordered by points descending, then date
	// ascending.
	Top(ctx context.Context, n int) ([]domain.ScoreRecord, error)
	// HighestScore returns the best stored points for the user. The second
	// return value is false when the user has no record at all.
	HighestScore(ctx context.Context, username string) (int, bool, error)
}

type Config struct {
	Store    Store
	EventBus *event.Bus
}

type Service struct {
	store Store
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		eb:    c.EventBus,
	}
}

type SubmitScoreRequest struct {
	Principal domain.Principal
	Username  string
	Points    int
	Date      time.Time
}

// SubmitScore validates and stores one score. The upsert replaces whatever
// record exists for (username, date) unconditionally; it deliberately does
// not compare old and new points, so a lower score submitted later in the
// day wins.
func (s *Service) SubmitScore(ctx context.Context, req SubmitScoreRequest) error {
	if req.Username == "" {
		return errors.InvalidArgumentf("username must not be empty")
	}
	if req.Points < 0 {
		return errors.InvalidArgumentf("points must not be negative")
	}
	if req.Username != req.Principal.Username {
		return errors.Unauthenticatedf("username does not match authenticated user")
	}

	rec := domain.ScoreRecord{
		Username: req.Username,
		Points:   req.Points,
		Date:     domain.NormalizeDate(req.Date),
	}

	if err := s.store.Upsert(ctx, rec); err != nil {
		if errors.IsCode(err, errors.CodeAlreadyExists) {
			// The store violated its replace-or-insert contract; not
			// recoverable by retrying the request.
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("score: duplicate record for %s", rec.Key()),
				errors.WithCause(err),
			)
		}
		return err
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventScoreUpdated{Record: rec})
	}
	return nil
}

// GetLeaderboard returns up to top entries, points descending and ties broken
// by earlier date. No records is a normal empty result.
func (s *Service) GetLeaderboard(ctx context.Context, top int) ([]domain.LeaderboardEntry, error) {
	if top <= 0 {
		return nil, errors.InvalidArgumentf("top must be greater than zero")
	}

	recs, err := s.store.Top(ctx, top)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, domain.LeaderboardEntry{
			Username: r.Username,
			Points:   r.Points,
			Date:     r.Date,
		})
	}
	return entries, nil
}

// GetHighestScore returns the user's best stored points. ok is false when the
// user has no record, which is distinct from a storage error.
func (s *Service) GetHighestScore(ctx context.Context, username string) (points int, ok bool, err error) {
	if username == "" {
		return 0, false, errors.InvalidArgumentf("username must not be empty")
	}
	return s.store.HighestScore(ctx, username)
}
