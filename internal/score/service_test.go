package score_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
	"github.com/bananagame/banago/internal/event"
	"github.com/bananagame/banago/internal/score"
)

func TestService_SubmitScore_Validation(t *testing.T) {
	tests := map[string]struct {
		req      score.SubmitScoreRequest
		wantCode errors.Code
	}{
		"empty username": {
			req: score.SubmitScoreRequest{
				Principal: domain.Principal{Username: "alice"},
				Username:  "",
				Points:    10,
			},
			wantCode: errors.CodeInvalidArgument,
		},
		"negative points": {
			req: score.SubmitScoreRequest{
				Principal: domain.Principal{Username: "alice"},
				Username:  "alice",
				Points:    -1,
			},
			wantCode: errors.CodeInvalidArgument,
		},
		"username does not match principal": {
			req: score.SubmitScoreRequest{
				Principal: domain.Principal{Username: "alice"},
				Username:  "bob",
				Points:    10,
			},
			wantCode: errors.CodeUnauthenticated,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := makeService(t)

			err := s.SubmitScore(context.Background(), tt.req)
			require.Error(t, err)
			require.True(t, errors.IsCode(err, tt.wantCode))
		})
	}
}

func TestService_SubmitScore_ReplacesSameDay(t *testing.T) {
	s := makeService(t)
	day := date(2026, 8, 28)

	submit(t, s, "alice", 80, day)
	submit(t, s, "alice", 95, day)

	entries, err := s.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1, "same user and day must hold one record")
	require.Equal(t, 95, entries[0].Points)

	// The replace is unconditional: a later lower score also wins.
	submit(t, s, "alice", 40, day)

	points, found, err := s.GetHighestScore(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 40, points)
}

func TestService_SubmitScore_SameDayDifferentClockTimes(t *testing.T) {
	s := makeService(t)

	// Two submissions hours apart on the same UTC day share one record.
	submit(t, s, "alice", 10, time.Date(2026, 8, 28, 1, 0, 0, 0, time.UTC))
	submit(t, s, "alice", 30, time.Date(2026, 8, 28, 23, 0, 0, 0, time.UTC))

	entries, err := s.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 30, entries[0].Points)
}

func TestService_SubmitScore_Idempotent(t *testing.T) {
	s := makeService(t)
	day := date(2026, 8, 28)

	for i := 0; i < 3; i++ {
		submit(t, s, "alice", 70, day)
	}

	entries, err := s.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 70, entries[0].Points)
}

func TestService_SubmitScore_PublishesEvent(t *testing.T) {
	eb := event.NewBus()

	received := make(chan domain.EventScoreUpdated, 1)
	eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		received <- e.(domain.EventScoreUpdated)
		return nil
	})

	s := makeService(t, withEventBus(eb))
	submit(t, s, "alice", 50, date(2026, 8, 28))

	eb.Stop()

	select {
	case ev := <-received:
		require.Equal(t, "alice", ev.Record.Username)
		require.Equal(t, 50, ev.Record.Points)
		require.Equal(t, date(2026, 8, 28), ev.Record.Date)
	default:
		t.Fatal("no score.updated event published")
	}
}

func TestService_GetLeaderboard(t *testing.T) {
	s := makeService(t)

	submit(t, s, "alice", 50, date(2026, 8, 27))
	submit(t, s, "bob", 80, date(2026, 8, 28))
	submit(t, s, "carol", 80, date(2026, 8, 26))
	submit(t, s, "dave", 95, date(2026, 8, 28))

	entries, err := s.GetLeaderboard(context.Background(), 3)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Username)
	}
	// Points descending; the 80-point tie goes to the earlier date.
	require.Equal(t, []string{"dave", "carol", "bob"}, names)
}

func TestService_GetLeaderboard_Empty(t *testing.T) {
	s := makeService(t)

	entries, err := s.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err, "an empty board is a normal result")
	require.Empty(t, entries)
}

func TestService_GetLeaderboard_InvalidTop(t *testing.T) {
	s := makeService(t)

	for _, top := range []int{0, -1} {
		_, err := s.GetLeaderboard(context.Background(), top)
		require.Error(t, err)
		require.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
	}
}

func TestService_GetHighestScore(t *testing.T) {
	s := makeService(t)

	_, found, err := s.GetHighestScore(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, found, "a user with no record is not an error")

	submit(t, s, "alice", 80, date(2026, 8, 27))
	submit(t, s, "alice", 95, date(2026, 8, 28))
	submit(t, s, "bob", 200, date(2026, 8, 28))

	points, found, err := s.GetHighestScore(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 95, points, "best across days, only for the named user")
}

func submit(t *testing.T, s *score.Service, username string, points int, day time.Time) {
	t.Helper()

	err := s.SubmitScore(context.Background(), score.SubmitScoreRequest{
		Principal: domain.Principal{Username: username},
		Username:  username,
		Points:    points,
		Date:      day,
	})
	require.NoError(t, err)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func makeService(t *testing.T, opts ...options) *score.Service {
	c := score.Config{
		Store: score.NewMemoryStore(),
	}

	for _, opt := range opts {
		opt(&c)
	}

	return score.NewService(c)
}

type options func(c *score.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *score.Config) {
		c.EventBus = eb
	}
}
