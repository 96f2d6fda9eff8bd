package leaderboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
	"github.com/bananagame/banago/internal/event"
	"github.com/bananagame/banago/internal/leaderboard"
	"github.com/bananagame/banago/internal/score"
)

func TestService_UpdateAndTop(t *testing.T) {
	s := makeService(t)

	update(t, s, "alice", 50, date(2026, 8, 27))
	update(t, s, "bob", 80, date(2026, 8, 28))
	update(t, s, "carol", 80, date(2026, 8, 26))

	entries, err := s.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{
		{Username: "carol", Points: 80, Date: date(2026, 8, 26)},
		{Username: "bob", Points: 80, Date: date(2026, 8, 28)},
		{Username: "alice", Points: 50, Date: date(2026, 8, 27)},
	}, entries, "points descending, equal points ordered by earlier date")
}

func TestService_Top_Window(t *testing.T) {
	s := makeService(t)

	update(t, s, "alice", 50, date(2026, 8, 27))
	update(t, s, "bob", 80, date(2026, 8, 28))
	update(t, s, "carol", 20, date(2026, 8, 26))

	entries, err := s.Top(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "bob", entries[0].Username)
	require.Equal(t, "alice", entries[1].Username)
}

func TestService_Top_InvalidTop(t *testing.T) {
	s := makeService(t)

	_, err := s.Top(context.Background(), 0)
	require.Error(t, err)
	require.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
}

func TestService_Top_Empty(t *testing.T) {
	s := makeService(t)

	entries, err := s.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestService_Update_ReplacesSameKey(t *testing.T) {
	s := makeService(t)

	update(t, s, "alice", 80, date(2026, 8, 28))
	update(t, s, "alice", 40, date(2026, 8, 28))

	entries, err := s.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1, "one member per (username, date)")
	require.Equal(t, 40, entries[0].Points)

	n, err := s.Size(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestService_UsernameWithSeparator(t *testing.T) {
	s := makeService(t)

	update(t, s, "al|ice", 10, date(2026, 8, 28))

	entries, err := s.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "al|ice", entries[0].Username)
	require.Equal(t, date(2026, 8, 28), entries[0].Date)
}

func TestService_FollowsScoreUpdatedEvents(t *testing.T) {
	eb := event.NewBus()
	s := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), domain.EventScoreUpdated{
		Record: domain.ScoreRecord{Username: "alice", Points: 60, Date: date(2026, 8, 28)},
	})
	eb.Stop()

	entries, err := s.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{
		{Username: "alice", Points: 60, Date: date(2026, 8, 28)},
	}, entries)
}

func TestService_Top_ColdCacheFallsBackToStore(t *testing.T) {
	st := score.NewMemoryStore()
	require.NoError(t, st.Upsert(context.Background(), domain.ScoreRecord{
		Username: "alice", Points: 70, Date: date(2026, 8, 27),
	}))

	// Nothing was ever projected into Redis; the read must still serve the
	// stored scores.
	s := makeService(t, withStore(st))

	entries, err := s.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{
		{Username: "alice", Points: 70, Date: date(2026, 8, 27)},
	}, entries)
}

func TestService_Rebuild(t *testing.T) {
	st := score.NewMemoryStore()
	require.NoError(t, st.Upsert(context.Background(), domain.ScoreRecord{
		Username: "alice", Points: 70, Date: date(2026, 8, 27),
	}))
	require.NoError(t, st.Upsert(context.Background(), domain.ScoreRecord{
		Username: "bob", Points: 90, Date: date(2026, 8, 28),
	}))

	s := makeService(t, withStore(st))

	// Seed the projection with an entry the store no longer has; Rebuild
	// must discard it.
	update(t, s, "ghost", 999, date(2026, 8, 1))

	require.NoError(t, s.Rebuild(context.Background()))

	entries, err := s.Top(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{
		{Username: "bob", Points: 90, Date: date(2026, 8, 28)},
		{Username: "alice", Points: 70, Date: date(2026, 8, 27)},
	}, entries)
}

func update(t *testing.T, s *leaderboard.Service, username string, points int, day time.Time) {
	t.Helper()

	err := s.Update(context.Background(), domain.ScoreRecord{
		Username: username,
		Points:   points,
		Date:     day,
	})
	require.NoError(t, err)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		Store:  score.NewMemoryStore(),
		Redis:  rc,
		Prefix: "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withStore(st score.Store) options {
	return func(c *leaderboard.Config) {
		c.Store = st
	}
}
