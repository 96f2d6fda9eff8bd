// Package leaderboard keeps a Redis ZSET projection of the stored scores and
// serves the ranked top-N reads. The projection is fed by score.updated
// events and can be rebuilt from the store, so a lost event degrades reads by
// at most one write before the next rebuild.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
	"github.com/bananagame/banago/internal/event"
	"github.com/bananagame/banago/internal/score"
)

// rebuildLimit bounds how many records a rebuild pulls from the store. The
// leaderboard only ever serves a fixed top-N window, so this is plenty.
const rebuildLimit = 1000

type Config struct {
	EventBus *event.Bus
	Store    score.Store
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	store  score.Store
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		store:  c.Store,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
			return s.Update(ctx, e.(domain.EventScoreUpdated).Record)
		})
	}

	return s
}

// Update overwrites the record's member in the ZSET. One member exists per
// (username, date) key, matching the store's identity.
func (s *Service) Update(ctx context.Context, rec domain.ScoreRecord) error {
	if err := s.redis.ZAdd(ctx, s.key(), redis.Z{
		Score:  float64(rec.Points),
		Member: member(rec),
	}).Err(); err != nil {
		return fmt.Errorf("leaderboard: update: %w", err)
	}
	return nil
}

// Top returns up to top entries ordered by points descending, ties broken by
// earlier date. An empty board is a normal empty result.
func (s *Service) Top(ctx context.Context, top int) ([]domain.LeaderboardEntry, error) {
	if top <= 0 {
		return nil, errors.InvalidArgumentf("top must be greater than zero")
	}

	// The full ZSET is read so equal-points ties can be ordered by date
	// here; Redis alone orders ties lexically by member.
	zs, err := s.redis.ZRevRangeWithScores(ctx, s.key(), 0, -1).Result()
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("leaderboard: read: %w", err))
	}

	// An empty projection over a non-empty store means the cache is cold,
	// typically a flushed Redis. Reconverge before answering.
	if len(zs) == 0 && s.store != nil {
		if err := s.Rebuild(ctx); err != nil {
			return nil, err
		}
		zs, err = s.redis.ZRevRangeWithScores(ctx, s.key(), 0, -1).Result()
		if err != nil {
			return nil, errors.Unavailable(fmt.Errorf("leaderboard: read: %w", err))
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		e, err := parseMember(z.Member.(string), int(z.Score))
		if err != nil {
			return nil, fmt.Errorf("leaderboard: %w", err)
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Date.Before(entries[j].Date)
	})

	if top < len(entries) {
		entries = entries[:top]
	}
	return entries, nil
}

// Rebuild replaces the projection with the store's current contents.
func (s *Service) Rebuild(ctx context.Context) error {
	recs, err := s.store.Top(ctx, rebuildLimit)
	if err != nil {
		return fmt.Errorf("leaderboard: rebuild: load store: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key())
		for _, rec := range recs {
			pipe.ZAdd(ctx, s.key(), redis.Z{
				Score:  float64(rec.Points),
				Member: member(rec),
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard: rebuild: %w", err)
	}
	return nil
}

// Size reports how many records the projection currently holds.
func (s *Service) Size(ctx context.Context) (int64, error) {
	n, err := s.redis.ZCard(ctx, s.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("leaderboard: size: %w", err)
	}
	return n, nil
}

func (s *Service) key() string {
	return s.prefix + ":leaderboard"
}

// member encodes the record identity as "username|YYYY-MM-DD". The date sits
// in a fixed-width suffix, so usernames containing the separator stay
// parseable.
func member(rec domain.ScoreRecord) string {
	return rec.Username + "|" + rec.Date.UTC().Format(time.DateOnly)
}

func parseMember(m string, points int) (domain.LeaderboardEntry, error) {
	cut := len(m) - len(time.DateOnly) - 1
	if cut < 1 || !strings.HasPrefix(m[cut:], "|") {
		return domain.LeaderboardEntry{}, fmt.Errorf("malformed member %q", m)
	}

	date, err := time.ParseInLocation(time.DateOnly, m[cut+1:], time.UTC)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("malformed member %q: %w", m, err)
	}

	return domain.LeaderboardEntry{
		Username: m[:cut],
		Points:   points,
		Date:     date,
	}, nil
}
