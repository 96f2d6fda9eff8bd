package score

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
)

// PostgresStore keeps one row per (username, date); ON CONFLICT makes the
// upsert atomic under concurrent submissions for the same key.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the scores table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS scores (
	username TEXT NOT NULL,
	date     DATE NOT NULL,
	points   INTEGER NOT NULL CHECK (points >= 0),
	PRIMARY KEY (username, date)
);`

	_, err := s.db.Exec(ctx, stmt)
	return err
}

func (s *PostgresStore) Upsert(ctx context.Context, rec domain.ScoreRecord) error {
	const stmt = `
INSERT INTO scores (username, date, points)
VALUES ($1, $2, $3)
ON CONFLICT (username, date) DO UPDATE SET points = EXCLUDED.points;`

	_, err := s.db.Exec(ctx, stmt, rec.Username, rec.Date, rec.Points)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists, errors.WithCause(err))
	}

	return err
}

func (s *PostgresStore) Top(ctx context.Context, n int) ([]domain.ScoreRecord, error) {
	const stmt = `
SELECT username, points, date
FROM scores
ORDER BY points DESC, date ASC
LIMIT $1;`

	rows, err := s.db.Query(ctx, stmt, n)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ScoreRecord, error) {
		var rec domain.ScoreRecord
		if err := r.Scan(&rec.Username, &rec.Points, &rec.Date); err != nil {
			return domain.ScoreRecord{}, err
		}
		rec.Date = domain.NormalizeDate(rec.Date)
		return rec, nil
	})
}

func (s *PostgresStore) HighestScore(ctx context.Context, username string) (int, bool, error) {
	const stmt = `
SELECT points
FROM scores
WHERE username = $1
ORDER BY points DESC
LIMIT 1;`

	var points int
	err := s.db.QueryRow(ctx, stmt, username).Scan(&points)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return points, true, nil
}
