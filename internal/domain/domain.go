package domain

import (
	"fmt"
	"time"
)

// Level is the difficulty tier of a round. It selects the countdown budget,
// the number of answer options and the points awarded per correct answer.
type Level string

const (
	LevelEasy   Level = "Easy"
	LevelMedium Level = "Medium"
	LevelHard   Level = "Hard"
)

// ParseLevel maps a user-supplied string to a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelEasy, LevelMedium, LevelHard:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

func (l Level) Valid() bool {
	switch l {
	case LevelEasy, LevelMedium, LevelHard:
		return true
	}
	return false
}

// OptionCount is the size of the answer set shown for one question.
func (l Level) OptionCount() int {
	switch l {
	case LevelMedium:
		return 6
	case LevelHard:
		return 7
	default:
		return 4
	}
}

// TimerSeconds is the countdown budget for one round.
func (l Level) TimerSeconds() int {
	switch l {
	case LevelMedium:
		return 50
	case LevelHard:
		return 30
	default:
		return 60
	}
}

// PointsPerCorrect is the score awarded for each correct answer.
func (l Level) PointsPerCorrect() int {
	switch l {
	case LevelMedium:
		return 20
	case LevelHard:
		return 30
	default:
		return 10
	}
}

// Question is one puzzle fetched from the question provider. It lives from
// fetch until the next fetch or the end of the round.
type Question struct {
	ImageRef     string
	CorrectValue int
}

// Principal is the authenticated identity attached to a request. The core
// trusts the username claim issued by the identity collaborator.
type Principal struct {
	Username string
}

// ScoreRecord is one persisted score, keyed by (username, calendar date).
// A later submission for the same key replaces the earlier one.
type ScoreRecord struct {
	Username string
	Points   int
	Date     time.Time
}

// Key is the storage identity of the record: username plus UTC calendar date.
func (r ScoreRecord) Key() string {
	return r.Username + "|" + r.Date.UTC().Format(time.DateOnly)
}

// NormalizeDate discards the time-of-day part, keeping the UTC calendar date.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LeaderboardEntry is the read-only projection of a ScoreRecord. Entries are
// ordered by points descending, ties broken by earlier date.
type LeaderboardEntry struct {
	Username string    `json:"username"`
	Points   int       `json:"points"`
	Date     time.Time `json:"date"`
}

// RoundResult is the terminal tuple a finished round emits exactly once.
type RoundResult struct {
	Username string
	Points   int
	Level    Level
}
