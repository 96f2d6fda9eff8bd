package domain

const (
	EventNameScoreUpdated = "score.updated"
)

// EventScoreUpdated is published after a score upsert has been committed.
type EventScoreUpdated struct {
	Record ScoreRecord
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }
