// Package game runs one timed round: question cycling, option generation,
// scoring, pause and game-over detection. All round state lives inside the
// Engine and is mutated only by its own transitions.
package game

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/options"
)

const defaultDisplayDelay = time.Second

var (
	// ErrNotRunning is returned for answer events outside the Running state.
	ErrNotRunning = stderrors.New("game: round is not accepting answers")
	// ErrAwaitingQuestion is returned while no question is on display, either
	// because the current one was just answered or because its fetch failed.
	ErrAwaitingQuestion = stderrors.New("game: waiting for the next question")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = stderrors.New("game: round already started")
)

type Status string

const (
	StatusLoading Status = "Loading"
	StatusRunning Status = "Running"
	StatusPaused  Status = "Paused"
	StatusOver    Status = "Over"
)

// Source yields one question per call.
type Source interface {
	Fetch(ctx context.Context) (domain.Question, error)
}

type EventKind string

const (
	EventQuestion    EventKind = "question"
	EventTick        EventKind = "tick"
	EventCorrect     EventKind = "correct"
	EventIncorrect   EventKind = "incorrect"
	EventPaused      EventKind = "paused"
	EventResumed     EventKind = "resumed"
	EventFetchFailed EventKind = "fetch_failed"
	EventOver        EventKind = "over"
)

// Event is delivered to Config.OnEvent after each observable transition,
// carrying a snapshot of the round state.
type Event struct {
	Kind  EventKind
	State State
	Err   error
}

// State is a point-in-time copy of the round.
type State struct {
	RoundID          string
	Status           Status
	Level            domain.Level
	Score            int
	RemainingSeconds int
	Question         domain.Question
	Options          []int
	// Obscured marks the question image as visually hidden while paused.
	Obscured bool
	// AwaitingQuestion is set between a correct answer (or a failed fetch)
	// and the next question being displayed.
	AwaitingQuestion bool
}

type Config struct {
	Username string
	Level    domain.Level
	Source   Source

	// Generate defaults to options.Generate.
	Generate func(correct int, level domain.Level) ([]int, error)
	// Clock defaults to the real clock.
	Clock Clock
	// Delay is how long the correct-answer feedback stays on screen before
	// the next question is fetched.
	Delay time.Duration
	// Sink receives the terminal result, exactly once per round.
	Sink func(domain.RoundResult)
	// OnEvent, when set, observes every transition.
	OnEvent func(Event)
}

// Engine is the per-round state machine. It owns a single live ticker at a
// time; every transition that leaves Running tears down pending timers, and
// timer callbacks re-check the state before applying effects.
type Engine struct {
	cfg Config

	mu        sync.Mutex
	ctx       context.Context
	roundID   string
	status    Status
	score     int
	remaining int
	question  domain.Question
	opts      []int
	// needsFetch is set while no answerable question is on display. It
	// blocks re-answering an already-answered question and tells Resume to
	// restart a fetch the pause cancelled.
	needsFetch bool
	// gen invalidates tick and delay callbacks scheduled before the latest
	// Running-state transition.
	gen      uint64
	tickStop chan struct{}
	delay    Timer
}

func NewEngine(c Config) (*Engine, error) {
	if c.Username == "" {
		return nil, stderrors.New("game: username is required")
	}
	if !c.Level.Valid() {
		return nil, stderrors.New("game: invalid level")
	}
	if c.Source == nil {
		return nil, stderrors.New("game: question source is required")
	}
	if c.Generate == nil {
		c.Generate = options.Generate
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	if c.Delay <= 0 {
		c.Delay = defaultDisplayDelay
	}

	return &Engine{
		cfg:        c,
		status:     StatusLoading,
		needsFetch: true,
	}, nil
}

// Start enters Running: the timer budget is set from the level, the countdown
// begins and the first question is fetched. A failed first fetch leaves the
// round Running with no question on display; RetryFetch recovers.
func (e *Engine) Start(ctx context.Context) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.status != StatusLoading {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.ctx = ctx
	e.roundID = id.String()
	e.remaining = e.cfg.Level.TimerSeconds()
	e.status = StatusRunning
	e.gen++
	gen := e.gen
	e.startTickerLocked(gen)
	e.mu.Unlock()

	e.fetch(gen)
	return nil
}

// SelectAnswer applies one answer event. Outside Running it is rejected with
// no state change.
func (e *Engine) SelectAnswer(v int) error {
	var evs []Event

	e.mu.Lock()
	if e.status != StatusRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}
	if e.needsFetch {
		e.mu.Unlock()
		return ErrAwaitingQuestion
	}

	if v == e.question.CorrectValue {
		e.score += e.cfg.Level.PointsPerCorrect()
		e.needsFetch = true
		gen := e.gen
		if e.delay != nil {
			e.delay.Stop()
		}
		e.delay = e.cfg.Clock.AfterFunc(e.cfg.Delay, func() {
			e.fetch(gen)
		})
		evs = append(evs, e.eventLocked(EventCorrect, nil))
	} else {
		// Wrong guess: no penalty, same question stays up.
		evs = append(evs, e.eventLocked(EventIncorrect, nil))
	}
	e.mu.Unlock()

	e.notify(evs)
	return nil
}

// TogglePause flips Running and Paused. Pausing stops the countdown and any
// pending next-question delay; resuming restarts both without losing or
// doubling a tick.
func (e *Engine) TogglePause() error {
	var (
		evs     []Event
		fetch   uint64
		doFetch bool
	)

	e.mu.Lock()
	switch e.status {
	case StatusRunning:
		e.gen++
		e.stopTimersLocked()
		e.status = StatusPaused
		evs = append(evs, e.eventLocked(EventPaused, nil))
	case StatusPaused:
		e.status = StatusRunning
		e.gen++
		e.startTickerLocked(e.gen)
		if e.needsFetch {
			fetch, doFetch = e.gen, true
		}
		evs = append(evs, e.eventLocked(EventResumed, nil))
	default:
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.mu.Unlock()

	e.notify(evs)
	if doFetch {
		go e.fetch(fetch)
	}
	return nil
}

// RetryFetch re-requests a question after a failed fetch. It is a no-op when
// a question is already on display.
func (e *Engine) RetryFetch() error {
	e.mu.Lock()
	if e.status != StatusRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}
	if !e.needsFetch {
		e.mu.Unlock()
		return nil
	}
	gen := e.gen
	e.mu.Unlock()

	e.fetch(gen)
	return nil
}

// Stop is the manual exit to Over. Calling it on a finished round is a no-op.
func (e *Engine) Stop() {
	var evs []Event

	e.mu.Lock()
	result := e.overLocked(&evs)
	e.mu.Unlock()

	e.notify(evs)
	if result != nil && e.cfg.Sink != nil {
		e.cfg.Sink(*result)
	}
}

// Snapshot returns a copy of the current round state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// fetch loads the next question and applies it only if the round is still in
// the same Running generation; a pause or game over in between discards the
// result.
func (e *Engine) fetch(gen uint64) {
	q, err := e.cfg.Source.Fetch(e.ctx)

	var evs []Event
	e.mu.Lock()
	if e.status != StatusRunning || gen != e.gen {
		e.mu.Unlock()
		return
	}

	if err == nil {
		var opts []int
		opts, err = e.cfg.Generate(q.CorrectValue, e.cfg.Level)
		if err == nil {
			e.question = q
			e.opts = opts
			e.needsFetch = false
			evs = append(evs, e.eventLocked(EventQuestion, nil))
		}
	}
	if err != nil {
		slog.Warn("game: question fetch failed", "round", e.roundID, "error", err)
		evs = append(evs, e.eventLocked(EventFetchFailed, err))
	}
	e.mu.Unlock()

	e.notify(evs)
}

func (e *Engine) startTickerLocked(gen uint64) {
	if e.tickStop != nil {
		close(e.tickStop)
	}
	t := e.cfg.Clock.NewTicker(time.Second)
	stop := make(chan struct{})
	e.tickStop = stop

	// The stop channel unblocks the loop once the ticker is torn down; a
	// stopped ticker alone would leave the goroutine parked on C() forever.
	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				if !e.tick(gen) {
					return
				}
			}
		}
	}()
}

// tick consumes one elapsed second. It reports false once its generation is
// stale so the ticker goroutine exits.
func (e *Engine) tick(gen uint64) bool {
	var evs []Event
	var result *domain.RoundResult

	e.mu.Lock()
	if e.status != StatusRunning || gen != e.gen {
		e.mu.Unlock()
		return false
	}
	e.remaining--
	evs = append(evs, e.eventLocked(EventTick, nil))
	if e.remaining <= 0 {
		result = e.overLocked(&evs)
	}
	e.mu.Unlock()

	e.notify(evs)
	if result != nil && e.cfg.Sink != nil {
		e.cfg.Sink(*result)
	}
	return result == nil
}

// overLocked transitions to Over and returns the terminal result, or nil when
// the round is already finished. The status guard makes re-entry idempotent.
func (e *Engine) overLocked(evs *[]Event) *domain.RoundResult {
	if e.status == StatusOver {
		return nil
	}
	e.gen++
	e.stopTimersLocked()
	e.status = StatusOver
	*evs = append(*evs, e.eventLocked(EventOver, nil))

	return &domain.RoundResult{
		Username: e.cfg.Username,
		Points:   e.score,
		Level:    e.cfg.Level,
	}
}

func (e *Engine) stopTimersLocked() {
	if e.tickStop != nil {
		close(e.tickStop)
		e.tickStop = nil
	}
	if e.delay != nil {
		e.delay.Stop()
		e.delay = nil
	}
}

func (e *Engine) stateLocked() State {
	opts := make([]int, len(e.opts))
	copy(opts, e.opts)

	return State{
		RoundID:          e.roundID,
		Status:           e.status,
		Level:            e.cfg.Level,
		Score:            e.score,
		RemainingSeconds: e.remaining,
		Question:         e.question,
		Options:          opts,
		Obscured:         e.status == StatusPaused,
		AwaitingQuestion: e.needsFetch,
	}
}

func (e *Engine) eventLocked(kind EventKind, err error) Event {
	return Event{Kind: kind, State: e.stateLocked(), Err: err}
}

// notify delivers events outside the engine lock so handlers may call back in.
func (e *Engine) notify(evs []Event) {
	if e.cfg.OnEvent == nil {
		return
	}
	for _, ev := range evs {
		e.cfg.OnEvent(ev)
	}
}
