package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"quiz-game-service/internal/domain"
)

const (
	// CountdownSeconds is the time a player has for each question.
	CountdownSeconds = 30
	// RevealDelay is how long the outcome of an answer is shown before the game moves on.
	RevealDelay = time.Second

	tickInterval  = time.Second
	recordTimeout = 5 * time.Second
)

// ErrEngineClosed is returned by Start after Close.
var ErrEngineClosed = errors.New("game engine closed")

// QuestionBank loads the questions of a category.
type QuestionBank interface {
	Questions(ctx context.Context, category string) ([]domain.Question, error)
	Categories(ctx context.Context) ([]string, error)
}

// ResultRecorder archives a finished game and returns the updated leaderboard.
type ResultRecorder interface {
	Record(ctx context.Context, result domain.GameResult) []domain.LeaderboardEntry
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock drives countdowns and reveal delays from clock.
func WithClock(clock clockwork.Clock) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithRand sets the source used to shuffle questions.
func WithRand(rnd *rand.Rand) EngineOption {
	return func(e *Engine) { e.rnd = rnd }
}

// WithRevealDelay overrides RevealDelay. A delay <= 0 advances immediately.
func WithRevealDelay(d time.Duration) EngineOption {
	return func(e *Engine) { e.revealDelay = d }
}

// WithCountdown overrides CountdownSeconds.
func WithCountdown(seconds int) EngineOption {
	return func(e *Engine) {
		if seconds > 0 {
			e.countdownSeconds = seconds
		}
	}
}

// WithRecorder archives terminal results.
func WithRecorder(r ResultRecorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// session is one play-through. It is only touched while holding Engine.mu.
type session struct {
	playerName   string
	category     string
	order        []domain.Question
	index        int // meaningful only while playing
	score        int
	state        domain.GameState
	timerSeconds int
	paused       bool
	reveal       *domain.Reveal
	recorded     bool
	leaderboard  []domain.LeaderboardEntry
}

// Engine owns a single game session and serializes every event that mutates it:
// player intents, countdown ticks and reveal completion.
type Engine struct {
	bank             QuestionBank
	recorder         ResultRecorder
	clock            clockwork.Clock
	countdownSeconds int
	revealDelay      time.Duration

	mu           sync.Mutex
	rnd          *rand.Rand
	session      *session
	generation   uint64
	countdown    *Countdown
	revealTimer  clockwork.Timer
	lastActivity time.Time
	clients      int
	closed       bool
	subscribers  map[chan domain.Snapshot]struct{}
}

func NewEngine(bank QuestionBank, opts ...EngineOption) *Engine {
	e := &Engine{
		bank:             bank,
		clock:            clockwork.NewRealClock(),
		countdownSeconds: CountdownSeconds,
		revealDelay:      RevealDelay,
		rnd:              rand.New(rand.NewSource(time.Now().UnixNano())),
		subscribers:      make(map[chan domain.Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.countdown = newCountdown(e.clock, tickInterval, e.tick)
	e.lastActivity = e.clock.Now()
	return e
}

// Start validates the request and replaces any current session with a fresh one.
// On a ValidationError the previous state is left untouched.
func (e *Engine) Start(ctx context.Context, name, category string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &domain.ValidationError{Field: "name", Message: "a player name is required"}
	}
	if strings.TrimSpace(category) == "" {
		return &domain.ValidationError{Field: "category", Message: "a category is required"}
	}

	questions, err := e.bank.Questions(ctx, category)
	if errors.Is(err, domain.ErrCategoryNotFound) {
		return &domain.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", category)}
	}
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return &domain.ValidationError{Field: "category", Message: fmt.Sprintf("category %q has no questions", category)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.touchLocked()
	e.discardLocked()

	order := slices.Clone(questions)
	e.rnd.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	e.session = &session{
		playerName:   name,
		category:     category,
		order:        order,
		state:        domain.StatePlaying,
		timerSeconds: e.countdownSeconds,
	}
	e.startTimerLocked()
	e.broadcastLocked()
	return nil
}

// SubmitAnswer evaluates value against the current question and enters the reveal
// window. It returns false when the answer was ignored: no game in progress, or an
// answer for this question is already being revealed.
func (e *Engine) SubmitAnswer(value string) (domain.Reveal, bool) {
	e.mu.Lock()
	s := e.session
	if s == nil || s.state != domain.StatePlaying || s.reveal != nil {
		e.mu.Unlock()
		return domain.Reveal{}, false
	}
	e.touchLocked()

	q := s.order[s.index]
	reveal := &domain.Reveal{Selected: value, Correct: q.Matches(value), Answer: q.Answer}
	s.reveal = reveal
	e.stopTimerLocked()
	e.broadcastLocked()

	if e.revealDelay <= 0 {
		result := e.advanceLocked(s)
		e.broadcastLocked()
		e.mu.Unlock()
		e.archive(s, result)
		return *reveal, true
	}
	e.revealTimer = e.clock.AfterFunc(e.revealDelay, func() {
		e.completeReveal(s, reveal)
	})
	e.mu.Unlock()
	return *reveal, true
}

// TimerExpired ends the game as lost if a question is still open.
func (e *Engine) TimerExpired() {
	e.mu.Lock()
	s := e.session
	if s == nil || s.state != domain.StatePlaying || s.reveal != nil {
		e.mu.Unlock()
		return
	}
	result := e.expireLocked(s)
	e.broadcastLocked()
	e.mu.Unlock()
	e.archive(s, result)
}

// Pause suspends the countdown. Repeated calls are no-ops.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touchLocked()
	if e.pauseLocked() {
		e.broadcastLocked()
	}
}

// Resume restarts the countdown from the remaining seconds.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touchLocked()
	s := e.session
	if s == nil || s.state != domain.StatePlaying || !s.paused {
		return
	}
	s.paused = false
	e.startTimerLocked()
	e.broadcastLocked()
}

// RequestHint returns the hint of the current question.
func (e *Engine) RequestHint() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.session
	if s == nil || s.state != domain.StatePlaying {
		return "", false
	}
	e.touchLocked()
	return s.order[s.index].Hint, true
}

// Snapshot returns a copy of the current session.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel that receives a snapshot after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (e *Engine) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	e.mu.Lock()
	initial := e.snapshotLocked()
	if e.closed {
		e.mu.Unlock()
		ch <- initial
		close(ch)
		return ch, func() {}
	}
	e.subscribers[ch] = struct{}{}
	// sent under the lock so no broadcast can overtake it
	ch <- initial
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// Close stops all timers and closes subscriber channels.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *Engine) closeLocked() {
	if e.closed {
		return
	}
	e.closed = true
	e.discardLocked()
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
}

// attach registers a connected client; it fails once the engine is closed.
func (e *Engine) attach() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.clients++
	e.touchLocked()
	return true
}

// detach drops a client; the game is paused when nobody is watching.
func (e *Engine) detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clients > 0 {
		e.clients--
	}
	e.touchLocked()
	if e.clients == 0 && e.pauseLocked() {
		e.broadcastLocked()
	}
}

// closeIfIdle closes the engine when no client is attached and nothing happened
// for at least d. The check and the close share one critical section so a
// concurrent attach either wins or sees a closed engine.
func (e *Engine) closeIfIdle(d time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.clients > 0 || e.clock.Since(e.lastActivity) < d {
		return false
	}
	e.closeLocked()
	return true
}

func (e *Engine) tick(generation uint64) {
	e.mu.Lock()
	s := e.session
	if generation != e.generation || s == nil || s.state != domain.StatePlaying || s.paused || s.reveal != nil {
		e.mu.Unlock()
		return
	}
	s.timerSeconds--
	var result *domain.GameResult
	if s.timerSeconds <= 0 {
		result = e.expireLocked(s)
	}
	e.broadcastLocked()
	e.mu.Unlock()
	e.archive(s, result)
}

func (e *Engine) completeReveal(s *session, reveal *domain.Reveal) {
	e.mu.Lock()
	if e.session != s || s.reveal != reveal {
		e.mu.Unlock()
		return
	}
	e.revealTimer = nil
	result := e.advanceLocked(s)
	e.broadcastLocked()
	e.mu.Unlock()
	e.archive(s, result)
}

// advanceLocked applies the revealed outcome: next question, win or loss.
func (e *Engine) advanceLocked(s *session) *domain.GameResult {
	correct := s.reveal.Correct
	s.reveal = nil
	if !correct {
		return e.finishLocked(s, domain.StateLost)
	}
	s.score++
	if s.index == len(s.order)-1 {
		return e.finishLocked(s, domain.StateWon)
	}
	s.index++
	s.timerSeconds = e.countdownSeconds
	e.startTimerLocked()
	return nil
}

func (e *Engine) expireLocked(s *session) *domain.GameResult {
	s.timerSeconds = 0
	return e.finishLocked(s, domain.StateLost)
}

// finishLocked moves s to a terminal state and returns its result the first time only.
func (e *Engine) finishLocked(s *session, state domain.GameState) *domain.GameResult {
	if s.state.Terminal() {
		return nil
	}
	s.state = state
	s.paused = false
	e.stopTimerLocked()
	if s.recorded {
		return nil
	}
	s.recorded = true
	return &domain.GameResult{
		Name:     s.playerName,
		Category: s.category,
		Score:    s.score,
		State:    state,
	}
}

func (e *Engine) pauseLocked() bool {
	s := e.session
	if s == nil || s.state != domain.StatePlaying || s.paused {
		return false
	}
	s.paused = true
	e.stopTimerLocked()
	return true
}

// startTimerLocked runs the countdown if the current question is open and unpaused.
func (e *Engine) startTimerLocked() {
	s := e.session
	if s == nil || s.state != domain.StatePlaying || s.paused || s.reveal != nil {
		return
	}
	e.generation++
	e.countdown.Start(e.generation)
}

func (e *Engine) stopTimerLocked() {
	e.generation++
	e.countdown.Stop()
}

// discardLocked cancels everything scheduled for the current session.
func (e *Engine) discardLocked() {
	e.stopTimerLocked()
	if e.revealTimer != nil {
		e.revealTimer.Stop()
		e.revealTimer = nil
	}
}

func (e *Engine) touchLocked() {
	e.lastActivity = e.clock.Now()
}

// archive hands a terminal result to the recorder outside the engine lock and
// publishes the leaderboard it returns.
func (e *Engine) archive(s *session, result *domain.GameResult) {
	if result == nil || e.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	leaderboard := e.recorder.Record(ctx, *result)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != s {
		return
	}
	s.leaderboard = leaderboard
	e.broadcastLocked()
}

func (e *Engine) broadcastLocked() {
	snap := e.snapshotLocked()
	for ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest update so a slow reader never blocks the engine
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (e *Engine) snapshotLocked() domain.Snapshot {
	s := e.session
	if s == nil {
		return domain.Snapshot{State: domain.StateStart, TimerSeconds: e.countdownSeconds}
	}
	snap := domain.Snapshot{
		PlayerName:   s.playerName,
		Category:     s.category,
		State:        s.state,
		Total:        len(s.order),
		Score:        s.score,
		TimerSeconds: s.timerSeconds,
		Paused:       s.paused,
		Leaderboard:  slices.Clone(s.leaderboard),
	}
	if !s.state.Terminal() {
		index := s.index
		view := s.order[index].View()
		snap.Index = &index
		snap.Question = &view
	}
	if s.reveal != nil {
		reveal := *s.reveal
		snap.Reveal = &reveal
	}
	return snap
}
