package app_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
)

func TestStartValidatesRequest(t *testing.T) {
	ctx := context.Background()
	engine := app.NewEngine(scienceBank(), app.WithClock(clockwork.NewFakeClock()))
	defer engine.Close()

	for _, tc := range []struct{ name, category string }{
		{"", "science"},
		{"   ", "science"},
		{"Alice", ""},
		{"Alice", "history"},
		{"Alice", "empty"},
	} {
		err := engine.Start(ctx, tc.name, tc.category)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("start(%q, %q): expected validation error, got %v", tc.name, tc.category, err)
		}
		if snap := engine.Snapshot(); snap.State != domain.StateStart {
			t.Fatalf("expected state to remain start, got %s", snap.State)
		}
	}
}

func TestAnsweringEverythingWins(t *testing.T) {
	ctx := context.Background()
	recorder := &recordingRecorder{}
	engine := app.NewEngine(scienceBank(),
		app.WithClock(clockwork.NewFakeClock()),
		app.WithRevealDelay(0),
		app.WithRecorder(recorder),
	)
	defer engine.Close()

	if err := engine.Start(ctx, "Alice", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		snap := engine.Snapshot()
		if snap.State != domain.StatePlaying || snap.Index == nil || *snap.Index != i {
			t.Fatalf("expected question %d in play, got %+v", i, snap)
		}
		if snap.Score != i {
			t.Fatalf("expected score %d before question %d, got %d", i, i, snap.Score)
		}
		seen[snap.Question.Content] = true
		reveal, ok := engine.SubmitAnswer(strings.ToUpper(answerFor(t, snap)))
		if !ok || !reveal.Correct {
			t.Fatalf("expected correct answer to be accepted, got %+v ok=%v", reveal, ok)
		}
	}

	snap := engine.Snapshot()
	if snap.State != domain.StateWon || snap.Score != 3 || snap.Total != 3 {
		t.Fatalf("expected won with score 3, got %+v", snap)
	}
	if snap.Index != nil || snap.Question != nil {
		t.Fatalf("expected no current question after winning, got %+v", snap)
	}
	if len(seen) != 3 {
		t.Fatalf("expected every question exactly once, saw %v", seen)
	}
	if got := recorder.results(); len(got) != 1 || got[0].Score != 3 || got[0].State != domain.StateWon {
		t.Fatalf("expected a single won result, got %+v", got)
	}
	if len(snap.Leaderboard) != 1 || snap.Leaderboard[0] != (domain.LeaderboardEntry{Name: "Alice", Score: 3}) {
		t.Fatalf("expected leaderboard with Alice, got %+v", snap.Leaderboard)
	}
}

func TestWrongAnswerOnSecondQuestionLoses(t *testing.T) {
	ctx := context.Background()
	recorder := &recordingRecorder{}
	engine := app.NewEngine(scienceBank(),
		app.WithClock(clockwork.NewFakeClock()),
		app.WithRevealDelay(0),
		app.WithRecorder(recorder),
	)
	defer engine.Close()

	if err := engine.Start(ctx, "Bob", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	engine.SubmitAnswer(answerFor(t, engine.Snapshot()))
	reveal, ok := engine.SubmitAnswer("definitely wrong")
	if !ok || reveal.Correct {
		t.Fatalf("expected wrong answer to be evaluated, got %+v ok=%v", reveal, ok)
	}

	snap := engine.Snapshot()
	if snap.State != domain.StateLost || snap.Score != 1 {
		t.Fatalf("expected lost with score 1, got %+v", snap)
	}

	// terminal: nothing below may change the session or archive it again
	engine.SubmitAnswer("anything")
	engine.TimerExpired()
	engine.Pause()
	engine.Resume()
	if _, ok := engine.RequestHint(); ok {
		t.Fatalf("expected no hint after the game ended")
	}
	after := engine.Snapshot()
	if after.State != domain.StateLost || after.Score != 1 || after.Paused {
		t.Fatalf("expected terminal session to stay unchanged, got %+v", after)
	}
	if got := recorder.results(); len(got) != 1 {
		t.Fatalf("expected result archived once, got %d", len(got))
	}
}

func TestRevealWindowIgnoresFurtherAnswers(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	engine := app.NewEngine(scienceBank(), app.WithClock(clock))
	defer engine.Close()

	updates, cancel := engine.Subscribe()
	defer cancel()

	if err := engine.Start(ctx, "Alice", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	answer := answerFor(t, engine.Snapshot())
	reveal, ok := engine.SubmitAnswer(answer)
	if !ok || !reveal.Correct || reveal.Answer != answer {
		t.Fatalf("expected correct reveal, got %+v ok=%v", reveal, ok)
	}

	if _, ok := engine.SubmitAnswer("something else"); ok {
		t.Fatalf("expected second answer during reveal to be ignored")
	}
	snap := engine.Snapshot()
	if snap.Reveal == nil || !snap.Reveal.Correct {
		t.Fatalf("expected reveal in snapshot, got %+v", snap)
	}
	if snap.Score != 0 || *snap.Index != 0 {
		t.Fatalf("expected no advance during reveal, got score=%d index=%d", snap.Score, *snap.Index)
	}

	clock.Advance(app.RevealDelay)
	waitFor(t, updates, func(s domain.Snapshot) bool {
		return s.Index != nil && *s.Index == 1 && s.Score == 1 && s.Reveal == nil && s.TimerSeconds == app.CountdownSeconds
	})
}

func TestCountdownExpiryLoses(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	recorder := &recordingRecorder{}
	engine := app.NewEngine(scienceBank(), app.WithClock(clock), app.WithRecorder(recorder))
	defer engine.Close()

	updates, cancel := engine.Subscribe()
	defer cancel()

	if err := engine.Start(ctx, "Carol", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for remaining := app.CountdownSeconds - 1; remaining > 0; remaining-- {
		clock.Advance(time.Second)
		want := remaining
		waitFor(t, updates, func(s domain.Snapshot) bool { return s.TimerSeconds == want })
	}

	clock.Advance(time.Second)
	snap := waitFor(t, updates, func(s domain.Snapshot) bool {
		return s.State == domain.StateLost && len(s.Leaderboard) == 1
	})
	if snap.Score != 0 || snap.TimerSeconds != 0 {
		t.Fatalf("expected lost with nothing scored, got %+v", snap)
	}

	clock.Advance(5 * time.Second)
	if after := engine.Snapshot(); after.TimerSeconds != 0 || after.State != domain.StateLost {
		t.Fatalf("expected countdown to stay stopped, got %+v", after)
	}
	if got := recorder.results(); len(got) != 1 || got[0].State != domain.StateLost {
		t.Fatalf("expected single lost result, got %+v", got)
	}
}

func TestPauseSuspendsCountdown(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	engine := app.NewEngine(scienceBank(), app.WithClock(clock))
	defer engine.Close()

	updates, cancel := engine.Subscribe()
	defer cancel()

	if err := engine.Start(ctx, "Dan", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(time.Second)
	waitFor(t, updates, func(s domain.Snapshot) bool { return s.TimerSeconds == app.CountdownSeconds-1 })

	engine.Pause()
	engine.Pause()
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
	}
	snap := engine.Snapshot()
	if !snap.Paused || snap.TimerSeconds != app.CountdownSeconds-1 {
		t.Fatalf("expected paused countdown at %d, got %+v", app.CountdownSeconds-1, snap)
	}
	if _, ok := engine.RequestHint(); !ok {
		t.Fatalf("expected hint while paused")
	}

	engine.Resume()
	clock.Advance(time.Second)
	waitFor(t, updates, func(s domain.Snapshot) bool {
		return !s.Paused && s.TimerSeconds == app.CountdownSeconds-2
	})
}

func TestRevealSuspendsCountdownAndKeepsPause(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	engine := app.NewEngine(scienceBank(), app.WithClock(clock))
	defer engine.Close()

	updates, cancel := engine.Subscribe()
	defer cancel()

	if err := engine.Start(ctx, "Erin", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for remaining := app.CountdownSeconds - 1; remaining >= 1; remaining-- {
		clock.Advance(time.Second)
		want := remaining
		waitFor(t, updates, func(s domain.Snapshot) bool { return s.TimerSeconds == want })
	}

	if _, ok := engine.SubmitAnswer(answerFor(t, engine.Snapshot())); !ok {
		t.Fatalf("expected answer to be accepted")
	}
	engine.Pause()

	// the last second of the countdown would have expired here; only the reveal completes
	clock.Advance(app.RevealDelay)
	snap := waitFor(t, updates, func(s domain.Snapshot) bool { return s.Reveal == nil && s.Index != nil && *s.Index == 1 })
	if snap.State != domain.StatePlaying || snap.Score != 1 || snap.TimerSeconds != app.CountdownSeconds || !snap.Paused {
		t.Fatalf("expected paused second question with a fresh countdown, got %+v", snap)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
	}
	if after := engine.Snapshot(); after.TimerSeconds != app.CountdownSeconds || !after.Paused {
		t.Fatalf("expected countdown to stay at %d while paused, got %+v", app.CountdownSeconds, after)
	}
}

func TestCustomCountdownLength(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	engine := app.NewEngine(scienceBank(), app.WithClock(clock), app.WithCountdown(3))
	defer engine.Close()

	updates, cancel := engine.Subscribe()
	defer cancel()

	if err := engine.Start(ctx, "Finn", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap := engine.Snapshot(); snap.TimerSeconds != 3 {
		t.Fatalf("expected 3 seconds on the clock, got %d", snap.TimerSeconds)
	}
	for remaining := 2; remaining >= 1; remaining-- {
		clock.Advance(time.Second)
		want := remaining
		waitFor(t, updates, func(s domain.Snapshot) bool { return s.TimerSeconds == want })
	}
	clock.Advance(time.Second)
	waitFor(t, updates, func(s domain.Snapshot) bool { return s.State == domain.StateLost })
}

func TestSubscribeNeverDeliversStaleSnapshotLast(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		engine := app.NewEngine(scienceBank(), app.WithClock(clockwork.NewFakeClock()))
		if err := engine.Start(ctx, "Gus", "science"); err != nil {
			t.Fatalf("start: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.TimerExpired()
		}()
		updates, cancel := engine.Subscribe()
		wg.Wait()

		var last domain.Snapshot
	drain:
		for {
			select {
			case snap := <-updates:
				last = snap
			default:
				break drain
			}
		}
		if last.State != domain.StateLost {
			t.Fatalf("iteration %d: expected last delivered snapshot to be lost, got %s", i, last.State)
		}
		cancel()
		engine.Close()
	}
}

func TestTimerExpiredIsIgnoredOutsidePlay(t *testing.T) {
	ctx := context.Background()
	engine := app.NewEngine(scienceBank(), app.WithClock(clockwork.NewFakeClock()))
	defer engine.Close()

	engine.TimerExpired()
	if snap := engine.Snapshot(); snap.State != domain.StateStart {
		t.Fatalf("expected start state, got %s", snap.State)
	}

	if err := engine.Start(ctx, "Eve", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	engine.TimerExpired()
	snap := engine.Snapshot()
	if snap.State != domain.StateLost || snap.TimerSeconds != 0 || snap.Score != 0 {
		t.Fatalf("expected timeout loss, got %+v", snap)
	}
}

func TestRestartReplacesSessionAndCountdown(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	engine := app.NewEngine(scienceBank(), app.WithClock(clock), app.WithRevealDelay(0))
	defer engine.Close()

	updates, cancel := engine.Subscribe()
	defer cancel()

	if err := engine.Start(ctx, "Frank", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	engine.SubmitAnswer(answerFor(t, engine.Snapshot()))
	if err := engine.Start(ctx, "Grace", "science"); err != nil {
		t.Fatalf("restart: %v", err)
	}

	snap := engine.Snapshot()
	if snap.PlayerName != "Grace" || snap.Score != 0 || *snap.Index != 0 || snap.TimerSeconds != app.CountdownSeconds {
		t.Fatalf("expected fresh session, got %+v", snap)
	}

	clock.Advance(time.Second)
	waitFor(t, updates, func(s domain.Snapshot) bool { return s.TimerSeconds == app.CountdownSeconds-1 })
	time.Sleep(20 * time.Millisecond)
	if got := engine.Snapshot().TimerSeconds; got != app.CountdownSeconds-1 {
		t.Fatalf("expected a single countdown, timer at %d", got)
	}
}

func TestRequestHintReturnsCurrentHint(t *testing.T) {
	ctx := context.Background()
	engine := app.NewEngine(scienceBank(), app.WithClock(clockwork.NewFakeClock()))
	defer engine.Close()

	if _, ok := engine.RequestHint(); ok {
		t.Fatalf("expected no hint before start")
	}
	if err := engine.Start(ctx, "Heidi", "science"); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := engine.Snapshot()
	hint, ok := engine.RequestHint()
	if !ok || hint != hintFor(t, snap) {
		t.Fatalf("expected hint for %q, got %q", snap.Question.Content, hint)
	}
	if after := engine.Snapshot(); after.Score != snap.Score || *after.Index != *snap.Index {
		t.Fatalf("hint must not change the game")
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	engine := app.NewEngine(scienceBank(), app.WithClock(clockwork.NewFakeClock()))
	updates, cancel := engine.Subscribe()
	defer cancel()

	<-updates // initial snapshot
	engine.Close()
	if _, ok := <-updates; ok {
		t.Fatalf("expected channel closed after Close")
	}
	if err := engine.Start(context.Background(), "Ivan", "science"); !errors.Is(err, app.ErrEngineClosed) {
		t.Fatalf("expected closed engine error, got %v", err)
	}
}

type staticBank map[string][]domain.Question

func (b staticBank) Questions(_ context.Context, category string) ([]domain.Question, error) {
	questions, ok := b[category]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	return questions, nil
}

func (b staticBank) Categories(context.Context) ([]string, error) {
	return domain.QuestionBank(b).Categories(), nil
}

func scienceBank() staticBank {
	return staticBank{
		"science": {
			{Type: domain.QuestionMCQ, Content: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter"}, Answer: "Mars", Hint: "Named after a god of war"},
			{Type: domain.QuestionFill, Content: "Water is made of hydrogen and ____.", Answer: "oxygen", Hint: "You breathe it"},
			{Type: domain.QuestionRiddle, Content: "What has keys but can't open locks?", Answer: "piano", Hint: "It makes music"},
		},
		"empty": {},
	}
}

func answerFor(t *testing.T, snap domain.Snapshot) string {
	t.Helper()
	return findQuestion(t, snap).Answer
}

func hintFor(t *testing.T, snap domain.Snapshot) string {
	t.Helper()
	return findQuestion(t, snap).Hint
}

func findQuestion(t *testing.T, snap domain.Snapshot) domain.Question {
	t.Helper()
	if snap.Question == nil {
		t.Fatalf("no current question in %+v", snap)
	}
	questions := scienceBank()["science"]
	i := slices.IndexFunc(questions, func(q domain.Question) bool { return q.Content == snap.Question.Content })
	if i < 0 {
		t.Fatalf("unknown question %q", snap.Question.Content)
	}
	return questions[i]
}

// waitFor drains updates until match succeeds.
func waitFor(t *testing.T, updates <-chan domain.Snapshot, match func(domain.Snapshot) bool) domain.Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				t.Fatalf("updates closed before expected snapshot")
			}
			if match(snap) {
				return snap
			}
		case <-timeout:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}

type recordingRecorder struct {
	mu  sync.Mutex
	got []domain.GameResult
}

func (r *recordingRecorder) Record(_ context.Context, result domain.GameResult) []domain.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, result)
	return []domain.LeaderboardEntry{{Name: result.Name, Score: result.Score}}
}

func (r *recordingRecorder) results() []domain.GameResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.got)
}
