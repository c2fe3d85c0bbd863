package domain

import (
	"fmt"
	"slices"
	"strings"
)

// QuestionType tells the client how a question is answered.
type QuestionType string

const (
	QuestionMCQ    QuestionType = "mcq"
	QuestionFill   QuestionType = "fill"
	QuestionRiddle QuestionType = "riddle"
)

// Question is immutable once loaded from the question bank.
type Question struct {
	Type    QuestionType `json:"type" yaml:"type"`
	Content string       `json:"content" yaml:"content"`
	Options []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Answer  string       `json:"answer" yaml:"answer"`
	Hint    string       `json:"hint" yaml:"hint"`
}

// Matches reports whether value is the question's answer, ignoring case.
func (q Question) Matches(value string) bool {
	return strings.ToLower(value) == strings.ToLower(q.Answer)
}

// Validate checks the question shape; options are required iff the question is an mcq.
func (q Question) Validate() error {
	switch q.Type {
	case QuestionMCQ:
		if len(q.Options) == 0 {
			return fmt.Errorf("mcq question %q has no options", q.Content)
		}
	case QuestionFill, QuestionRiddle:
		if len(q.Options) > 0 {
			return fmt.Errorf("%s question %q must not have options", q.Type, q.Content)
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	if strings.TrimSpace(q.Content) == "" {
		return fmt.Errorf("%s question has no content", q.Type)
	}
	if q.Answer == "" {
		return fmt.Errorf("question %q has no answer", q.Content)
	}
	return nil
}

// View strips the answer and hint so the question can be shown to a player.
func (q Question) View() QuestionView {
	return QuestionView{
		Type:    q.Type,
		Content: q.Content,
		Options: slices.Clone(q.Options),
	}
}

// QuestionView is the player-facing part of a question.
type QuestionView struct {
	Type    QuestionType `json:"type"`
	Content string       `json:"content"`
	Options []string     `json:"options,omitempty"`
}

// QuestionBank maps a category name to its ordered questions.
type QuestionBank map[string][]Question

// Validate rejects empty categories and malformed questions.
func (b QuestionBank) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("question bank is empty")
	}
	for category, questions := range b {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("question bank has an unnamed category")
		}
		if len(questions) == 0 {
			return fmt.Errorf("category %q has no questions", category)
		}
		for i, q := range questions {
			if err := q.Validate(); err != nil {
				return fmt.Errorf("category %q question %d: %w", category, i, err)
			}
		}
	}
	return nil
}

// Categories returns the category names in lexical order.
func (b QuestionBank) Categories() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GameState is the top-level state of a game session.
type GameState string

const (
	StateStart   GameState = "start"
	StatePlaying GameState = "playing"
	StateWon     GameState = "won"
	StateLost    GameState = "lost"
)

// Terminal reports whether no further mutation is allowed in this state.
func (s GameState) Terminal() bool {
	return s == StateWon || s == StateLost
}

// Reveal is the short-lived outcome of an answer shown before the game advances.
type Reveal struct {
	Selected string `json:"selected"`
	Correct  bool   `json:"correct"`
	Answer   string `json:"answer"`
}

// Snapshot is a read-only copy of a session handed to presentation layers.
type Snapshot struct {
	PlayerName   string             `json:"playerName,omitempty"`
	Category     string             `json:"category,omitempty"`
	State        GameState          `json:"state"`
	Question     *QuestionView      `json:"question,omitempty"`
	Index        *int               `json:"index,omitempty"`
	Total        int                `json:"total"`
	Score        int                `json:"score"`
	TimerSeconds int                `json:"timerSeconds"`
	Paused       bool               `json:"paused"`
	Reveal       *Reveal            `json:"reveal,omitempty"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard,omitempty"`
}

// GameResult is archived once when a session reaches a terminal state.
type GameResult struct {
	Name     string
	Category string
	Score    int
	State    GameState
}

// LeaderboardEntry is one archived result.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// SortLeaderboard returns a copy of entries ordered by score, highest first.
// Entries with equal scores keep their relative order.
func SortLeaderboard(entries []LeaderboardEntry) []LeaderboardEntry {
	sorted := make([]LeaderboardEntry, len(entries))
	copy(sorted, entries)
	slices.SortStableFunc(sorted, func(a, b LeaderboardEntry) int {
		return b.Score - a.Score
	})
	return sorted
}

// LeaderboardKey is the persistence key for a category's leaderboard.
func LeaderboardKey(category string) string {
	return "leaderboard_" + category
}
