package models

import "time"

// CurrentGameView is the read-only projection of an active game
type CurrentGameView struct {
	SessionID   int64           `json:"session_id"`
	RiddleID    int64           `json:"riddle_id"`
	SessionStep CurrentStepView `json:"session_step"`
	Step        StepRef         `json:"step"`
	TotalSteps  int             `json:"total_steps"`
	Hints       []HintView      `json:"hints"`
}

type CurrentStepView struct {
	ID         int64     `json:"id"`
	ExtraHints int       `json:"extra_hints"`
	StartTime  time.Time `json:"start_time"`
}

type StepRef struct {
	ID          int64 `json:"id"`
	OrderNumber int   `json:"order_number"`
}

// HintView carries the content of a hint only once it is unlocked
type HintView struct {
	ID          int64  `json:"id"`
	OrderNumber int    `json:"order_number"`
	Unlocked    bool   `json:"unlocked"`
	Content     string `json:"content,omitempty"`
}

// HintUnlocked reports whether the hint at order is visible after extraHints unlocks.
func HintUnlocked(order, extraHints int) bool {
	return order == 1 || order <= extraHints+1
}

// CompletedGameView summarises a finished game
type CompletedGameView struct {
	ID              int64         `json:"id"`
	RiddleID        int64         `json:"riddle_id"`
	Score           int           `json:"score"`
	DurationSeconds int64         `json:"duration_seconds"`
	HasReviewed     bool          `json:"has_reviewed"`
	Steps           []SessionStep `json:"steps"`
}

// ValidationResult is returned by step validation
type ValidationResult struct {
	Completed bool         `json:"completed"`
	Session   *GameSession `json:"session"`
}
