package models

import "time"

// GameStatus is the lifecycle state shared by game sessions and session steps
type GameStatus string

const (
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
	StatusAbandoned GameStatus = "abandoned"
)

// GameSession is one player's attempt at one riddle
type GameSession struct {
	ID            int64      `json:"id"`
	RiddleID      int64      `json:"riddle_id"`
	UserID        int64      `json:"user_id"`
	Status        GameStatus `json:"status"`
	Score         int        `json:"score"`
	CurrentStepID *int64     `json:"current_step_id,omitempty"` // active session_steps row
	Version       int64      `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (s *GameSession) IsActive() bool {
	return s.Status == StatusActive
}

func (s *GameSession) OwnedBy(userID int64) bool {
	return s.UserID == userID
}

// SessionStep is the progress record for one step within a game session
type SessionStep struct {
	ID            int64      `json:"id"`
	GameSessionID int64      `json:"game_session_id"`
	StepID        int64      `json:"step_id"`
	Status        GameStatus `json:"status"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	ExtraHints    int        `json:"extra_hints"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DurationSeconds is the whole seconds between start and end, or 0 while the step is open.
func (s *SessionStep) DurationSeconds() int64 {
	if s.EndTime == nil || s.StartTime.IsZero() {
		return 0
	}
	d := int64(s.EndTime.Sub(s.StartTime).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

// TotalDurationSeconds sums the durations of the steps that have both timestamps.
func TotalDurationSeconds(steps []SessionStep) int64 {
	var total int64
	for i := range steps {
		total += steps[i].DurationSeconds()
	}
	return total
}
