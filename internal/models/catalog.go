package models

import "time"

// Riddle is a treasure hunt made of ordered steps, optionally password protected
type Riddle struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	IsPrivate bool      `json:"is_private"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Step is one geolocated stage of a riddle, completed by scanning its code
type Step struct {
	ID          int64     `json:"id"`
	RiddleID    int64     `json:"riddle_id"`
	OrderNumber int       `json:"order_number"`
	Code        string    `json:"-"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Hint is a clue attached to a step. Order 1 is always visible.
type Hint struct {
	ID          int64  `json:"id"`
	StepID      int64  `json:"step_id"`
	OrderNumber int    `json:"order_number"`
	Content     string `json:"content"`
}

// Review is a player's rating of a riddle. Difficulty ranges from 1 to 5.
type Review struct {
	ID         int64     `json:"id"`
	RiddleID   int64     `json:"riddle_id"`
	UserID     int64     `json:"user_id"`
	Difficulty int       `json:"difficulty"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// RiddleStats is the rolling aggregate of completed-session durations for a riddle
type RiddleStats struct {
	RiddleID    int64     `json:"riddle_id"`
	Completions int       `json:"completions"`
	AvgDuration float64   `json:"avg_duration"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Add folds one completed duration into the running average.
func (s *RiddleStats) Add(durationSeconds int64) {
	n := float64(s.Completions)
	s.AvgDuration = (s.AvgDuration*n + float64(durationSeconds)) / (n + 1)
	s.Completions++
}

// Remove takes one completed duration back out of the running average.
func (s *RiddleStats) Remove(durationSeconds int64) {
	if s.Completions <= 1 {
		s.Completions = 0
		s.AvgDuration = 0
		return
	}
	n := float64(s.Completions)
	s.AvgDuration = (s.AvgDuration*n - float64(durationSeconds)) / (n - 1)
	if s.AvgDuration < 0 {
		s.AvgDuration = 0
	}
	s.Completions--
}
