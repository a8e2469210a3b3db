package models

import (
	"fmt"
	"time"
)

// Period is a leaderboard accumulation window
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// AllPeriods lists every period a completed game contributes to
var AllPeriods = []Period{PeriodWeek, PeriodMonth, PeriodAll}

// ParsePeriod converts a string into a Period
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// GlobalScore is the accumulated score of one user for one period
type GlobalScore struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Period    Period    `json:"period"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Standing is a user's score and shared rank on a leaderboard
type Standing struct {
	UserID int64 `json:"user_id"`
	Score  int64 `json:"score"`
	Rank   int64 `json:"rank"`
}
