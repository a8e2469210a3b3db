package service

import "math"

// Scoring constants
const (
	BaseStepScore          = 20
	MinStepScore           = 12
	DefaultDifficulty      = 3.0
	DifficultyWeight       = 0.1
	MinTimeMultiplier      = 0.5
	MaxTimeMultiplier      = 1.5
	firstExtraHintPenalty  = 3
	secondExtraHintPenalty = 2
	laterExtraHintPenalty  = 1
)

// StepResult is what scoring needs to know about one finished step
type StepResult struct {
	DurationSeconds int64
	ExtraHints      int
}

// ScoreInput gathers everything the final score depends on.
// Zero AvgDifficulty means the riddle has no reviews; zero PeerAvgDuration means nobody
// else has completed it.
type ScoreInput struct {
	Steps           []StepResult
	AvgDifficulty   float64
	PeerAvgDuration float64
}

// HintPenalty is the cumulative penalty for unlocking extraHints hints beyond the first.
func HintPenalty(extraHints int) int {
	penalty := 0
	for i := 1; i <= extraHints; i++ {
		switch i {
		case 1:
			penalty += firstExtraHintPenalty
		case 2:
			penalty += secondExtraHintPenalty
		default:
			penalty += laterExtraHintPenalty
		}
	}
	return penalty
}

// StepScore is the score of a single step, never below MinStepScore.
func StepScore(extraHints int) int {
	return max(MinStepScore, BaseStepScore-HintPenalty(extraHints))
}

// DifficultyMultiplier grows by DifficultyWeight per difficulty point above 1.
func DifficultyMultiplier(avgDifficulty float64) float64 {
	if avgDifficulty <= 0 {
		avgDifficulty = DefaultDifficulty
	}
	return 1 + (avgDifficulty-1)*DifficultyWeight
}

// TimeMultiplier rewards finishing faster than the peer average and penalises slower play.
func TimeMultiplier(peerAvgSeconds, totalSeconds float64) float64 {
	if peerAvgSeconds <= 0 || totalSeconds <= 0 {
		return 1
	}
	return math.Min(MaxTimeMultiplier, math.Max(MinTimeMultiplier, peerAvgSeconds/totalSeconds))
}

// CalculateFinalScore converts a finished session into its leaderboard score.
func CalculateFinalScore(in ScoreInput) int {
	var total int
	var duration int64
	for _, step := range in.Steps {
		total += StepScore(step.ExtraHints)
		duration += step.DurationSeconds
	}

	peer := in.PeerAvgDuration
	if peer <= 0 {
		peer = float64(duration)
	}

	score := float64(total) * DifficultyMultiplier(in.AvgDifficulty) * TimeMultiplier(peer, float64(duration))
	return int(math.Round(score))
}
