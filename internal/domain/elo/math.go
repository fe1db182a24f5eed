// Package elo computes game-level rating changes for teams and coaches.
package elo

import (
	"math"
)

// Model constants.
const (
	// DefaultK scales every rating change.
	DefaultK = 20.0
	// VegasDivisor converts a rating gap into an expected point spread.
	VegasDivisor = 18.14010981807
	// MoVStdev is the standard deviation of margins around the spread.
	MoVStdev = 15.61
	// RegulationMinutes is the length of a game without overtime.
	RegulationMinutes = 28.0
)

// expNormalizer makes Deweight(RegulationMinutes) equal 1.
var expNormalizer = (1 - math.Exp(-RegulationMinutes/2)) * 2

// NormalCDF is the normal cumulative distribution at x.
func NormalCDF(x, mean, stdev float64) float64 {
	return (1 - math.Erf((mean-x)/(math.Sqrt2*stdev))) / 2
}

// MoVMultiplier grows with the margin and shrinks when the favourite won.
func MoVMultiplier(scoreDiff int, winnerEloDiff float64) float64 {
	return math.Log(math.Abs(float64(scoreDiff))+1) * (2.2 / (winnerEloDiff*0.001 + 2.2))
}

// Deweight scales the change of short games towards zero.
func Deweight(minsPlayed float64) float64 {
	return ((1 - math.Exp(-minsPlayed/2)) * 2) / expNormalizer
}

// WinProbability is the probability that the team wins from the given
// score after minsPlayed minutes. With nothing left to play the result is
// already decided: 1 ahead, 0 behind and 0.5 when level.
func WinProbability(teamScore, oppScore int, teamElo, oppElo, minsPlayed float64) float64 {
	minsRemaining := RegulationMinutes - minsPlayed
	if minsRemaining <= 0 {
		switch {
		case teamScore > oppScore:
			return 1
		case teamScore < oppScore:
			return 0
		default:
			return 0.5
		}
	}

	oppMargin := float64(oppScore - teamScore)
	inverseVegasLine := (teamElo - oppElo) / VegasDivisor
	mean := inverseVegasLine * (minsRemaining / RegulationMinutes)
	stdev := MoVStdev / math.Sqrt(RegulationMinutes/minsRemaining)

	winDist := NormalCDF(oppMargin+0.5, mean, stdev)
	lossDist := NormalCDF(oppMargin-0.5, mean, stdev)

	return (1 - winDist) + 0.5*(winDist-lossDist)
}

// Minutes caps a game length in seconds at regulation.
func Minutes(lengthSeconds int) float64 {
	return math.Min(float64(lengthSeconds)/60, RegulationMinutes)
}

// Regress pulls a prior season's final rating a third of the way back to
// the league mean.
func Regress(old float64) float64 {
	return old/3*2 + 500
}
