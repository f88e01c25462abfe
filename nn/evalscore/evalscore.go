// Package evalscore converts a raw network evaluation into game-result
// probabilities and an expected game score. These are the small,
// stateless helpers original_source/Common.hpp defines alongside the
// core activation/loss math (EvalToWinProbability, EvalToDrawProbability,
// EvalToExpectedGameScore and their derivatives) — supplemental to
// spec.md's named operations, carried over so the EvalToGameScore
// activation (SPEC_FULL.md §4) has a real function to call instead of
// an inlined magic formula. Constants and formulas match
// original_source/src/utils/net/Common.hpp's c_WinProbabilityOffset /
// c_WinProbabilityScale and the EvalToWinProbability/
// EvalToExpectedGameScore_Derivative definitions there exactly.
package evalscore

import "math"

// winProbabilityOffset and winProbabilityScale match
// original_source's c_WinProbabilityOffset / c_WinProbabilityScale.
const (
	winProbabilityOffset = 2.0
	winProbabilityScale  = 1.0
)

// EvalToWinProbability maps an evaluation to the probability of a win.
func EvalToWinProbability(eval float64) float64 {
	return 1.0 / (1.0 + math.Exp((-eval+winProbabilityOffset)/winProbabilityScale))
}

// EvalToLossProbability maps an evaluation to the probability of a
// loss — EvalToWinProbability of the negated evaluation.
func EvalToLossProbability(eval float64) float64 {
	return EvalToWinProbability(-eval)
}

// EvalToDrawProbability maps an evaluation to the probability of a
// draw: whatever win and loss probability leave unaccounted for.
func EvalToDrawProbability(eval float64) float64 {
	d := 1.0 - EvalToWinProbability(eval) - EvalToLossProbability(eval)
	if d < 0 {
		return 0
	}
	return d
}

// EvalToExpectedGameScore maps an evaluation to an expected game score
// in [0,1]: a win counts 1, a draw 0.5, a loss 0.
func EvalToExpectedGameScore(eval float64) float64 {
	winProbability := EvalToWinProbability(eval)
	lossProbability := EvalToWinProbability(-eval)
	return (1.0 + winProbability - lossProbability) / 2.0
}

// evalToWinProbabilityDerivative is d/d(eval) of EvalToWinProbability.
func evalToWinProbabilityDerivative(eval float64) float64 {
	t := math.Exp((-eval + winProbabilityOffset) / winProbabilityScale)
	denom := 1.0 + t
	return t / (winProbabilityScale * denom * denom)
}

// EvalToExpectedGameScoreDerivative is d/d(eval) of
// EvalToExpectedGameScore, computed analytically rather than by finite
// differences.
func EvalToExpectedGameScoreDerivative(eval float64) float64 {
	winProbabilityDerivative := evalToWinProbabilityDerivative(eval)
	lossProbabilityDerivative := evalToWinProbabilityDerivative(-eval)
	return (winProbabilityDerivative + lossProbabilityDerivative) / 2.0
}
