// Package scoring evaluates operator-authored rules against opportunities.
//
// Evaluator matches one opportunity against one rule; Aggregator orders the
// active rules, sums the matched points on top of the policy baseline and
// derives the tier. Both are safe for concurrent use and hold no mutable
// state, so bulk recalculation can fan out across workers freely.
package scoring
