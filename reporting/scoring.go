package reporting

import "github.com/shopspring/decimal"

// ScoringPolicy converts an actor's completion record into points.
type ScoringPolicy interface {
	Score(completed int, hours decimal.Decimal) decimal.Decimal
}

// StandardScoring awards a flat amount per completed booking plus an
// hourly rate. Zero values fall back to the defaults (10 per completion,
// 2 per hour).
type StandardScoring struct {
	PerCompleted decimal.Decimal
	PerHour      decimal.Decimal
}

func (s StandardScoring) Score(completed int, hours decimal.Decimal) decimal.Decimal {
	perCompleted := s.PerCompleted
	if perCompleted.IsZero() {
		perCompleted = decimal.NewFromInt(10)
	}
	perHour := s.PerHour
	if perHour.IsZero() {
		perHour = decimal.NewFromInt(2)
	}
	return perCompleted.Mul(decimal.NewFromInt(int64(completed))).
		Add(perHour.Mul(hours))
}
