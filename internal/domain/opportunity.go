package domain

import "time"

// Quote is a priced snapshot of one leg at observation time. Recreated on
// every refresh, never mutated.
type Quote struct {
	Leg        OutcomeLeg
	BestAsk    float64
	AskSize    float64
	Levels     []PriceLevel // top-of-book ask levels, ascending by price
	ObservedAt time.Time
}

// Opportunity is an evaluated basket whose legs can all be bought for less
// than one dollar combined. ProfitPerShare > 0 and ExecutableSize > 0 hold
// for every value the scanner returns.
type Opportunity struct {
	Basket         Basket
	Quotes         []Quote
	TotalCost      float64 // sum of best asks across legs
	ProfitPerShare float64 // 1 - TotalCost
	ProfitPct      float64 // ProfitPerShare / TotalCost * 100
	ExecutableSize float64 // min leg size, capped by remaining budget
	DetectedAt     time.Time
}
