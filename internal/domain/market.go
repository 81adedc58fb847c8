package domain

// OutcomeLeg identifies one tradable instrument within a basket. Immutable,
// produced by market discovery.
type OutcomeLeg struct {
	TokenID  string // CLOB token id for the outcome's YES side
	Name     string // display name, e.g. a candidate or team
	MarketID string // parent market condition id
}

// Basket is a set of outcome legs believed to partition one real-world event
// exhaustively and exclusively. Immutable once discovered.
type Basket struct {
	EventID string
	Title   string
	Legs    []OutcomeLeg
	// NegRisk is true when the venue guarantees the outcomes are mutually
	// exclusive (Polymarket's negative-risk event structure).
	NegRisk bool
}
