package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	// OrderTypeFOK fills completely and immediately or not at all.
	OrderTypeFOK OrderType = "FOK"
	// OrderTypeGTC rests on the book until filled or cancelled.
	OrderTypeGTC OrderType = "GTC"
)

// OrderRequest is a limit order to be submitted to the venue. Price is in
// dollars per share on [0.01, 0.99], size in shares.
type OrderRequest struct {
	TokenID string
	Side    OrderSide
	Type    OrderType
	Price   float64
	Size    float64
}

// OrderResult is the immediate outcome of submitting an order. Success false
// with a Reason means the venue rejected the order; transport failures are
// returned as errors by the gateway instead.
type OrderResult struct {
	Success bool
	OrderID string
	Reason  string
}

// OrderState is a venue-reported order status at a point in time.
type OrderState string

const (
	OrderStateOpen      OrderState = "open"
	OrderStateFilled    OrderState = "filled"
	OrderStateCancelled OrderState = "cancelled"
)

// OrderFill is a point-in-time read of an order's progress.
type OrderFill struct {
	State      OrderState
	FilledSize float64
	AvgPrice   float64
}
