package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ToDomainOrderResult converts an APIOrderResult to a domain.OrderResult.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	return domain.OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Reason:  r.ErrorMsg,
	}
}

// APIOrderStatus is an order read back from the CLOB API during polling.
type APIOrderStatus struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
}

// ToDomainFill maps a CLOB order read to a domain.OrderFill.
func (o *APIOrderStatus) ToDomainFill() domain.OrderFill {
	fill := domain.OrderFill{}
	fill.FilledSize, _ = strconv.ParseFloat(o.SizeMatched, 64)
	fill.AvgPrice, _ = strconv.ParseFloat(o.Price, 64)

	switch strings.ToLower(o.Status) {
	case "matched", "filled":
		fill.State = domain.OrderStateFilled
		if fill.FilledSize == 0 {
			fill.FilledSize, _ = strconv.ParseFloat(o.OriginalSize, 64)
		}
	case "canceled", "cancelled":
		fill.State = domain.OrderStateCancelled
	default:
		fill.State = domain.OrderStateOpen
	}
	return fill
}

// APIBook is the orderbook shape returned by the CLOB REST API. Some
// deployments wrap the book in a "data" field; GetOrderbook handles both.
type APIBook struct {
	AssetID string         `json:"asset_id"`
	Bids    []APIBookLevel `json:"bids"`
	Asks    []APIBookLevel `json:"asks"`
}

// APIBookLevel is one price level of the REST orderbook.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIEvent represents an event as returned by the Polymarket Gamma API. An
// event groups the markets that partition its outcomes.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	Active  flexBool    `json:"active"`
	Closed  bool        `json:"closed"`
	NegRisk bool        `json:"negRisk"`
	Markets []APIMarket `json:"markets"`
}

// APIMarket represents a market inside a Gamma event response.
type APIMarket struct {
	ID             string   `json:"id"`
	Question       string   `json:"question"`
	ConditionID    string   `json:"conditionId"`
	GroupItemTitle string   `json:"groupItemTitle"`
	Active         flexBool `json:"active"`
	Closed         bool     `json:"closed"`
	ClobTokenIDs   string   `json:"clobTokenIds"` // JSON-encoded, e.g. "[\"123\",\"456\"]"
}

// YesTokenID returns the token id of the market's YES side (first entry of
// clobTokenIds), or "" when unavailable.
func (m *APIMarket) YesTokenID() string {
	var ids []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &ids); err != nil {
		return ""
	}
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// ToDomainBasket converts an event to a basket of outcome legs, one leg per
// active market with a resolvable YES token. ok is false when any market of
// the event is unusable; a basket with a missing leg no longer partitions the
// event and must not be traded.
func (e *APIEvent) ToDomainBasket() (domain.Basket, bool) {
	basket := domain.Basket{
		EventID: e.ID,
		Title:   e.Title,
		NegRisk: e.NegRisk,
	}
	for i := range e.Markets {
		m := &e.Markets[i]
		if m.Closed || !bool(m.Active) {
			return domain.Basket{}, false
		}
		tokenID := m.YesTokenID()
		if tokenID == "" {
			return domain.Basket{}, false
		}
		name := m.GroupItemTitle
		if name == "" {
			name = m.Question
		}
		basket.Legs = append(basket.Legs, domain.OutcomeLeg{
			TokenID:  tokenID,
			Name:     name,
			MarketID: m.ConditionID,
		})
	}
	return basket, len(basket.Legs) > 0
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// BookMessage is a full orderbook snapshot delivered over WebSocket.
type BookMessage struct {
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
}

// ToDomainSnapshot converts a BookMessage to a domain.OrderbookSnapshot.
func (b *BookMessage) ToDomainSnapshot() domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{
		TokenID:   b.AssetID,
		Timestamp: parseWSTimestamp(b.Timestamp),
	}
	for _, lvl := range b.Bids {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		s, _ := strconv.ParseFloat(lvl.Size, 64)
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: p, Size: s})
	}
	for _, lvl := range b.Asks {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		s, _ := strconv.ParseFloat(lvl.Size, 64)
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: p, Size: s})
	}
	return snap
}

// PriceChangeMessage is an incremental orderbook price-level update.
type PriceChangeMessage struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"` // "0" means level removed
	Timestamp string `json:"timestamp"`
}

// ToDomainChange converts a PriceChangeMessage to a domain.PriceChange.
func (p *PriceChangeMessage) ToDomainChange() domain.PriceChange {
	pc := domain.PriceChange{
		TokenID:   p.AssetID,
		Side:      p.Side,
		Timestamp: parseWSTimestamp(p.Timestamp),
	}
	pc.Price, _ = strconv.ParseFloat(p.Price, 64)
	pc.Size, _ = strconv.ParseFloat(p.Size, 64)
	return pc
}

func parseWSTimestamp(raw string) time.Time {
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// The feed sends unix milliseconds.
		return time.UnixMilli(ts)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Now()
}

// WSCommand is the JSON payload sent to the WebSocket to subscribe or
// unsubscribe.
type WSCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
}
