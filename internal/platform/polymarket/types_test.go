package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

func activeMarket(conditionID, title, tokenID string) APIMarket {
	return APIMarket{
		ID:             "m-" + conditionID,
		ConditionID:    conditionID,
		GroupItemTitle: title,
		Active:         true,
		ClobTokenIDs:   `["` + tokenID + `","` + tokenID + `-no"]`,
	}
}

func TestToDomainBasket(t *testing.T) {
	ev := APIEvent{
		ID:      "evt1",
		Title:   "Who wins?",
		NegRisk: true,
		Markets: []APIMarket{
			activeMarket("c1", "Alpha", "tok1"),
			activeMarket("c2", "Beta", "tok2"),
		},
	}

	basket, ok := ev.ToDomainBasket()
	require.True(t, ok)
	assert.Equal(t, "evt1", basket.EventID)
	assert.True(t, basket.NegRisk)
	require.Len(t, basket.Legs, 2)
	assert.Equal(t, domain.OutcomeLeg{TokenID: "tok1", Name: "Alpha", MarketID: "c1"}, basket.Legs[0])
	assert.Equal(t, "tok2", basket.Legs[1].TokenID)
}

func TestToDomainBasketRejectsClosedLeg(t *testing.T) {
	ev := APIEvent{
		ID: "evt1",
		Markets: []APIMarket{
			activeMarket("c1", "Alpha", "tok1"),
			{ConditionID: "c2", Active: true, Closed: true, ClobTokenIDs: `["tok2"]`},
		},
	}

	_, ok := ev.ToDomainBasket()
	assert.False(t, ok)
}

func TestToDomainBasketRejectsTokenlessLeg(t *testing.T) {
	ev := APIEvent{
		ID: "evt1",
		Markets: []APIMarket{
			activeMarket("c1", "Alpha", "tok1"),
			{ConditionID: "c2", Active: true, ClobTokenIDs: `not json`},
		},
	}

	_, ok := ev.ToDomainBasket()
	assert.False(t, ok)
}

func TestToDomainBasketFallsBackToQuestion(t *testing.T) {
	m := activeMarket("c1", "", "tok1")
	m.Question = "Will Alpha win?"
	ev := APIEvent{ID: "evt1", Markets: []APIMarket{m}}

	basket, ok := ev.ToDomainBasket()
	require.True(t, ok)
	assert.Equal(t, "Will Alpha win?", basket.Legs[0].Name)
}

func TestFlexBoolAcceptsBoolAndString(t *testing.T) {
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(`{"active": true}`), &m))
	assert.True(t, bool(m.Active))

	require.NoError(t, json.Unmarshal([]byte(`{"active": "false"}`), &m))
	assert.False(t, bool(m.Active))

	require.NoError(t, json.Unmarshal([]byte(`{"active": "TRUE"}`), &m))
	assert.True(t, bool(m.Active))
}

func TestOrderStatusToDomainFill(t *testing.T) {
	open := APIOrderStatus{Status: "live", SizeMatched: "2.5", Price: "0.31"}
	fill := open.ToDomainFill()
	assert.Equal(t, domain.OrderStateOpen, fill.State)
	assert.Equal(t, 2.5, fill.FilledSize)
	assert.Equal(t, 0.31, fill.AvgPrice)

	matched := APIOrderStatus{Status: "matched", OriginalSize: "10", SizeMatched: "0", Price: "0.31"}
	fill = matched.ToDomainFill()
	assert.Equal(t, domain.OrderStateFilled, fill.State)
	// Matched orders with no reported size fall back to the original size.
	assert.Equal(t, 10.0, fill.FilledSize)

	cancelled := APIOrderStatus{Status: "CANCELED", SizeMatched: "1"}
	fill = cancelled.ToDomainFill()
	assert.Equal(t, domain.OrderStateCancelled, fill.State)
	assert.Equal(t, 1.0, fill.FilledSize)
}

func TestBookMessageToDomainSnapshot(t *testing.T) {
	msg := BookMessage{
		AssetID:   "tok1",
		Asks:      []APIBookLevel{{Price: "0.35", Size: "120"}},
		Bids:      []APIBookLevel{{Price: "0.33", Size: "80"}},
		Timestamp: "1700000000000",
	}

	snap := msg.ToDomainSnapshot()
	assert.Equal(t, "tok1", snap.TokenID)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, 0.35, snap.Asks[0].Price)
	assert.Equal(t, 120.0, snap.Asks[0].Size)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(1700000000), snap.Timestamp.Unix())
}

func TestPriceChangeMessageToDomainChange(t *testing.T) {
	msg := PriceChangeMessage{
		AssetID: "tok1",
		Side:    "SELL",
		Price:   "0.42",
		Size:    "0",
	}

	change := msg.ToDomainChange()
	assert.Equal(t, "tok1", change.TokenID)
	assert.Equal(t, "SELL", change.Side)
	assert.Equal(t, 0.42, change.Price)
	assert.Zero(t, change.Size)
}
