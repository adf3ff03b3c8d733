package clob

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		d.Decimal = decimal.NewFromFloat(f)
		return nil
	}
	return fmt.Errorf("invalid decimal: %s", string(b))
}

type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

func (o *Level) UnmarshalJSON(b []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(b, &arr); err == nil && len(arr) >= 2 {
		price, err := parseDecimalRaw(arr[0])
		if err != nil {
			return err
		}
		size, err := parseDecimalRaw(arr[1])
		if err != nil {
			return err
		}
		o.Price = price
		o.Size = size
		return nil
	}
	var obj struct {
		Price json.RawMessage `json:"price"`
		Size  json.RawMessage `json:"size"`
		Qty   json.RawMessage `json:"qty"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		price, err := parseDecimalRaw(obj.Price)
		if err != nil {
			return err
		}
		sizeRaw := obj.Size
		if len(sizeRaw) == 0 {
			sizeRaw = obj.Qty
		}
		size, err := parseDecimalRaw(sizeRaw)
		if err != nil {
			return err
		}
		o.Price = price
		o.Size = size
		return nil
	}
	return fmt.Errorf("invalid level: %s", string(b))
}

type OrderBook struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// BestAsk returns the lowest ask, or zero values when the book side is empty.
func (b *OrderBook) BestAsk() (price, size decimal.Decimal, ok bool) {
	return bestLevel(b.Asks, false)
}

// BestBid returns the highest bid, or zero values when the book side is empty.
func (b *OrderBook) BestBid() (price, size decimal.Decimal, ok bool) {
	return bestLevel(b.Bids, true)
}

// SpreadBps returns the bid/ask spread in basis points of the midpoint.
func (b *OrderBook) SpreadBps() (float64, bool) {
	ask, _, okA := b.BestAsk()
	bid, _, okB := b.BestBid()
	if !okA || !okB {
		return 0, false
	}
	mid := ask.Add(bid).Div(decimal.NewFromInt(2))
	if mid.LessThanOrEqual(decimal.Zero) {
		return 0, false
	}
	spread := ask.Sub(bid).Div(mid).Mul(decimal.NewFromInt(10000))
	return spread.InexactFloat64(), true
}

func bestLevel(levels []Level, highest bool) (decimal.Decimal, decimal.Decimal, bool) {
	best := -1
	for i, lv := range levels {
		if lv.Price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		if highest && lv.Price.GreaterThan(levels[best].Price) {
			best = i
		}
		if !highest && lv.Price.LessThan(levels[best].Price) {
			best = i
		}
	}
	if best < 0 {
		return decimal.Zero, decimal.Zero, false
	}
	return levels[best].Price, levels[best].Size, true
}

// Position is the normalized read-only view of an exchange position. Upstream
// rows use inconsistent field names across API versions; parsePositions maps
// them all onto this one shape.
type Position struct {
	TokenID      string
	ConditionID  string
	Size         decimal.Decimal
	AvgPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	Resolved     bool
	Redeemable   bool
	NegRisk      bool
	Title        string
}

func parseMid(body []byte) (Decimal, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Decimal{}, err
	}
	for _, key := range []string{"mid", "midpoint", "price"} {
		if v, ok := raw[key]; ok {
			val, err := parseDecimalRaw(v)
			if err != nil {
				return Decimal{}, err
			}
			return Decimal{Decimal: val}, nil
		}
	}
	return Decimal{}, fmt.Errorf("midpoint not found in response")
}

func parseOrderBook(body []byte) (*OrderBook, error) {
	var book OrderBook
	if err := json.Unmarshal(body, &book); err == nil {
		return &book, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if bidsRaw, ok := raw["bids"]; ok {
		_ = json.Unmarshal(bidsRaw, &book.Bids)
	}
	if asksRaw, ok := raw["asks"]; ok {
		_ = json.Unmarshal(asksRaw, &book.Asks)
	}
	return &book, nil
}

func parsePositions(body []byte) ([]Position, error) {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		var wrapped struct {
			Data []map[string]json.RawMessage `json:"data"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, err
		}
		rows = wrapped.Data
	}
	out := make([]Position, 0, len(rows))
	for _, row := range rows {
		p := Position{
			TokenID:     firstString(row, "asset", "token_id", "tokenId"),
			ConditionID: firstString(row, "conditionId", "condition_id"),
			Title:       firstString(row, "title", "question"),
		}
		if p.TokenID == "" {
			continue
		}
		p.Size = firstDecimal(row, "size", "quantity", "shares")
		p.AvgPrice = firstDecimal(row, "avgPrice", "avg_price")
		p.CurrentPrice = firstDecimal(row, "curPrice", "currentPrice", "current_price")
		p.Resolved = firstBool(row, "resolved", "isResolved")
		p.Redeemable = firstBool(row, "redeemable", "isRedeemable")
		p.NegRisk = firstBool(row, "negativeRisk", "negRisk", "neg_risk")
		out = append(out, p)
	}
	return out, nil
}

func firstString(row map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstDecimal(row map[string]json.RawMessage, keys ...string) decimal.Decimal {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		if val, err := parseDecimalRaw(raw); err == nil {
			return val
		}
	}
	return decimal.Zero
}

func firstBool(row map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b
		}
	}
	return false
}

func parseDecimalRaw(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(strings.TrimSpace(s))
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return decimal.NewFromFloat(f), nil
	}
	return decimal.Zero, fmt.Errorf("invalid decimal: %s", string(raw))
}
