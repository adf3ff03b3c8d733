package gamma

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Market is the normalized gamma market row for a two-outcome up/down market.
// The first CLOB token is the "up"/"yes" outcome, the second "down"/"no";
// gamma serializes the token, outcome and price lists as JSON strings.
type Market struct {
	ID          string
	ConditionID string
	Slug        string
	Question    string
	EndTime     time.Time
	NegRisk     bool
	Closed      bool
	UpTokenID   string
	DownTokenID string

	// Outcome prices settle to 1/0 once the market resolves.
	UpPrice   decimal.Decimal
	DownPrice decimal.Decimal
}

// WinnerTokenID is the winning outcome token of a resolved market, empty
// while the result is still undetermined.
func (m Market) WinnerTokenID() string {
	one := decimal.NewFromInt(1)
	if m.UpPrice.Equal(one) {
		return m.UpTokenID
	}
	if m.DownPrice.Equal(one) {
		return m.DownTokenID
	}
	return ""
}

func parseMarkets(body []byte) ([]Market, error) {
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
	out := make([]Market, 0, len(rows))
	for _, row := range rows {
		m := Market{
			ID:          rawString(row, "id"),
			ConditionID: rawString(row, "conditionId", "condition_id"),
			Slug:        rawString(row, "slug"),
			Question:    rawString(row, "question", "title"),
			NegRisk:     rawBool(row, "negRisk", "neg_risk"),
			Closed:      rawBool(row, "closed"),
		}
		if m.ID == "" {
			continue
		}
		m.EndTime = rawTime(row, "endDate", "end_date_iso", "endDateIso")
		tokens := rawStringList(row, "clobTokenIds", "clob_token_ids")
		if len(tokens) >= 2 {
			m.UpTokenID = tokens[0]
			m.DownTokenID = tokens[1]
		}
		prices := rawStringList(row, "outcomePrices", "outcome_prices")
		if len(prices) >= 2 {
			if p, err := decimal.NewFromString(prices[0]); err == nil {
				m.UpPrice = p
			}
			if p, err := decimal.NewFromString(prices[1]); err == nil {
				m.DownPrice = p
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func rawString(row map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		// Numeric ids arrive unquoted on some endpoints.
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}

func rawBool(row map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.EqualFold(strings.TrimSpace(s), "true")
		}
	}
	return false
}

func rawTime(row map[string]json.RawMessage, keys ...string) time.Time {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// rawStringList handles both a JSON array and gamma's stringified-array form,
// e.g. "[\"123\", \"456\"]".
func rawStringList(row map[string]json.RawMessage, keys ...string) []string {
	for _, key := range keys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return cleanList(list)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			if err := json.Unmarshal([]byte(s), &list); err == nil && len(list) > 0 {
				return cleanList(list)
			}
		}
	}
	return nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		out = append(out, val)
	}
	return out
}
