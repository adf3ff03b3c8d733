package clob

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

type SubmitOrderArgs struct {
	TokenID string
	Side    string
	Price   decimal.Decimal
	Size    decimal.Decimal
	// TimeInForce defaults to FAK (fill-and-kill), the immediate-or-cancel
	// style the executor relies on.
	TimeInForce string
}

// OrderAck is the broker's answer to a submission. A missing OrderID or a
// non-empty ErrorMsg is a rejection even when the transport returned 200.
type OrderAck struct {
	OrderID  string
	Status   string
	ErrorMsg string
}

func (a *OrderAck) Accepted() bool {
	return a != nil && strings.TrimSpace(a.OrderID) != "" && strings.TrimSpace(a.ErrorMsg) == ""
}

var ErrReadOnly = fmt.Errorf("clob client is read-only")

func (c *Client) SubmitOrder(ctx context.Context, args SubmitOrderArgs) (*OrderAck, error) {
	if c.ReadOnly() {
		return nil, ErrReadOnly
	}
	tif := strings.TrimSpace(args.TimeInForce)
	if tif == "" {
		tif = "FAK"
	}
	// The wire format wants plain numbers; prices are two decimal places and
	// sizes whole shares, so the float round-trip is exact.
	payload := map[string]any{
		"token_id":  args.TokenID,
		"side":      strings.ToUpper(strings.TrimSpace(args.Side)),
		"price":     args.Price.InexactFloat64(),
		"size":      args.Size.InexactFloat64(),
		"orderType": tif,
	}
	body, err := c.doSigned(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return nil, err
	}
	return parseOrderAck(body)
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if c.ReadOnly() {
		return ErrReadOnly
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}
	_, err := c.doSigned(ctx, http.MethodDelete, "/order", map[string]any{"orderID": orderID})
	return err
}

func (c *Client) doSigned(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var body io.Reader
	bodyRaw := []byte{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyRaw = raw
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ts := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(c.auth.APISecret))
	mac.Write([]byte(ts + strings.ToUpper(method) + path + string(bodyRaw)))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("POLY_API_KEY", c.auth.APIKey)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_PASSPHRASE", c.auth.Passphrase)
	if v := strings.TrimSpace(c.auth.Address); v != "" {
		req.Header.Set("POLY_ADDRESS", v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func parseOrderAck(body []byte) (*OrderAck, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	ack := &OrderAck{
		OrderID:  firstString(raw, "orderID", "orderId", "order_id", "id"),
		Status:   firstString(raw, "status", "state"),
		ErrorMsg: firstString(raw, "errorMsg", "error", "message"),
	}
	// Some deployments report success:false with an empty error string.
	if v, ok := raw["success"]; ok {
		var success bool
		if err := json.Unmarshal(v, &success); err == nil && !success && ack.ErrorMsg == "" {
			ack.ErrorMsg = "broker reported success=false"
		}
	}
	return ack, nil
}
