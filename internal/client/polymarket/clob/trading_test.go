package clob

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSubmitOrderSerializesDecimals(t *testing.T) {
	var captured map[string]any
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = w.Write([]byte(`{"orderID":"ord-1","status":"matched"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, Auth{APIKey: "k", APISecret: "s", Passphrase: "p"})
	ack, err := c.SubmitOrder(context.Background(), SubmitOrderArgs{
		TokenID: "tok-1",
		Side:    SideBuy,
		Price:   decimal.RequireFromString("0.91"),
		Size:    decimal.RequireFromString("57"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ack.Accepted() || ack.OrderID != "ord-1" {
		t.Fatalf("ack = %+v", ack)
	}
	if got := captured["price"]; got != 0.91 {
		t.Fatalf("price on the wire = %v, want 0.91", got)
	}
	if got := captured["size"]; got != 57.0 {
		t.Fatalf("size on the wire = %v, want 57", got)
	}
	if headers.Get("POLY_API_KEY") != "k" || headers.Get("POLY_SIGNATURE") == "" {
		t.Fatal("signed headers missing")
	}
}

func TestSubmitOrderReadOnly(t *testing.T) {
	c := NewClient(http.DefaultClient, "https://clob.example", Auth{})
	if _, err := c.SubmitOrder(context.Background(), SubmitOrderArgs{TokenID: "tok-1"}); err != ErrReadOnly {
		t.Fatalf("err = %v, want ErrReadOnly", err)
	}
}
