package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// SpotFeed tracks a rolling window of spot prices per symbol. It prefers the
// Binance trade websocket stream and degrades to REST polling while the
// stream is down, so SwingPct stays answerable through feed hiccups.
type SpotFeed struct {
	HTTP   *http.Client
	Logger *zap.Logger

	RESTEndpoint  string
	StreamURL     string
	PollInterval  time.Duration
	WindowSeconds int

	mu     sync.Mutex
	series map[string][]pricePoint
}

type pricePoint struct {
	ts    time.Time
	price float64
}

// Run keeps one stream per symbol alive until ctx is cancelled.
func (f *SpotFeed) Run(ctx context.Context, symbols []string) error {
	if f == nil || len(symbols) == 0 {
		return nil
	}
	if f.HTTP == nil {
		f.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.runSymbol(ctx, symbol)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (f *SpotFeed) runSymbol(ctx context.Context, symbol string) {
	backoff := time.Second
	for {
		err := f.streamOnce(ctx, symbol)
		if ctx.Err() != nil {
			return
		}
		if f.Logger != nil {
			f.Logger.Warn("spot stream dropped, polling REST",
				zap.String("symbol", symbol), zap.Error(err))
		}
		// Bridge the gap with REST polls before redialing.
		f.pollFor(ctx, symbol, backoff)
		if ctx.Err() != nil {
			return
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *SpotFeed) streamOnce(ctx context.Context, symbol string) error {
	base := strings.TrimRight(strings.TrimSpace(f.StreamURL), "/")
	if base == "" {
		return fmt.Errorf("missing stream url")
	}
	streamURL := base + "/" + strings.ToLower(symbol) + "@trade"
	conn, _, err := websocket.Dial(ctx, streamURL, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var trade struct {
			Price string `json:"p"`
		}
		if err := json.Unmarshal(msg, &trade); err != nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(trade.Price), 64)
		if err != nil || price <= 0 {
			continue
		}
		f.record(symbol, price)
	}
}

func (f *SpotFeed) pollFor(ctx context.Context, symbol string, span time.Duration) {
	interval := f.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(span)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if price, err := f.fetchPrice(ctx, symbol); err == nil {
			f.record(symbol, price)
		}
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (f *SpotFeed) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := strings.TrimSpace(f.RESTEndpoint)
	if endpoint == "" {
		return 0, fmt.Errorf("missing rest endpoint")
	}
	query := url.Values{}
	query.Set("symbol", symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("http %d", resp.StatusCode)
	}
	var parsed struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(parsed.Price), 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("invalid price")
	}
	return price, nil
}

func (f *SpotFeed) record(symbol string, price float64) {
	now := time.Now().UTC()
	window := f.WindowSeconds
	if window <= 0 {
		window = 300
	}
	cut := now.Add(-time.Duration(window) * time.Second)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.series == nil {
		f.series = map[string][]pricePoint{}
	}
	series := append(f.series[symbol], pricePoint{ts: now, price: price})
	j := 0
	for ; j < len(series); j++ {
		if series[j].ts.After(cut) {
			break
		}
	}
	f.series[symbol] = series[j:]
}

// SwingPct returns the percent range (high-low over low) observed for symbol
// within the window. ok is false when there are not enough samples, which
// callers must treat as "no signal", not as volatility.
func (f *SpotFeed) SwingPct(symbol string, window time.Duration) (float64, bool) {
	if f == nil {
		return 0, false
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	cut := time.Now().UTC().Add(-window)

	f.mu.Lock()
	defer f.mu.Unlock()
	series := f.series[symbol]
	low, high := 0.0, 0.0
	n := 0
	for _, pt := range series {
		if pt.ts.Before(cut) {
			continue
		}
		if n == 0 || pt.price < low {
			low = pt.price
		}
		if n == 0 || pt.price > high {
			high = pt.price
		}
		n++
	}
	if n < 2 || low <= 0 {
		return 0, false
	}
	return (high - low) / low * 100.0, true
}
