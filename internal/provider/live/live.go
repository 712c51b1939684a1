// Package live implements the analyzer's data provider against a
// broker offering a TOTP-authenticated REST login and a WebSocket
// feed: candles and ticks arrive as tagged events over the listener
// channel, and the connection lifecycle runs its own pre-market
// login/backoff loop mirroring the teacher's login retry pattern.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"

	"trading-systemv1/internal/analyzer/dispatcher"
	"trading-systemv1/internal/markethours"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/provider"
	"trading-systemv1/internal/ringbuf"
)

// eventRingCapacity bounds the SPSC ring between the WS read goroutine
// and the forwarder goroutine; rounded up to a power of two by ringbuf.
const eventRingCapacity = 4096

// Config carries broker connection details and credentials.
type Config struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string

	LoginURL string
	WSURL    string
	HTTPURL  string // REST base URL for search_symbol / price history

	DialTimeout time.Duration
}

// Provider is the live broker-backed data provider. It satisfies
// provider.Provider.
type Provider struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	feedToken string
	authToken string

	events chan dispatcher.StreamEvent
	ring   *ringbuf.Ring[dispatcher.StreamEvent]

	// OnReconnect is invoked after a successful reconnect, for metrics.
	OnReconnect func()
}

// New creates a live provider. It does not connect; call Run to start
// the login/connect lifecycle.
func New(cfg Config, logger *slog.Logger) *Provider {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		logger: logger,
		http:   &http.Client{Timeout: 15 * time.Second},
		events: make(chan dispatcher.StreamEvent, 4096),
		ring:   ringbuf.New[dispatcher.StreamEvent](eventRingCapacity),
	}
}

// Listener implements provider.Provider.
func (p *Provider) Listener() <-chan dispatcher.StreamEvent { return p.events }

// ReplayInfo implements provider.Provider: the live provider has no
// replay state.
func (p *Provider) ReplayInfo(update *provider.ReplayInfo) (provider.ReplayInfo, bool, error) {
	return provider.ReplayInfo{}, false, nil
}

// SearchSymbol resolves symbol against the broker's instrument search
// endpoint, normalizing to uppercase. A hit whose symbol matches exactly
// is preferred; otherwise the first hit is returned.
func (p *Provider) SearchSymbol(ctx context.Context, symbol string) (model.Instrument, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var out struct {
		Data []model.Instrument `json:"data"`
	}
	if err := p.getJSON(ctx, "/search?q="+symbol, &out); err != nil {
		return model.Instrument{}, err
	}
	if len(out.Data) == 0 {
		return model.Instrument{}, fmt.Errorf("live: symbol %q not found", symbol)
	}
	for _, inst := range out.Data {
		if strings.ToUpper(inst.Symbol) == symbol {
			return inst, nil
		}
	}
	return out.Data[0], nil
}

// FetchPriceHistory returns the broker's whole history from start as
// the priming batch. The history is not split at the last full working
// day: the replay batch is always nil.
func (p *Provider) FetchPriceHistory(ctx context.Context, symbol string, start time.Time) ([]model.Candle, []model.Candle, error) {
	var out struct {
		Candles []model.Candle `json:"candles"`
	}
	path := fmt.Sprintf("/history?symbol=%s&start=%d", symbol, start.Unix())
	if err := p.getJSON(ctx, path, &out); err != nil {
		return nil, nil, err
	}
	return out.Candles, nil, nil
}

// SubCharts subscribes to OHLC updates for symbols over the WS feed.
func (p *Provider) SubCharts(symbols []string) error { return p.subscribe("charts", symbols, true) }

// UnsubCharts unsubscribes from OHLC updates for symbols.
func (p *Provider) UnsubCharts(symbols []string) error { return p.subscribe("charts", symbols, false) }

// SubTick subscribes to level-one quote updates for symbols.
func (p *Provider) SubTick(symbols []string) error { return p.subscribe("tick", symbols, true) }

// UnsubTick unsubscribes from level-one quote updates for symbols.
func (p *Provider) UnsubTick(symbols []string) error { return p.subscribe("tick", symbols, false) }

func (p *Provider) subscribe(mode string, symbols []string, on bool) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("live: not connected")
	}
	action := "subscribe"
	if !on {
		action = "unsubscribe"
	}
	msg := map[string]any{"action": action, "mode": mode, "symbols": symbols}
	return conn.WriteJSON(msg)
}

// Run drives the login/connect/reconnect lifecycle, gated to the
// market window w: it sleeps until pre-open, logs in with a fresh
// TOTP code, waits until the WS-connect time, then streams until the
// connection drops or ctx is cancelled, at which point it loops back
// to sleep for the next session. Blocks until ctx is cancelled.
func (p *Provider) Run(ctx context.Context, w *markethours.Window) {
	defer close(p.events)

	backoff := 30 * time.Second
	const maxBackoff = 5 * time.Minute

	for {
		now := time.Now()
		preOpen := w.NextPreOpen(now)
		if now.Before(preOpen) {
			if p.logger != nil {
				p.logger.Info("sleeping until pre-open", "wait", preOpen.Sub(now), "pre_open", preOpen)
			}
			if !sleepOrDone(ctx, preOpen.Sub(now)) {
				return
			}
		}

		if err := p.login(ctx); err != nil {
			if p.logger != nil {
				p.logger.Warn("login failed, backing off", "err", err, "backoff", backoff)
			}
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDuration(backoff*2, maxBackoff)
			continue
		}
		backoff = 30 * time.Second

		open := w.NextOpen(time.Now())
		connectAt := w.WSConnectTime(open)
		if wait := time.Until(connectAt); wait > 0 {
			if !sleepOrDone(ctx, wait) {
				return
			}
		}

		closeTime := w.TodayClose(time.Now())
		sessCtx, cancel := context.WithDeadline(ctx, closeTime.Add(5*time.Minute))
		if err := p.stream(sessCtx); err != nil && p.logger != nil {
			p.logger.Warn("session ended", "err", err)
		}
		cancel()

		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Provider) login(ctx context.Context) error {
	code, err := totp.GenerateCode(p.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("live: totp generate: %w", err)
	}

	body, _ := json.Marshal(map[string]string{
		"clientcode": p.cfg.ClientCode,
		"password":   p.cfg.Password,
		"totp":       code,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.LoginURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.cfg.APIKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("live: login request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("live: login status %d", resp.StatusCode)
	}

	var out struct {
		AuthToken string `json:"auth_token"`
		FeedToken string `json:"feed_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("live: decode login response: %w", err)
	}
	if out.AuthToken == "" || out.FeedToken == "" {
		return fmt.Errorf("live: empty tokens in login response")
	}

	p.mu.Lock()
	p.authToken, p.feedToken = out.AuthToken, out.FeedToken
	p.mu.Unlock()
	return nil
}

// stream connects the WS feed and blocks, pushing decoded events into
// p.events, until the connection drops or ctx is cancelled.
func (p *Provider) stream(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: p.cfg.DialTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.authToken)
	header.Set("X-Feed-Token", p.feedToken)

	conn, _, err := dialer.DialContext(ctx, p.cfg.WSURL, header)
	if err != nil {
		return fmt.Errorf("live: dial: %w", err)
	}
	defer conn.Close()

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	if p.OnReconnect != nil {
		p.OnReconnect()
	}

	defer func() {
		p.mu.Lock()
		p.conn = nil
		p.mu.Unlock()
	}()

	// The read goroutine only decodes and pushes to the ring: it never
	// blocks on a slow consumer, so a stalled controller can't delay
	// the next WS read and trip the broker's own read-timeout/pong
	// expectations. The forwarder goroutine drains the ring onto the
	// blocking events channel at whatever pace the dispatcher allows.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ev, ok := decodeEvent(raw)
			if !ok {
				continue
			}
			if !p.ring.Push(ev) && p.logger != nil {
				p.logger.Warn("event ring overflow, dropping oldest-pending event")
			}
		}
	}()

	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		for {
			ev, ok := p.ring.Pop()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Millisecond):
					continue
				}
			}
			select {
			case p.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-readDone
		<-forwardDone
		return ctx.Err()
	case <-readDone:
		return fmt.Errorf("live: websocket closed")
	}
}

type wireEvent struct {
	Type   string       `json:"type"` // "candle" | "tick"
	Symbol string       `json:"symbol"`
	Candle *model.Candle `json:"candle,omitempty"`
	Quote  *model.Quote `json:"quote,omitempty"`
}

func decodeEvent(raw []byte) (dispatcher.StreamEvent, bool) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false
	}
	switch w.Type {
	case "candle":
		if w.Candle == nil {
			return nil, false
		}
		return dispatcher.EquityCandle{Symbol: w.Symbol, Candle: *w.Candle}, true
	case "tick":
		if w.Quote == nil {
			return nil, false
		}
		return dispatcher.EquityTick{Symbol: w.Symbol, Quote: *w.Quote}, true
	default:
		return nil, false
	}
}

func (p *Provider) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.HTTPURL+path, nil)
	if err != nil {
		return err
	}
	p.mu.Lock()
	token := p.authToken
	p.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("live: request %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
