// Package redis persists price-level overrides, symbol groups, and
// favorites, carries the control-command bus, and publishes
// timeframe-bucketed candle streams, all behind a circuit breaker so a
// degraded Redis never blocks the analyzer's hot path.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-systemv1/internal/model"
)

const (
	priceLevelsKey  = "price_levels"
	favoritesKey    = "favorites"
	groupKeyPrefix  = "symbol_groups:"
	commandsChannel = "analyzer:commands"
	tfStreamPrefix  = "stream:tf:"
	tfStreamMaxLen  = 5000
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store is the analyzer's Redis-backed side channel: level overrides,
// grouping, favorites, the command bus, and TF-candle fan-out.
type Store struct {
	client *goredis.Client
	cb     *CircuitBreaker
	logger *slog.Logger
}

// New connects to Redis and pings it once before returning.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Store{
		client: client,
		cb:     NewCircuitBreaker(5, 10*time.Second),
		logger: logger,
	}, nil
}

// SavePriceLevels persists a symbol's price-level override as a
// CSV-encoded hash field.
func (s *Store) SavePriceLevels(ctx context.Context, symbol string, levels []model.PriceLevel) error {
	parts := make([]string, len(levels))
	for i, lvl := range levels {
		parts[i] = strconv.FormatFloat(lvl.Price, 'f', -1, 64)
	}
	csv := strings.Join(parts, ",")
	return s.cb.Execute(func() error {
		return s.client.HSet(ctx, priceLevelsKey, symbol, csv).Err()
	})
}

// LoadPriceLevels returns a symbol's persisted price-level override, or
// nil if none is stored.
func (s *Store) LoadPriceLevels(ctx context.Context, symbol string) ([]model.PriceLevel, error) {
	var csv string
	err := s.cb.Execute(func() error {
		v, err := s.client.HGet(ctx, priceLevelsKey, symbol).Result()
		if err == goredis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		csv = v
		return nil
	})
	if err != nil || csv == "" {
		return nil, err
	}
	parts := strings.Split(csv, ",")
	levels := make([]model.PriceLevel, 0, len(parts))
	now := time.Now()
	for _, p := range parts {
		price, err := strconv.ParseFloat(p, 64)
		if err != nil {
			continue
		}
		levels = append(levels, model.NewPriceLevel(price, now))
	}
	return levels, nil
}

// AddToGroup adds symbol to a named symbol group.
func (s *Store) AddToGroup(ctx context.Context, symbol, group string) error {
	return s.cb.Execute(func() error {
		return s.client.SAdd(ctx, groupKeyPrefix+group, symbol).Err()
	})
}

// RemoveFromGroup removes symbol from a named symbol group.
func (s *Store) RemoveFromGroup(ctx context.Context, symbol, group string) error {
	return s.cb.Execute(func() error {
		return s.client.SRem(ctx, groupKeyPrefix+group, symbol).Err()
	})
}

// GroupMembers returns every symbol in a named group.
func (s *Store) GroupMembers(ctx context.Context, group string) ([]string, error) {
	var members []string
	err := s.cb.Execute(func() error {
		v, err := s.client.SMembers(ctx, groupKeyPrefix+group).Result()
		if err != nil {
			return err
		}
		members = v
		return nil
	})
	return members, err
}

// SetFavorite adds or removes symbol from the favorites set.
func (s *Store) SetFavorite(ctx context.Context, symbol string, favorite bool) error {
	return s.cb.Execute(func() error {
		if favorite {
			return s.client.SAdd(ctx, favoritesKey, symbol).Err()
		}
		return s.client.SRem(ctx, favoritesKey, symbol).Err()
	})
}

// Favorites returns every favorited symbol.
func (s *Store) Favorites(ctx context.Context) ([]string, error) {
	var members []string
	err := s.cb.Execute(func() error {
		v, err := s.client.SMembers(ctx, favoritesKey).Result()
		if err != nil {
			return err
		}
		members = v
		return nil
	})
	return members, err
}

// CommandMessage is the wire form of a control-plane command carried
// over the Redis command bus, for multi-process deployments where the
// HTTP/WS frontend and the analyzer run as separate processes.
type CommandMessage struct {
	Type     string `json:"type"` // publish | reinitialize | remove | set_favorite
	Symbol   string `json:"symbol,omitempty"`
	Favorite bool   `json:"favorite,omitempty"`
}

// PublishCommand broadcasts a command over the Redis command bus.
func (s *Store) PublishCommand(ctx context.Context, cmd CommandMessage) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return s.cb.Execute(func() error {
		return s.client.Publish(ctx, commandsChannel, data).Err()
	})
}

// SubscribeCommands returns a channel of decoded commands. The
// returned channel closes when ctx is cancelled.
func (s *Store) SubscribeCommands(ctx context.Context) <-chan CommandMessage {
	sub := s.client.Subscribe(ctx, commandsChannel)
	out := make(chan CommandMessage, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var cmd CommandMessage
				if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
					if s.logger != nil {
						s.logger.Warn("discarding malformed command message", "err", err)
					}
					continue
				}
				out <- cmd
			}
		}
	}()
	return out
}

// PublishTFCandle appends a completed timeframe-bucketed candle to its
// symbol's stream for downstream consumers (replay, audit, other
// services) and trims the stream to a bounded length.
func (s *Store) PublishTFCandle(ctx context.Context, symbol string, tf time.Duration, candle model.Candle) error {
	key := tfStreamPrefix + symbol + ":" + strconv.FormatInt(int64(tf.Seconds()), 10)
	return s.cb.Execute(func() error {
		return s.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: key,
			MaxLen: tfStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"candle": string(candle.JSON())},
		}).Err()
	})
}

// CircuitState reports the current breaker state, for metrics export.
func (s *Store) CircuitState() State { return s.cb.CurrentState() }

// Client returns the underlying client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }
