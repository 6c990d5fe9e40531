package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// NotificationDeduper tracks processed gateway notification keys.
type NotificationDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
}

type redisNotificationDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisNotificationDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+":"+key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

type memoryNotificationDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryNotificationDeduper(ttl time.Duration) *memoryNotificationDeduper {
	now := time.Now()
	return &memoryNotificationDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *memoryNotificationDeduper) Seen(_ context.Context, key string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[key]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

// NewNotificationDeduper builds a Redis deduper and falls back to in-memory
// on failure.
func NewNotificationDeduper(addr, pass string, db int, ttl time.Duration) (NotificationDeduper, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if addr == "" {
		return newMemoryNotificationDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryNotificationDeduper(ttl), err
	}

	return &redisNotificationDeduper{
		client: client,
		prefix: "gw:notif",
		ttl:    ttl,
	}, nil
}

// GatewayNotificationDedup acknowledges duplicate Midtrans notifications
// without reprocessing. Keyed on order_id, transaction_status and
// status_code so a legitimate status progression for the same order still
// goes through. All transition sites are idempotent anyway; this only saves
// redundant gateway round-trips.
func GatewayNotificationDedup(deduper NotificationDeduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil {
				return next(c)
			}

			req := c.Request()
			if req.Body == nil {
				return next(c)
			}

			rawBody, err := io.ReadAll(req.Body)
			if err != nil {
				return next(c)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(rawBody))
			if len(rawBody) == 0 {
				return next(c)
			}

			var payload struct {
				OrderID           string `json:"order_id"`
				TransactionStatus string `json:"transaction_status"`
				StatusCode        string `json:"status_code"`
				SignatureKey      string `json:"signature_key"`
			}
			// Only gateway notifications carry all of these; every other
			// provider's callback passes through untouched.
			if err := json.Unmarshal(rawBody, &payload); err != nil ||
				payload.OrderID == "" || payload.TransactionStatus == "" || payload.SignatureKey == "" {
				return next(c)
			}

			key := payload.OrderID + "|" + payload.TransactionStatus + "|" + payload.StatusCode
			isDuplicate, err := deduper.Seen(req.Context(), key)
			if err != nil {
				return next(c)
			}
			if isDuplicate {
				return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
			}

			return next(c)
		}
	}
}
