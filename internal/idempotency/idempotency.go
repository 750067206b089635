// Package idempotency makes order creation safe to retry. A client-chosen
// key is reserved in Redis before the order is placed and then mapped to the
// created order ID, so a replayed request returns the original order instead
// of placing a second one.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout: idem:order:create:{key} -> "pending" | order ID.
const (
	keyOrderCreate = "idem:order:create:%s"
	pendingValue   = "pending"
)

// DefaultTTL is how long a key keeps pointing at its order.
const DefaultTTL = 24 * time.Hour

// State is the outcome of Reserve.
type State int

const (
	// Acquired means the caller owns the key and must Complete or Release it.
	Acquired State = iota
	// InFlight means another request holding the key has not finished.
	InFlight
	// Done means the key already maps to a placed order.
	Done
)

// Reservation is returned by Reserve. OrderID is set only when State is Done.
type Reservation struct {
	State   State
	OrderID int32
}

// commands is the subset of the go-redis API the store needs.
// Satisfied by *redis.Client and *redis.ClusterClient.
type commands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store keeps idempotency keys in Redis.
type Store struct {
	rdb commands
	ttl time.Duration
}

// NewStore creates a Store. A non-positive ttl falls back to DefaultTTL.
func NewStore(rdb commands, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// NewClient connects to Redis at addr and verifies the connection.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Reserve claims key for a new order, or reports who already holds it.
func (s *Store) Reserve(ctx context.Context, key string) (Reservation, error) {
	rk := fmt.Sprintf(keyOrderCreate, key)

	// A key that expires between SETNX and GET is simply claimed again.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.rdb.SetNX(ctx, rk, pendingValue, s.ttl).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return Reservation{State: Acquired}, nil
		}

		val, err := s.rdb.Get(ctx, rk).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Reservation{}, fmt.Errorf("read idempotency key: %w", err)
		}
		if val == pendingValue {
			return Reservation{State: InFlight}, nil
		}

		id, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return Reservation{}, fmt.Errorf("corrupt idempotency value %q: %w", val, err)
		}
		return Reservation{State: Done, OrderID: int32(id)}, nil
	}
	return Reservation{State: InFlight}, nil
}

// Complete maps key to the placed order for the rest of the TTL.
func (s *Store) Complete(ctx context.Context, key string, orderID int32) error {
	rk := fmt.Sprintf(keyOrderCreate, key)
	if err := s.rdb.Set(ctx, rk, strconv.Itoa(int(orderID)), s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops a reservation so the client may retry after a failure.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, fmt.Sprintf(keyOrderCreate, key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
