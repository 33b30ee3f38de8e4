package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"inua-fund-server/models"
)

// DefaultIntentTTL outlives the STK prompt and the provider's callback retries.
const DefaultIntentTTL = time.Hour

// IntentStore keeps payment intents between the STK push and its callback.
// Get returns nil, nil when nothing is stored for the id.
type IntentStore interface {
	Save(ctx context.Context, intent models.PaymentIntent) error
	Get(ctx context.Context, checkoutRequestID string) (*models.PaymentIntent, error)
	Delete(ctx context.Context, checkoutRequestID string) error
}

// MemoryIntentStore is an in-process IntentStore for single-instance deployments.
type MemoryIntentStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	intents map[string]memoryIntent
}

type memoryIntent struct {
	intent    models.PaymentIntent
	expiresAt time.Time
}

func NewMemoryIntentStore(ttl time.Duration) *MemoryIntentStore {
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	return &MemoryIntentStore{
		ttl:     ttl,
		now:     time.Now,
		intents: make(map[string]memoryIntent),
	}
}

func (s *MemoryIntentStore) Save(_ context.Context, intent models.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, stored := range s.intents {
		if now.After(stored.expiresAt) {
			delete(s.intents, id)
		}
	}
	s.intents[intent.CheckoutRequestID] = memoryIntent{intent: intent, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryIntentStore) Get(_ context.Context, checkoutRequestID string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.intents[checkoutRequestID]
	if !ok {
		return nil, nil
	}
	if s.now().After(stored.expiresAt) {
		delete(s.intents, checkoutRequestID)
		return nil, nil
	}
	intent := stored.intent
	return &intent, nil
}

func (s *MemoryIntentStore) Delete(_ context.Context, checkoutRequestID string) error {
	s.mu.Lock()
	delete(s.intents, checkoutRequestID)
	s.mu.Unlock()
	return nil
}

// RedisIntentStore shares intents across server instances, so the callback can
// land on a different instance from the one that sent the push.
type RedisIntentStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIntentStore(client *redis.Client, ttl time.Duration) *RedisIntentStore {
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	return &RedisIntentStore{client: client, ttl: ttl}
}

func intentKey(checkoutRequestID string) string {
	return fmt.Sprintf("stk:intent:%s", checkoutRequestID)
}

func (s *RedisIntentStore) Save(ctx context.Context, intent models.PaymentIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	if err := s.client.Set(ctx, intentKey(intent.CheckoutRequestID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save intent: %w", err)
	}
	return nil
}

func (s *RedisIntentStore) Get(ctx context.Context, checkoutRequestID string) (*models.PaymentIntent, error) {
	data, err := s.client.Get(ctx, intentKey(checkoutRequestID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}

	var intent models.PaymentIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse intent: %w", err)
	}
	return &intent, nil
}

func (s *RedisIntentStore) Delete(ctx context.Context, checkoutRequestID string) error {
	if err := s.client.Del(ctx, intentKey(checkoutRequestID)).Err(); err != nil {
		return fmt.Errorf("failed to delete intent: %w", err)
	}
	return nil
}
