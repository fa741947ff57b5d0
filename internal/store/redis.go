package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/ledger"
	"github.com/outcomelabs/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateContract(ctx context.Context, c *contract.Contract) error {
	if err := s.primary.CreateContract(ctx, c); err != nil {
		return err
	}
	s.cacheContract(ctx, c)
	return nil
}

func (s *CachedStore) UpdateContractState(ctx context.Context, id string, pool map[model.Outcome]float64) error {
	if err := s.primary.UpdateContractState(ctx, id, pool); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, contractCacheKey(id))
	return nil
}

func (s *CachedStore) InsertBet(ctx context.Context, bet *model.Bet) error {
	if err := s.primary.InsertBet(ctx, bet); err != nil {
		return err
	}
	// Invalidate metric cache for this user.
	s.rdb.Del(ctx, metricsCacheKey(bet.UserID))
	return nil
}

func (s *CachedStore) SaveMetric(ctx context.Context, m *model.ContractMetric) error {
	if err := s.primary.SaveMetric(ctx, m); err != nil {
		return err
	}
	s.rdb.Del(ctx, metricsCacheKey(m.UserID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetContract(ctx context.Context, id string) (*contract.Contract, error) {
	data, err := s.rdb.Get(ctx, contractCacheKey(id)).Bytes()
	if err == nil {
		var c contract.Contract
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	// Cache miss: read from primary.
	c, err := s.primary.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheContract(ctx, c)
	return c, nil
}

func (s *CachedStore) GetContractBySlug(ctx context.Context, slug string) (*contract.Contract, error) {
	// Try cache via slug→contractID mapping.
	id, err := s.rdb.Get(ctx, slugCacheKey(slug)).Result()
	if err == nil {
		return s.GetContract(ctx, id)
	}

	c, err := s.primary.GetContractBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	// Cache both the contract and the slug→ID mapping.
	s.cacheContract(ctx, c)
	s.rdb.Set(ctx, slugCacheKey(slug), c.ID, s.ttl)
	return c, nil
}

func (s *CachedStore) GetMetricsByUser(ctx context.Context, userID string) ([]model.ContractMetric, error) {
	data, err := s.rdb.Get(ctx, metricsCacheKey(userID)).Bytes()
	if err == nil {
		var metrics []model.ContractMetric
		if json.Unmarshal(data, &metrics) == nil {
			return metrics, nil
		}
	}

	metrics, err := s.primary.GetMetricsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(metrics); err == nil {
		s.rdb.Set(ctx, metricsCacheKey(userID), data, s.ttl)
	}
	return metrics, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListContracts(ctx context.Context) ([]contract.Contract, error) {
	return s.primary.ListContracts(ctx)
}

func (s *CachedStore) InsertAnswer(ctx context.Context, a *contract.Answer) error {
	return s.primary.InsertAnswer(ctx, a)
}

func (s *CachedStore) GetAnswers(ctx context.Context, contractID string) ([]contract.Answer, error) {
	return s.primary.GetAnswers(ctx, contractID)
}

func (s *CachedStore) GetBetsByContract(ctx context.Context, contractID string) ([]model.Bet, error) {
	return s.primary.GetBetsByContract(ctx, contractID)
}

func (s *CachedStore) GetBetsByUser(ctx context.Context, userID string) ([]model.Bet, error) {
	return s.primary.GetBetsByUser(ctx, userID)
}

func (s *CachedStore) InsertTxn(ctx context.Context, t *ledger.Txn) error {
	return s.primary.InsertTxn(ctx, t)
}

func (s *CachedStore) GetTxnsByUser(ctx context.Context, userID string) ([]ledger.Txn, error) {
	return s.primary.GetTxnsByUser(ctx, userID)
}

func (s *CachedStore) GetMetric(ctx context.Context, userID, contractID, answerID string) (*model.ContractMetric, error) {
	return s.primary.GetMetric(ctx, userID, contractID, answerID)
}

func (s *CachedStore) GetUserExposures(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	return s.primary.GetUserExposures(ctx, userID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheContract(ctx context.Context, c *contract.Contract) {
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, contractCacheKey(c.ID), data, s.ttl)
	}
}

func contractCacheKey(id string) string { return fmt.Sprintf("contract:%s", id) }
func slugCacheKey(slug string) string   { return fmt.Sprintf("slug:%s", slug) }
func metricsCacheKey(uid string) string { return fmt.Sprintf("metrics:%s", uid) }
