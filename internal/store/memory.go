package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/ledger"
	"github.com/outcomelabs/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	contracts map[string]*contract.Contract
	answers   map[string][]contract.Answer
	bets      []model.Bet
	txns      []ledger.Txn
	metrics   map[string]model.ContractMetric
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contracts: make(map[string]*contract.Contract),
		answers:   make(map[string][]contract.Answer),
		metrics:   make(map[string]model.ContractMetric),
	}
}

func (s *MemoryStore) CreateContract(_ context.Context, c *contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[c.ID]; ok {
		return fmt.Errorf("contract %s already exists", c.ID)
	}
	for _, existing := range s.contracts {
		if c.Slug != "" && existing.Slug == c.Slug {
			return fmt.Errorf("contract slug %s already exists", c.Slug)
		}
	}

	// Store a copy to avoid external mutation.
	cp := copyContract(c)
	s.contracts[c.ID] = cp
	return nil
}

func (s *MemoryStore) GetContract(_ context.Context, id string) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("contract %s: %w", id, ErrNotFound)
	}
	return copyContract(c), nil
}

func (s *MemoryStore) GetContractBySlug(_ context.Context, slug string) (*contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contracts {
		if c.Slug == slug {
			return copyContract(c), nil
		}
	}
	return nil, fmt.Errorf("contract slug %s: %w", slug, ErrNotFound)
}

func (s *MemoryStore) ListContracts(_ context.Context) ([]contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contracts := make([]contract.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		contracts = append(contracts, *copyContract(c))
	}
	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].CreatedTime > contracts[j].CreatedTime
	})
	return contracts, nil
}

func (s *MemoryStore) UpdateContractState(_ context.Context, id string, pool map[model.Outcome]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return fmt.Errorf("contract %s: %w", id, ErrNotFound)
	}
	c.Pool = copyPool(pool)
	return nil
}

func (s *MemoryStore) InsertAnswer(_ context.Context, a *contract.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.answers[a.ContractID]
	for i := range existing {
		if existing[i].ID == a.ID {
			existing[i] = *a
			return nil
		}
	}
	s.answers[a.ContractID] = append(existing, *a)
	return nil
}

func (s *MemoryStore) GetAnswers(_ context.Context, contractID string) ([]contract.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answers := make([]contract.Answer, len(s.answers[contractID]))
	copy(answers, s.answers[contractID])
	return answers, nil
}

func (s *MemoryStore) InsertBet(_ context.Context, bet *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bets = append(s.bets, *bet)
	return nil
}

func (s *MemoryStore) GetBetsByContract(_ context.Context, contractID string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Bet
	for _, b := range s.bets {
		if b.ContractID == contractID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetBetsByUser(_ context.Context, userID string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Bet
	for _, b := range s.bets {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *MemoryStore) InsertTxn(_ context.Context, t *ledger.Txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txns = append(s.txns, *t)
	return nil
}

func (s *MemoryStore) GetTxnsByUser(_ context.Context, userID string) ([]ledger.Txn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ledger.Txn
	for _, t := range s.txns {
		if t.FromID == userID || t.ToID == userID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *MemoryStore) SaveMetric(_ context.Context, m *model.ContractMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics[metricKey(m.UserID, m.ContractID, m.AnswerID)] = *m
	return nil
}

func (s *MemoryStore) GetMetric(_ context.Context, userID, contractID, answerID string) (*model.ContractMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metrics[metricKey(userID, contractID, answerID)]
	if !ok {
		return nil, fmt.Errorf("metric %s/%s/%s: %w", userID, contractID, answerID, ErrNotFound)
	}
	return &m, nil
}

func (s *MemoryStore) GetMetricsByUser(_ context.Context, userID string) ([]model.ContractMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ContractMetric
	for _, m := range s.metrics {
		if m.UserID == userID {
			result = append(result, m)
		}
	}
	return result, nil
}

// GetUserExposures derives net directional exposure per contract from the
// bet log: YES amounts add, NO amounts subtract.
func (s *MemoryStore) GetUserExposures(_ context.Context, userID string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exposures := make(map[string]decimal.Decimal)
	for _, b := range s.bets {
		if b.UserID != userID {
			continue
		}
		amount := decimal.NewFromFloat(b.Amount)
		if b.Outcome == model.No {
			amount = amount.Neg()
		}
		exposures[b.ContractID] = exposures[b.ContractID].Add(amount)
	}
	return exposures, nil
}

func metricKey(userID, contractID, answerID string) string {
	return userID + "/" + contractID + "/" + answerID
}

func copyContract(c *contract.Contract) *contract.Contract {
	cp := *c
	cp.Pool = copyPool(c.Pool)
	return &cp
}

func copyPool(pool map[model.Outcome]float64) map[model.Outcome]float64 {
	if pool == nil {
		return nil
	}
	cp := make(map[model.Outcome]float64, len(pool))
	for k, v := range pool {
		cp[k] = v
	}
	return cp
}
