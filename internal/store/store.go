// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/ledger"
	"github.com/outcomelabs/market-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Contract operations ---

	// CreateContract persists a new market contract.
	CreateContract(ctx context.Context, c *contract.Contract) error

	// GetContract retrieves a contract by its ID.
	GetContract(ctx context.Context, id string) (*contract.Contract, error)

	// GetContractBySlug retrieves a contract by its URL slug.
	GetContractBySlug(ctx context.Context, slug string) (*contract.Contract, error)

	// ListContracts returns all contracts, newest first.
	ListContracts(ctx context.Context) ([]contract.Contract, error)

	// UpdateContractState updates the pool reserves after a trade.
	UpdateContractState(ctx context.Context, id string, pool map[model.Outcome]float64) error

	// --- Answers (multi-outcome contracts) ---

	// InsertAnswer persists one answer of a multi-outcome contract,
	// replacing any existing answer with the same ID.
	InsertAnswer(ctx context.Context, a *contract.Answer) error

	// GetAnswers returns a contract's answers in creation order.
	GetAnswers(ctx context.Context, contractID string) ([]contract.Answer, error)

	// --- Immutable bet log ---

	// InsertBet appends an immutable bet record.
	InsertBet(ctx context.Context, bet *model.Bet) error

	// GetBetsByContract returns all bets on a contract in bet-time order.
	GetBetsByContract(ctx context.Context, contractID string) ([]model.Bet, error)

	// GetBetsByUser returns all of a user's bets in bet-time order.
	GetBetsByUser(ctx context.Context, userID string) ([]model.Bet, error)

	// --- Ledger ---

	// InsertTxn appends an immutable ledger transaction.
	InsertTxn(ctx context.Context, t *ledger.Txn) error

	// GetTxnsByUser returns every transaction touching a user.
	GetTxnsByUser(ctx context.Context, userID string) ([]ledger.Txn, error)

	// --- Metric snapshots ---

	// SaveMetric upserts a contract-metric snapshot; at most one record
	// exists per (user, contract, answer).
	SaveMetric(ctx context.Context, m *model.ContractMetric) error

	// GetMetric retrieves one snapshot, or ErrNotFound.
	GetMetric(ctx context.Context, userID, contractID, answerID string) (*model.ContractMetric, error)

	// GetMetricsByUser returns all of a user's snapshots.
	GetMetricsByUser(ctx context.Context, userID string) ([]model.ContractMetric, error)

	// --- Exposure queries ---

	// GetUserExposures returns the user's net directional exposure per
	// contract (+YES / -NO, in mana), derived from the bet log.
	GetUserExposures(ctx context.Context, userID string) (map[string]decimal.Decimal, error)
}
