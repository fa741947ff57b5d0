package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/ledger"
	"github.com/outcomelabs/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Ledger amounts are stored as NUMERIC for exact decimal precision; pool
// reserves and probabilities are DOUBLE PRECISION, matching the float64
// pricing core.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const contractColumns = `id, slug, question, creator_username, visibility,
	mechanism, token, pool_yes, pool_no, p, initial_prob,
	is_resolved, resolution, resolution_prob, created_time, close_time`

func (s *PostgresStore) CreateContract(ctx context.Context, c *contract.Contract) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO contracts (`+contractColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		c.ID, c.Slug, c.Question, c.CreatorUsername, c.Visibility,
		c.Mechanism, c.Token, c.Pool[model.Yes], c.Pool[model.No], c.P, c.InitialProb,
		c.IsResolved, c.Resolution, c.ResolutionProb, c.CreatedTime, c.CloseTime,
	)
	return err
}

func (s *PostgresStore) GetContract(ctx context.Context, id string) (*contract.Contract, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	c, err := scanContract(row)
	if err != nil {
		return nil, fmt.Errorf("get contract %s: %w", id, notFoundOr(err))
	}
	return c, nil
}

func (s *PostgresStore) GetContractBySlug(ctx context.Context, slug string) (*contract.Contract, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE slug = $1`, slug)
	c, err := scanContract(row)
	if err != nil {
		return nil, fmt.Errorf("get contract by slug %s: %w", slug, notFoundOr(err))
	}
	return c, nil
}

func (s *PostgresStore) ListContracts(ctx context.Context) ([]contract.Contract, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts ORDER BY created_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	return contracts, rows.Err()
}

func (s *PostgresStore) UpdateContractState(ctx context.Context, id string, pool map[model.Outcome]float64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE contracts SET pool_yes = $2, pool_no = $3 WHERE id = $1`,
		id, pool[model.Yes], pool[model.No],
	)
	return err
}

func (s *PostgresStore) InsertAnswer(ctx context.Context, a *contract.Answer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (id, contract_id, text, pool_yes, pool_no, prob, resolution, created_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   pool_yes = EXCLUDED.pool_yes, pool_no = EXCLUDED.pool_no,
		   prob = EXCLUDED.prob, resolution = EXCLUDED.resolution`,
		a.ID, a.ContractID, a.Text, a.PoolYes, a.PoolNo, a.Prob, a.Resolution, a.CreatedTime,
	)
	return err
}

func (s *PostgresStore) GetAnswers(ctx context.Context, contractID string) ([]contract.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, contract_id, text, pool_yes, pool_no, prob, resolution, created_time
		 FROM answers WHERE contract_id = $1 ORDER BY created_time`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []contract.Answer
	for rows.Next() {
		var a contract.Answer
		if err := rows.Scan(&a.ID, &a.ContractID, &a.Text,
			&a.PoolYes, &a.PoolNo, &a.Prob, &a.Resolution, &a.CreatedTime); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *PostgresStore) InsertBet(ctx context.Context, b *model.Bet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bets (id, user_id, contract_id, answer_id, outcome,
			amount, shares, prob_before, prob_after, loan_amount, is_redemption, created_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.UserID, b.ContractID, b.AnswerID, string(b.Outcome),
		b.Amount, b.Shares, b.ProbBefore, b.ProbAfter, b.LoanAmount, b.IsRedemption, b.CreatedTime,
	)
	return err
}

func (s *PostgresStore) GetBetsByContract(ctx context.Context, contractID string) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx, betSelect+` WHERE contract_id = $1 ORDER BY created_time`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBets(rows)
}

func (s *PostgresStore) GetBetsByUser(ctx context.Context, userID string) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx, betSelect+` WHERE user_id = $1 ORDER BY created_time`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBets(rows)
}

func (s *PostgresStore) InsertTxn(ctx context.Context, t *ledger.Txn) error {
	var data []byte
	if t.Data != nil {
		var err error
		data, err = json.Marshal(t.Data)
		if err != nil {
			return fmt.Errorf("marshal txn data: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO txns (id, created_time, from_id, from_type, to_id, to_type,
			amount, token, category, data, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8, $9, $10, $11)`,
		t.ID, t.CreatedTime, t.FromID, string(t.FromType), t.ToID, string(t.ToType),
		t.Amount.String(), string(t.Token), string(t.Category), data, t.Description,
	)
	return err
}

func (s *PostgresStore) GetTxnsByUser(ctx context.Context, userID string) ([]ledger.Txn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_time, from_id, from_type, to_id, to_type,
			amount::TEXT, token, category, data, description
		 FROM txns WHERE from_id = $1 OR to_id = $1 ORDER BY created_time`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []ledger.Txn
	for rows.Next() {
		var t ledger.Txn
		var fromType, toType, token, category, amount string
		var data []byte
		if err := rows.Scan(&t.ID, &t.CreatedTime, &t.FromID, &fromType, &t.ToID, &toType,
			&amount, &token, &category, &data, &t.Description); err != nil {
			return nil, err
		}
		t.FromType = ledger.SourceType(fromType)
		t.ToType = ledger.SourceType(toType)
		t.Token = ledger.Token(token)
		t.Category = ledger.Category(category)
		t.Amount, _ = decimal.NewFromString(amount)
		if t.Data, err = ledger.DecodeData(t.Category, data); err != nil {
			return nil, fmt.Errorf("decode txn %s data: %w", t.ID, err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *PostgresStore) SaveMetric(ctx context.Context, m *model.ContractMetric) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metric: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO contract_metrics (user_id, contract_id, answer_id, payload, last_bet_time)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, contract_id, answer_id)
		 DO UPDATE SET payload = EXCLUDED.payload, last_bet_time = EXCLUDED.last_bet_time`,
		m.UserID, m.ContractID, m.AnswerID, payload, m.LastBetTime,
	)
	return err
}

func (s *PostgresStore) GetMetric(ctx context.Context, userID, contractID, answerID string) (*model.ContractMetric, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM contract_metrics
		 WHERE user_id = $1 AND contract_id = $2 AND answer_id = $3`,
		userID, contractID, answerID).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("get metric %s/%s/%s: %w", userID, contractID, answerID, notFoundOr(err))
	}

	var m model.ContractMetric
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metric: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) GetMetricsByUser(ctx context.Context, userID string) ([]model.ContractMetric, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM contract_metrics WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []model.ContractMetric
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m model.ContractMetric
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (s *PostgresStore) GetUserExposures(ctx context.Context, userID string) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT contract_id,
		        COALESCE(SUM(CASE WHEN outcome = 'YES' THEN amount
		                          WHEN outcome = 'NO'  THEN -amount
		                          ELSE 0 END), 0)::NUMERIC::TEXT AS net_exposure
		 FROM bets
		 WHERE user_id = $1
		 GROUP BY contract_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exposures := make(map[string]decimal.Decimal)
	for rows.Next() {
		var contractID, expStr string
		if err := rows.Scan(&contractID, &expStr); err != nil {
			return nil, err
		}
		exp, _ := decimal.NewFromString(expStr)
		exposures[contractID] = exp
	}
	return exposures, rows.Err()
}

const betSelect = `SELECT id, user_id, contract_id, answer_id, outcome,
	amount, shares, prob_before, prob_after, loan_amount, is_redemption, created_time
 FROM bets`

// pgxScanner abstracts QueryRow results and Query rows for shared scan
// helpers.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanContract(row pgxScanner) (*contract.Contract, error) {
	var c contract.Contract
	var poolYes, poolNo float64
	if err := row.Scan(&c.ID, &c.Slug, &c.Question, &c.CreatorUsername, &c.Visibility,
		&c.Mechanism, &c.Token, &poolYes, &poolNo, &c.P, &c.InitialProb,
		&c.IsResolved, &c.Resolution, &c.ResolutionProb, &c.CreatedTime, &c.CloseTime); err != nil {
		return nil, err
	}
	c.Pool = map[model.Outcome]float64{model.Yes: poolYes, model.No: poolNo}
	return &c, nil
}

func scanBets(rows pgx.Rows) ([]model.Bet, error) {
	var bets []model.Bet
	for rows.Next() {
		var b model.Bet
		var outcome string
		if err := rows.Scan(&b.ID, &b.UserID, &b.ContractID, &b.AnswerID, &outcome,
			&b.Amount, &b.Shares, &b.ProbBefore, &b.ProbAfter,
			&b.LoanAmount, &b.IsRedemption, &b.CreatedTime); err != nil {
			return nil, err
		}
		b.Outcome = model.Outcome(outcome)
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
