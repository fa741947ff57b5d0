// Package trade provides the HTTP handlers and business logic for
// creating markets, placing bets, and querying portfolios and balance
// changes.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/outcomelabs/market-engine/internal/chart"
	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/cpmm"
	"github.com/outcomelabs/market-engine/internal/ledger"
	"github.com/outcomelabs/market-engine/internal/metrics"
	"github.com/outcomelabs/market-engine/internal/model"
	"github.com/outcomelabs/market-engine/internal/portfolio"
	"github.com/outcomelabs/market-engine/internal/risk"
	"github.com/outcomelabs/market-engine/internal/store"
)

// Service handles market operations. Uses a mutex for serialized bet
// execution (single-instance). For horizontal scaling, replace with
// distributed locking or database-level optimistic concurrency.
type Service struct {
	store   store.Store
	limiter *risk.BetLimiter
	mu      sync.Mutex
	wsHub   *WSHub // optional WebSocket hub for real-time broadcasts

	now func() int64 // millisecond clock
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, limiter *risk.BetLimiter, hub *WSHub) *Service {
	return &Service{
		store:   st,
		limiter: limiter,
		wsHub:   hub,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// --- Request/Response types ---

// CreateMarketRequest is the JSON body for market creation. Ante seeds
// both pool reserves; answers, when present, make the market
// multi-outcome with one sub-pool per answer.
type CreateMarketRequest struct {
	Question        string   `json:"question"`
	Slug            string   `json:"slug,omitempty"`
	CreatorUsername string   `json:"creator_username"`
	Ante            float64  `json:"ante"`
	InitialProb     float64  `json:"initial_prob"`
	CloseTime       int64    `json:"close_time,omitempty"`
	Answers         []string `json:"answers,omitempty"`
}

// BetRequest is the JSON body for POST /bet. Orders carries the resting
// limit orders to match against; Balances caps maker fills by user, with
// absent users treated as unlimited.
type BetRequest struct {
	UserID     string              `json:"user_id"`
	ContractID string              `json:"contract_id"`
	AnswerID   string              `json:"answer_id,omitempty"`
	Outcome    model.Outcome       `json:"outcome"`
	Amount     float64             `json:"amount"`
	LimitProb  *float64            `json:"limit_prob,omitempty"`
	Orders     []*model.LimitOrder `json:"orders,omitempty"`
	Balances   map[string]float64  `json:"balances,omitempty"`
}

// BetResponse is the JSON body returned from POST /bet.
type BetResponse struct {
	Bet            *model.Bet       `json:"bet"`
	MakerFills     []cpmm.MakerFill `json:"maker_fills,omitempty"`
	OrdersToCancel []string         `json:"orders_to_cancel,omitempty"`
	Prob           float64          `json:"prob"`
}

// PortfolioResponse is the JSON body for GET /portfolio/{userID}.
type PortfolioResponse struct {
	UserID          string                 `json:"user_id"`
	Metrics         []model.ContractMetric `json:"metrics"`
	InvestmentValue float64                `json:"investment_value"`
	CashInvestment  float64                `json:"cash_investment_value"`
	LoanTotal       float64                `json:"loan_total"`
}

// --- HTTP Handlers ---

// CreateMarket handles POST /api/v1/markets
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Question == "" {
		writeError(w, "question is required", http.StatusBadRequest)
		return
	}
	if !(req.Ante > 0) {
		writeError(w, "ante must be positive", http.StatusBadRequest)
		return
	}
	if len(req.Answers) == 0 {
		// A binary market needs a valid opening probability; sub-pools of
		// a multi market always open at 0.5.
		if !(req.InitialProb > 0 && req.InitialProb < 1) {
			writeError(w, "initial_prob must be in (0, 1)", http.StatusBadRequest)
			return
		}
	}

	mechanism := contract.MechanismCPMM
	if len(req.Answers) > 0 {
		mechanism = contract.MechanismCPMMMulti
		req.InitialProb = 0.5
	}

	state := cpmm.NewStateFromAnte(req.Ante, req.InitialProb)
	now := s.now()
	c := &contract.Contract{
		ID:              uuid.New().String(),
		Slug:            req.Slug,
		Question:        req.Question,
		CreatorUsername: req.CreatorUsername,
		Visibility:      "public",
		Mechanism:       mechanism,
		Token:           contract.TokenMana,
		Pool:            state.Pool,
		P:               state.P,
		InitialProb:     req.InitialProb,
		CreatedTime:     now,
		CloseTime:       req.CloseTime,
	}

	ctx := r.Context()
	if err := s.store.CreateContract(ctx, c); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	for _, text := range req.Answers {
		a := &contract.Answer{
			ID:          uuid.New().String(),
			ContractID:  c.ID,
			Text:        text,
			PoolYes:     req.Ante,
			PoolNo:      req.Ante,
			Prob:        0.5,
			CreatedTime: now,
		}
		if err := s.store.InsertAnswer(ctx, a); err != nil {
			writeError(w, "failed to create answer", http.StatusInternalServerError)
			return
		}
	}

	// The ante is a ledger event too: creator funds the pool.
	ante := &ledger.Txn{
		ID:          uuid.New().String(),
		CreatedTime: now,
		FromID:      req.CreatorUsername,
		FromType:    ledger.SourceUser,
		ToID:        c.ID,
		ToType:      ledger.SourceContract,
		Amount:      decimal.NewFromFloat(req.Ante),
		Token:       ledger.TokenMana,
		Category:    ledger.CategoryContractAnte,
	}
	if err := ledger.Validate(ante); err != nil {
		writeError(w, "internal error: invalid ante txn", http.StatusInternalServerError)
		return
	}
	if err := s.store.InsertTxn(ctx, ante); err != nil {
		writeError(w, "failed to record ante", http.StatusInternalServerError)
		return
	}

	metrics.ActiveMarkets.Inc()
	slog.Info("market created",
		"id", c.ID,
		"question", req.Question,
		"mechanism", mechanism,
		"ante", req.Ante,
		"initial_prob", req.InitialProb,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// GetMarket handles GET /api/v1/markets/{contractID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "contractID")

	c, err := s.store.GetContract(r.Context(), contractID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// GetProb handles GET /api/v1/markets/{contractID}/prob
func (s *Service) GetProb(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "contractID")
	ctx := r.Context()

	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	resp := map[string]any{"prob": contract.Probability(c)}
	if c.Mechanism == contract.MechanismCPMMMulti {
		answers, err := s.store.GetAnswers(ctx, c.ID)
		if err != nil {
			writeError(w, "failed to load answers", http.StatusInternalServerError)
			return
		}
		probs := make(map[string]float64, len(answers))
		for i := range answers {
			probs[answers[i].ID] = contract.AnswerProbability(&answers[i])
		}
		resp["answer_probs"] = probs
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// PlaceBet handles POST /api/v1/bet
// Computes fills against resting orders and the pool, records the bet,
// and rolls the bettor's metric snapshot forward.
func (s *Service) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req BetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if !req.Outcome.Valid() {
		writeError(w, "outcome must be YES or NO", http.StatusBadRequest)
		return
	}
	if !(req.Amount > 0) {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Serialize bet execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.GetContract(ctx, req.ContractID)
	if err != nil {
		writeError(w, "market not found: "+req.ContractID, http.StatusNotFound)
		return
	}
	if c.IsResolved {
		writeError(w, "market is resolved", http.StatusConflict)
		return
	}

	state, answer, err := s.betState(ctx, c, req.AnswerID)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// --- Exposure limit check ---
	exposureDelta := decimal.NewFromFloat(req.Amount)
	if req.Outcome == model.No {
		exposureDelta = exposureDelta.Neg()
	}
	exposures, err := s.store.GetUserExposures(ctx, req.UserID)
	if err != nil {
		writeError(w, "failed to check exposure limits", http.StatusInternalServerError)
		return
	}
	if err := s.limiter.CheckBet(c.ID, exposureDelta, exposures, nil); err != nil {
		metrics.RiskLimitRejections.Inc()
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	// --- Fill computation ---
	start := time.Now()
	probBefore := state.Probability()

	// The fill engine is answer-agnostic; hand it only the orders resting
	// on the pool being traded.
	var orders []*model.LimitOrder
	for _, o := range req.Orders {
		if o.ContractID == req.ContractID && o.AnswerID == req.AnswerID {
			orders = append(orders, o)
		}
	}

	result, err := cpmm.ComputeFills(state, req.Outcome, req.Amount, req.LimitProb, orders, req.Balances)
	if err != nil {
		writeError(w, "unfillable bet: "+err.Error(), http.StatusConflict)
		return
	}
	probAfter := result.State.Probability()

	bet := &model.Bet{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		ContractID:  c.ID,
		AnswerID:    req.AnswerID,
		Outcome:     req.Outcome,
		Amount:      req.Amount,
		Shares:      result.Shares,
		ProbBefore:  probBefore,
		ProbAfter:   probAfter,
		Fees:        result.TotalFees,
		CreatedTime: s.now(),
	}

	if answer != nil {
		if err := s.updateAnswerPool(ctx, answer, result.State); err != nil {
			writeError(w, "failed to update market state", http.StatusInternalServerError)
			return
		}
	} else if err := s.store.UpdateContractState(ctx, c.ID, result.State.Pool); err != nil {
		writeError(w, "failed to update market state", http.StatusInternalServerError)
		return
	}

	if err := s.store.InsertBet(ctx, bet); err != nil {
		writeError(w, "failed to record bet", http.StatusInternalServerError)
		return
	}

	if err := s.rollMetricForward(ctx, c, bet); err != nil {
		// The bet is committed; a stale snapshot self-heals on the next
		// full recompute.
		slog.Error("metric update failed", "bet", bet.ID, "err", err)
	}

	metrics.BetsTotal.WithLabelValues(string(req.Outcome)).Inc()
	metrics.BetLatency.WithLabelValues(string(req.Outcome)).Observe(time.Since(start).Seconds())
	metrics.MarketVolume.WithLabelValues(c.ID, string(req.Outcome)).Add(req.Amount)
	metrics.OrdersCancelled.Add(float64(len(result.OrdersToCancel)))

	slog.Info("bet placed",
		"bet_id", bet.ID,
		"user", req.UserID,
		"contract", c.ID,
		"outcome", req.Outcome,
		"amount", req.Amount,
		"shares", result.Shares,
		"prob_before", probBefore,
		"prob_after", probAfter,
		"maker_fills", len(result.MakerFills),
	)

	// Broadcast probability update via WebSocket.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "bet_placed",
			ContractID: c.ID,
			AnswerID:   req.AnswerID,
			Outcome:    string(req.Outcome),
			Amount:     req.Amount,
			Prob:       probAfter,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BetResponse{
		Bet:            bet,
		MakerFills:     result.MakerFills,
		OrdersToCancel: result.OrdersToCancel,
		Prob:           probAfter,
	})
}

// betState resolves the pool a bet trades against: the contract's own
// pool for binary markets, the answer's sub-pool for multi markets.
func (s *Service) betState(ctx context.Context, c *contract.Contract, answerID string) (cpmm.State, *contract.Answer, error) {
	if c.Mechanism != contract.MechanismCPMMMulti {
		return c.State(), nil, nil
	}
	if answerID == "" {
		return cpmm.State{}, nil, errors.New("answer_id is required for multi-outcome markets")
	}
	answers, err := s.store.GetAnswers(ctx, c.ID)
	if err != nil {
		return cpmm.State{}, nil, err
	}
	for i := range answers {
		if answers[i].ID == answerID {
			return answers[i].State(), &answers[i], nil
		}
	}
	return cpmm.State{}, nil, errors.New("unknown answer: " + answerID)
}

func (s *Service) updateAnswerPool(ctx context.Context, a *contract.Answer, next cpmm.State) error {
	a.PoolYes = next.Pool[model.Yes]
	a.PoolNo = next.Pool[model.No]
	a.Prob = next.Probability()
	// Answers live in their own table; reuse the insert-or-replace path.
	return s.store.InsertAnswer(ctx, a)
}

// rollMetricForward applies the new bet to the user's stored metric
// snapshot, or recomputes from history when no snapshot exists yet.
func (s *Service) rollMetricForward(ctx context.Context, c *contract.Contract, bet *model.Bet) error {
	prior, err := s.store.GetMetric(ctx, bet.UserID, c.ID, bet.AnswerID)
	if err == nil {
		updated := portfolio.ApplyNewBets([]*model.Bet{bet}, *prior)
		return s.store.SaveMetric(ctx, &updated)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// First bet on this (contract, answer): full recompute.
	history, err := s.store.GetBetsByContract(ctx, c.ID)
	if err != nil {
		return err
	}
	var userBets []*model.Bet
	for i := range history {
		if history[i].UserID == bet.UserID {
			userBets = append(userBets, &history[i])
		}
	}

	var answers []*contract.Answer
	if c.Mechanism == contract.MechanismCPMMMulti {
		stored, err := s.store.GetAnswers(ctx, c.ID)
		if err != nil {
			return err
		}
		for i := range stored {
			answers = append(answers, &stored[i])
		}
	}

	for _, m := range portfolio.ComputeMetrics(c, userBets, bet.UserID, answers) {
		m := m
		if err := s.store.SaveMetric(ctx, &m); err != nil {
			return err
		}
	}
	return nil
}

// ListMarkets handles GET /api/v1/markets
// Returns all markets, optionally filtered by ?creator=<username>.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	contracts, err := s.store.ListContracts(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if contracts == nil {
		contracts = []contract.Contract{}
	}

	if creator := r.URL.Query().Get("creator"); creator != "" {
		var filtered []contract.Contract
		for _, c := range contracts {
			if c.CreatorUsername == creator {
				filtered = append(filtered, c)
			}
		}
		if filtered == nil {
			filtered = []contract.Contract{}
		}
		contracts = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contracts)
}

// GetMarketHistory handles GET /api/v1/markets/{contractID}/history
// Returns the probability series the market graph renders.
func (s *Service) GetMarketHistory(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "contractID")
	ctx := r.Context()

	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}
	bets, err := s.store.GetBetsByContract(ctx, contractID)
	if err != nil {
		writeError(w, "failed to get market history", http.StatusInternalServerError)
		return
	}

	betPtrs := make([]*model.Bet, len(bets))
	for i := range bets {
		betPtrs[i] = &bets[i]
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chart.HistoryPoints(c, betPtrs, s.now()))
}

// GetElasticity handles GET /api/v1/markets/{contractID}/elasticity
func (s *Service) GetElasticity(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "contractID")
	ctx := r.Context()

	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	var answers []*contract.Answer
	if c.Mechanism == contract.MechanismCPMMMulti {
		stored, err := s.store.GetAnswers(ctx, c.ID)
		if err != nil {
			writeError(w, "failed to load answers", http.StatusInternalServerError)
			return
		}
		for i := range stored {
			answers = append(answers, &stored[i])
		}
	}

	e := portfolio.Elasticity(c, answers, nil, portfolio.ProbeBetAmount)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]float64{"elasticity": e})
}

// GetPortfolio handles GET /api/v1/portfolio/{userID}
// Returns the user's metric snapshots and mark-to-market investment value.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	userMetrics, err := s.store.GetMetricsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load metrics", http.StatusInternalServerError)
		return
	}
	if userMetrics == nil {
		userMetrics = []model.ContractMetric{}
	}

	bets, err := s.store.GetBetsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load bets", http.StatusInternalServerError)
		return
	}

	contracts := make(map[string]*contract.Contract)
	answers := make(map[string]*contract.Answer)
	for i := range bets {
		id := bets[i].ContractID
		if _, ok := contracts[id]; ok {
			continue
		}
		c, err := s.store.GetContract(ctx, id)
		if err != nil {
			continue // deleted market: skip its bets
		}
		contracts[id] = c
		if c.Mechanism == contract.MechanismCPMMMulti {
			stored, err := s.store.GetAnswers(ctx, id)
			if err != nil {
				continue
			}
			for j := range stored {
				answers[stored[j].ID] = &stored[j]
			}
		}
	}

	betPtrs := make([]*model.Bet, len(bets))
	for i := range bets {
		betPtrs[i] = &bets[i]
	}
	mana, cash := portfolio.InvestmentValue(betPtrs, contracts, answers)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PortfolioResponse{
		UserID:          userID,
		Metrics:         userMetrics,
		InvestmentValue: mana,
		CashInvestment:  cash,
		LoanTotal:       portfolio.LoanTotal(betPtrs, contracts),
	})
}

// GetBalanceChanges handles GET /api/v1/users/{userID}/balance-changes
// Merges bet-driven and txn-driven changes, newest first.
func (s *Service) GetBalanceChanges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	bets, err := s.store.GetBetsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load bets", http.StatusInternalServerError)
		return
	}
	txns, err := s.store.GetTxnsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load txns", http.StatusInternalServerError)
		return
	}

	var changes []ledger.Change
	for i := range bets {
		c, err := s.store.GetContract(ctx, bets[i].ContractID)
		if err != nil {
			continue
		}
		var answer *contract.Answer
		if bets[i].AnswerID != "" {
			stored, err := s.store.GetAnswers(ctx, c.ID)
			if err == nil {
				for j := range stored {
					if stored[j].ID == bets[i].AnswerID {
						answer = &stored[j]
						break
					}
				}
			}
		}
		changes = append(changes, ledger.FromBet(&bets[i], c, answer))
	}
	for i := range txns {
		change, err := ledger.FromTxn(&txns[i], userID)
		if err != nil {
			continue // unsurfaced category
		}
		changes = append(changes, change)
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ChangeTime() > changes[j].ChangeTime()
	})
	if changes == nil {
		changes = []ledger.Change{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(changes)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
