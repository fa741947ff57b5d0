package ledger

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/model"
)

// Balance changes are the user-facing view of balance movements: raw
// ledger deltas, bet-driven deltas, and transaction-driven deltas.
// Classification is structural only — a change is bet-driven iff it
// carries a bet leg, txn-driven iff its type is in the known txn-change
// set, raw iff it carries a key. No other signal is authoritative.

// BetChangeType labels a bet-driven balance movement.
type BetChangeType string

const (
	ChangeCreateBet    BetChangeType = "create_bet"
	ChangeSellShares   BetChangeType = "sell_shares"
	ChangeRedeemShares BetChangeType = "redeem_shares"
	ChangeFillBet      BetChangeType = "fill_bet"
	ChangeLoanPayment  BetChangeType = "loan_payment"
)

// TxnChangeTypes is the set of transaction categories surfaced to users
// as balance changes. STARTING_BALANCE is a change type only; it has no
// ledger category.
var TxnChangeTypes = map[string]bool{
	string(CategoryUniqueBettorBonus):    true,
	string(CategoryBettingStreakBonus):   true,
	string(CategorySignupBonus):          true,
	string(CategoryResolutionPayout):     true,
	string(CategoryUndoResolutionPayout): true,
	string(CategoryProduceSpice):         true,
	string(CategoryUndoProduceSpice):     true,
	string(CategoryConsumeSpice):         true,
	string(CategoryMarketBoostRedeem):    true,
	string(CategoryMarketBoostCreate):    true,
	string(CategoryQuestReward):          true,
	string(CategoryLeaguePrize):          true,
	string(CategoryBountyPosted):         true,
	string(CategoryBountyAwarded):        true,
	string(CategoryContractAnte):         true,
	string(CategoryManaPayment):          true,
	string(CategoryLoan):                 true,
	string(CategoryAddSubsidy):           true,
	string(CategoryCharity):              true,
	"STARTING_BALANCE":                   true,
}

var ErrUnknownChangeType = errors.New("ledger: txn category is not a balance-change type")

// MinimalContract is the contract context a balance change carries.
type MinimalContract struct {
	Question        string `json:"question"`
	Slug            string `json:"slug,omitempty"`
	Visibility      string `json:"visibility"`
	CreatorUsername string `json:"creator_username"`
}

// BetSnapshot is the slice of a bet a balance change needs.
type BetSnapshot struct {
	Outcome model.Outcome `json:"outcome"`
	Shares  float64       `json:"shares"`
}

// AnswerSnapshot identifies the answer a bet-driven change touched.
type AnswerSnapshot struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// UserSnapshot identifies the counterparty of a user-to-user change.
type UserSnapshot struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// CharitySnapshot identifies a donation recipient.
type CharitySnapshot struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Change is any balance movement in a user's history feed.
type Change interface {
	ChangeType() string
	ChangeAmount() decimal.Decimal
	ChangeTime() int64
}

// BalanceChange is a raw ledger delta with no richer context.
type BalanceChange struct {
	Key         string          `json:"key"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedTime int64           `json:"created_time"`
}

func (c BalanceChange) ChangeType() string            { return c.Type }
func (c BalanceChange) ChangeAmount() decimal.Decimal { return c.Amount }
func (c BalanceChange) ChangeTime() int64             { return c.CreatedTime }

// BetBalanceChange is a balance movement caused by betting activity.
type BetBalanceChange struct {
	Type        BetChangeType   `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedTime int64           `json:"created_time"`
	Bet         *BetSnapshot    `json:"bet"`
	Answer      *AnswerSnapshot `json:"answer,omitempty"`
	Contract    MinimalContract `json:"contract"`
}

func (c BetBalanceChange) ChangeType() string            { return string(c.Type) }
func (c BetBalanceChange) ChangeAmount() decimal.Decimal { return c.Amount }
func (c BetBalanceChange) ChangeTime() int64             { return c.CreatedTime }

// TxnBalanceChange is a balance movement caused by a ledger transaction.
type TxnBalanceChange struct {
	Type        string           `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	CreatedTime int64            `json:"created_time"`
	Contract    *MinimalContract `json:"contract,omitempty"`
	QuestType   string           `json:"quest_type,omitempty"`
	User        *UserSnapshot    `json:"user,omitempty"`
	Charity     *CharitySnapshot `json:"charity,omitempty"`
}

func (c TxnBalanceChange) ChangeType() string            { return c.Type }
func (c TxnBalanceChange) ChangeAmount() decimal.Decimal { return c.Amount }
func (c TxnBalanceChange) ChangeTime() int64             { return c.CreatedTime }

// IsBetChange reports whether the change carries a bet leg.
func IsBetChange(c Change) bool {
	bc, ok := c.(BetBalanceChange)
	return ok && bc.Bet != nil
}

// IsTxnChange reports whether the change's type is a known txn change
// type, whatever concrete shape carries it.
func IsTxnChange(c Change) bool {
	return TxnChangeTypes[c.ChangeType()]
}

// IsRawChange reports whether the change is a bare keyed delta.
func IsRawChange(c Change) bool {
	rc, ok := c.(BalanceChange)
	return ok && rc.Key != ""
}

// FromBet builds the balance-change view of a bet. Redemptions are
// redeem_shares regardless of sign, negative amounts are sales, and
// everything else is a bet creation. The change amount is the delta to
// the user's balance, so it carries the opposite sign of the bet amount.
// answer may be nil for binary markets.
func FromBet(bet *model.Bet, c *contract.Contract, answer *contract.Answer) BetBalanceChange {
	changeType := ChangeCreateBet
	switch {
	case bet.IsRedemption:
		changeType = ChangeRedeemShares
	case bet.Amount < 0:
		changeType = ChangeSellShares
	}

	change := BetBalanceChange{
		Type:        changeType,
		Amount:      decimal.NewFromFloat(-bet.Amount),
		CreatedTime: bet.CreatedTime,
		Bet:         &BetSnapshot{Outcome: bet.Outcome, Shares: bet.Shares},
		Contract: MinimalContract{
			Question:        c.Question,
			Slug:            c.Slug,
			Visibility:      c.Visibility,
			CreatorUsername: c.CreatorUsername,
		},
	}
	if answer != nil {
		change.Answer = &AnswerSnapshot{ID: answer.ID, Text: answer.Text}
	}
	return change
}

// FromTxn builds the balance-change view of a ledger transaction from
// userID's perspective: outgoing amounts are negated. Categories outside
// the surfaced set return ErrUnknownChangeType. Optional context
// snapshots are the caller's to attach afterwards.
func FromTxn(t *Txn, userID string) (TxnBalanceChange, error) {
	if !TxnChangeTypes[string(t.Category)] {
		return TxnBalanceChange{}, ErrUnknownChangeType
	}

	amount := t.Amount
	if t.FromID == userID && t.FromType == SourceUser {
		amount = amount.Neg()
	}
	return TxnBalanceChange{
		Type:        string(t.Category),
		Amount:      amount,
		CreatedTime: t.CreatedTime,
	}, nil
}
