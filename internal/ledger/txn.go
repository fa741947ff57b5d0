// Package ledger models the platform's money movements: typed
// transactions between account holders and the balance-change views
// derived from them and from bets.
//
// Transaction categories form a closed world. Every category fixes which
// source types may appear on each side and which tokens it may move;
// Validate enforces the contract, so an entry that passes is structurally
// legal by construction.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Token is the unit a transaction moves.
type Token string

const (
	TokenMana  Token = "MANA"
	TokenShare Token = "SHARE"
	TokenSpice Token = "SPICE"
)

// SourceType classifies a transaction party.
type SourceType string

const (
	SourceUser     SourceType = "USER"
	SourceContract SourceType = "CONTRACT"
	SourceCharity  SourceType = "CHARITY"
	SourceBank     SourceType = "BANK"
	SourceAd       SourceType = "AD"
	SourceLeague   SourceType = "LEAGUE"
)

// Category names a transaction kind. The set is closed: Validate rejects
// anything not in the rules table.
type Category string

const (
	CategoryCharity               Category = "CHARITY"
	CategoryTip                   Category = "TIP"
	CategoryLootboxPurchase       Category = "LOOTBOX_PURCHASE"
	CategoryManalink              Category = "MANALINK"
	CategoryReferral              Category = "REFERRAL"
	CategoryUniqueBettorBonus     Category = "UNIQUE_BETTOR_BONUS"
	CategoryBettingStreakBonus    Category = "BETTING_STREAK_BONUS"
	CategoryCancelUniqueBettor    Category = "CANCEL_UNIQUE_BETTOR_BONUS"
	CategoryManaPurchase          Category = "MANA_PURCHASE"
	CategorySignupBonus           Category = "SIGNUP_BONUS"
	CategoryCertMint              Category = "CERT_MINT"
	CategoryCertTransfer          Category = "CERT_TRANSFER"
	CategoryCertPayMana           Category = "CERT_PAY_MANA"
	CategoryCertDividend          Category = "CERT_DIVIDEND"
	CategoryCertBurn              Category = "CERT_BURN"
	CategoryResolutionPayout      Category = "CONTRACT_RESOLUTION_PAYOUT"
	CategoryUndoResolutionPayout  Category = "CONTRACT_UNDO_RESOLUTION_PAYOUT"
	CategoryProduceSpice          Category = "PRODUCE_SPICE"
	CategoryUndoProduceSpice      Category = "CONTRACT_UNDO_PRODUCE_SPICE"
	CategoryConsumeSpice          Category = "CONSUME_SPICE"
	CategoryConsumeSpiceDone      Category = "CONSUME_SPICE_DONE"
	CategoryContractAnte          Category = "CREATE_CONTRACT_ANTE"
	CategoryQfPayment             Category = "QF_PAYMENT"
	CategoryQfAddPool             Category = "QF_ADD_POOL"
	CategoryQfDividend            Category = "QF_DIVIDEND"
	CategoryAdCreate              Category = "AD_CREATE"
	CategoryAdRedeem              Category = "AD_REDEEM"
	CategoryMarketBoostCreate     Category = "MARKET_BOOST_CREATE"
	CategoryMarketBoostRedeem     Category = "MARKET_BOOST_REDEEM"
	CategoryMarketBoostRedeemFee  Category = "MARKET_BOOST_REDEEM_FEE"
	CategoryQuestReward           Category = "QUEST_REWARD"
	CategoryQAndACreate           Category = "Q_AND_A_CREATE"
	CategoryQAndAAward            Category = "Q_AND_A_AWARD"
	CategoryLeaguePrize           Category = "LEAGUE_PRIZE"
	CategoryBountyPosted          Category = "BOUNTY_POSTED"
	CategoryBountyAdded           Category = "BOUNTY_ADDED"
	CategoryBountyAwarded         Category = "BOUNTY_AWARDED"
	CategoryBountyCanceled        Category = "BOUNTY_CANCELED"
	CategoryManaPayment           Category = "MANA_PAYMENT"
	CategoryLoan                  Category = "LOAN"
	CategoryPushNotificationBonus Category = "PUSH_NOTIFICATION_BONUS"
	CategoryLikePurchase          Category = "LIKE_PURCHASE"
	CategoryAddSubsidy            Category = "ADD_SUBSIDY"
	CategoryReclaimMana           Category = "RECLAIM_MANA"
)

var (
	ErrUnknownCategory = errors.New("ledger: unknown txn category")
	ErrIllegalSource   = errors.New("ledger: source type not legal for category")
	ErrIllegalToken    = errors.New("ledger: token not legal for category")
	ErrAmount          = errors.New("ledger: txn amount must be positive")
	ErrPayloadMismatch = errors.New("ledger: payload category does not match txn category")
)

// Data is a category-specific transaction payload. Category ties the
// payload shape to the one category it is legal for.
type Data interface {
	Category() Category
}

// Txn is an immutable, append-only ledger entry moving amount of token
// from one party to another.
type Txn struct {
	ID          string          `json:"id"`
	CreatedTime int64           `json:"created_time"`
	FromID      string          `json:"from_id"`
	FromType    SourceType      `json:"from_type"`
	ToID        string          `json:"to_id"`
	ToType      SourceType      `json:"to_type"`
	Amount      decimal.Decimal `json:"amount"`
	Token       Token           `json:"token"`
	Category    Category        `json:"category"`
	Data        Data            `json:"data,omitempty"`
	Description string          `json:"description,omitempty"`
}

// rule is the legality triple for one category. An empty tokens list
// leaves the token unconstrained.
type rule struct {
	from   []SourceType
	to     []SourceType
	tokens []Token
}

var txnRules = map[Category]rule{
	CategoryCharity:               {from: users, to: charities, tokens: []Token{TokenSpice, TokenMana}},
	CategoryTip:                   {from: users, to: users},
	CategoryLootboxPurchase:       {from: users, to: banks, tokens: mana},
	CategoryManalink:              {from: users, to: users},
	CategoryReferral:              {from: banks, to: users},
	CategoryUniqueBettorBonus:     {from: banks, to: users},
	CategoryBettingStreakBonus:    {from: banks, to: users},
	CategoryCancelUniqueBettor:    {from: users, to: banks},
	CategoryManaPurchase:          {from: banks, to: users},
	CategorySignupBonus:           {from: banks, to: users},
	CategoryCertMint:              {from: banks, to: users, tokens: share},
	CategoryCertTransfer:          {from: usersOrContracts, to: usersOrContracts, tokens: share},
	CategoryCertPayMana:           {from: usersOrContracts, to: usersOrContracts, tokens: mana},
	CategoryCertDividend:          {from: users, to: users, tokens: mana},
	CategoryCertBurn:              {from: users, to: banks, tokens: share},
	CategoryResolutionPayout:      {from: contracts, to: users, tokens: mana},
	CategoryUndoResolutionPayout:  {from: users, to: contracts, tokens: mana},
	CategoryProduceSpice:          {from: contracts, to: users, tokens: spice},
	CategoryUndoProduceSpice:      {from: users, to: contracts, tokens: spice},
	CategoryConsumeSpice:          {from: users, to: banks, tokens: spice},
	CategoryConsumeSpiceDone:      {from: banks, to: users, tokens: mana},
	CategoryContractAnte:          {from: usersOrBanks, to: contracts, tokens: mana},
	CategoryQfPayment:             {from: users, to: users},
	CategoryQfAddPool:             {from: users, to: contracts},
	CategoryQfDividend:            {from: contracts, to: users},
	CategoryAdCreate:              {from: users, to: ads},
	CategoryAdRedeem:              {from: ads, to: users},
	CategoryMarketBoostCreate:     {from: users, to: ads},
	CategoryMarketBoostRedeem:     {from: ads, to: users},
	CategoryMarketBoostRedeemFee:  {from: ads, to: banks},
	CategoryQuestReward:           {from: banks, to: users},
	CategoryQAndACreate:           {from: users, to: banks},
	CategoryQAndAAward:            {from: banks, to: users},
	CategoryLeaguePrize:           {from: banks, to: users},
	CategoryBountyPosted:          {from: users, to: contracts, tokens: mana},
	CategoryBountyAdded:           {from: users, to: contracts, tokens: mana},
	CategoryBountyAwarded:         {from: contracts, to: users, tokens: mana},
	CategoryBountyCanceled:        {from: contracts, to: users, tokens: mana},
	CategoryManaPayment:           {from: users, to: users, tokens: mana},
	CategoryLoan:                  {from: banks, to: users, tokens: mana},
	CategoryPushNotificationBonus: {from: banks, to: users, tokens: mana},
	CategoryLikePurchase:          {from: users, to: banks, tokens: mana},
	CategoryAddSubsidy:            {from: users, to: contracts, tokens: mana},
	CategoryReclaimMana:           {from: users, to: banks, tokens: mana},
}

// Shared rule fragments.
var (
	users            = []SourceType{SourceUser}
	banks            = []SourceType{SourceBank}
	contracts        = []SourceType{SourceContract}
	ads              = []SourceType{SourceAd}
	charities        = []SourceType{SourceCharity}
	usersOrContracts = []SourceType{SourceUser, SourceContract}
	usersOrBanks     = []SourceType{SourceUser, SourceBank}

	mana  = []Token{TokenMana}
	share = []Token{TokenShare}
	spice = []Token{TokenSpice}
)

// Validate checks a transaction against the closed category world: the
// category must exist, both parties and the token must be legal for it,
// the amount must be positive, and any payload must belong to the same
// category.
func Validate(t *Txn) error {
	r, ok := txnRules[t.Category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, t.Category)
	}
	if !containsSource(r.from, t.FromType) {
		return fmt.Errorf("%w: %s cannot send %s", ErrIllegalSource, t.FromType, t.Category)
	}
	if !containsSource(r.to, t.ToType) {
		return fmt.Errorf("%w: %s cannot receive %s", ErrIllegalSource, t.ToType, t.Category)
	}
	if len(r.tokens) > 0 && !containsToken(r.tokens, t.Token) {
		return fmt.Errorf("%w: %s cannot move %s", ErrIllegalToken, t.Category, t.Token)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrAmount, t.Amount)
	}
	if t.Data != nil && t.Data.Category() != t.Category {
		return fmt.Errorf("%w: payload is %s, txn is %s", ErrPayloadMismatch, t.Data.Category(), t.Category)
	}
	return nil
}

func containsSource(set []SourceType, s SourceType) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsToken(set []Token, tok Token) bool {
	for _, v := range set {
		if v == tok {
			return true
		}
	}
	return false
}

// --- category payloads ---

// TipData attaches a tip to the comment it rewards.
type TipData struct {
	CommentID  string `json:"comment_id"`
	ContractID string `json:"contract_id,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
}

func (TipData) Category() Category { return CategoryTip }

// UniqueBettorBonusData records which market and new bettor earned the
// creator bonus.
type UniqueBettorBonusData struct {
	ContractID        string `json:"contract_id"`
	UniqueNewBettorID string `json:"unique_new_bettor_id,omitempty"`
	IsPartner         bool   `json:"is_partner"`
}

func (UniqueBettorBonusData) Category() Category { return CategoryUniqueBettorBonus }

type BettingStreakBonusData struct {
	CurrentBettingStreak int    `json:"current_betting_streak,omitempty"`
	ContractID           string `json:"contract_id,omitempty"`
}

func (BettingStreakBonusData) Category() Category { return CategoryBettingStreakBonus }

type CancelUniqueBettorData struct {
	ContractID string `json:"contract_id"`
}

func (CancelUniqueBettorData) Category() Category { return CategoryCancelUniqueBettor }

// ManaPurchaseData identifies the external payment behind a top-up.
type ManaPurchaseData struct {
	Provider      string `json:"provider"` // "apple" or "stripe"
	TransactionID string `json:"transaction_id"`
}

func (ManaPurchaseData) Category() Category { return CategoryManaPurchase }

// ResolutionPayoutData scopes a payout to an answer and records the
// deposit portion that is principal rather than profit.
type ResolutionPayoutData struct {
	Deposit         float64 `json:"deposit,omitempty"`
	PayoutStartTime int64   `json:"payout_start_time,omitempty"`
	AnswerID        string  `json:"answer_id,omitempty"`
}

func (ResolutionPayoutData) Category() Category { return CategoryResolutionPayout }

type ProduceSpiceData struct {
	Deposit         float64 `json:"deposit,omitempty"`
	PayoutStartTime int64   `json:"payout_start_time,omitempty"`
	AnswerID        string  `json:"answer_id,omitempty"`
}

func (ProduceSpiceData) Category() Category { return CategoryProduceSpice }

// UndoResolutionPayoutData points at the payout txn being reverted.
type UndoResolutionPayoutData struct {
	RevertsTxnID string `json:"reverts_txn_id"`
}

func (UndoResolutionPayoutData) Category() Category { return CategoryUndoResolutionPayout }

type UndoProduceSpiceData struct {
	RevertsTxnID string `json:"reverts_txn_id"`
}

func (UndoProduceSpiceData) Category() Category { return CategoryUndoProduceSpice }

// ConsumeSpiceData and ConsumeSpiceDoneData come in sibling pairs that
// together convert spice into mana.
type ConsumeSpiceData struct {
	SiblingID string `json:"sibling_id"`
}

func (ConsumeSpiceData) Category() Category { return CategoryConsumeSpice }

type ConsumeSpiceDoneData struct {
	SiblingID string `json:"sibling_id"`
}

func (ConsumeSpiceDoneData) Category() Category { return CategoryConsumeSpiceDone }

type QuestRewardData struct {
	QuestType  string `json:"quest_type"`
	QuestCount int    `json:"quest_count"`
}

func (QuestRewardData) Category() Category { return CategoryQuestReward }

type LeaguePrizeData struct {
	Season   int    `json:"season"`
	Division int    `json:"division"`
	Cohort   string `json:"cohort"`
	Rank     int    `json:"rank"`
}

func (LeaguePrizeData) Category() Category { return CategoryLeaguePrize }

type MarketBoostCreateData struct {
	ContractID string `json:"contract_id,omitempty"`
}

func (MarketBoostCreateData) Category() Category { return CategoryMarketBoostCreate }

// ManaPaymentData carries the user-to-user payment note.
type ManaPaymentData struct {
	Visibility string `json:"visibility"` // "public" or "private"
	Message    string `json:"message"`
	GroupID    string `json:"group_id"`
}

func (ManaPaymentData) Category() Category { return CategoryManaPayment }
