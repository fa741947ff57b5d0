package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/outcomelabs/market-engine/internal/contract"
	"github.com/outcomelabs/market-engine/internal/model"
)

func sampleContract() *contract.Contract {
	return &contract.Contract{
		ID:              "c1",
		Question:        "Will it rain tomorrow?",
		Slug:            "will-it-rain",
		Visibility:      "public",
		CreatorUsername: "alice",
	}
}

// --- bet-driven changes ---

func TestFromBet_TypeDerivation(t *testing.T) {
	tests := []struct {
		name string
		bet  model.Bet
		want BetChangeType
	}{
		{"purchase", model.Bet{Amount: 100, Shares: 150}, ChangeCreateBet},
		{"sale", model.Bet{Amount: -60, Shares: -90}, ChangeSellShares},
		{"redemption", model.Bet{Amount: -20, Shares: -20, IsRedemption: true}, ChangeRedeemShares},
		{"zero-amount redemption", model.Bet{Amount: 0, Shares: 0, IsRedemption: true}, ChangeRedeemShares},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromBet(&tt.bet, sampleContract(), nil)
			if got.Type != tt.want {
				t.Errorf("type = %s, want %s", got.Type, tt.want)
			}
		})
	}
}

func TestFromBet_AmountIsBalanceDelta(t *testing.T) {
	bet := &model.Bet{Amount: 100, Shares: 150, Outcome: model.Yes, CreatedTime: 42}
	got := FromBet(bet, sampleContract(), nil)

	if !got.Amount.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("amount = %s, want -100 (spending reduces balance)", got.Amount)
	}
	if got.Bet == nil || got.Bet.Shares != 150 || got.Bet.Outcome != model.Yes {
		t.Errorf("bet snapshot = %+v", got.Bet)
	}
	if got.Contract.Question != "Will it rain tomorrow?" || got.Contract.CreatorUsername != "alice" {
		t.Errorf("contract snapshot = %+v", got.Contract)
	}
	if got.CreatedTime != 42 {
		t.Errorf("createdTime = %d, want 42", got.CreatedTime)
	}
}

func TestFromBet_AnswerContext(t *testing.T) {
	bet := &model.Bet{Amount: 10, AnswerID: "a1"}
	answer := &contract.Answer{ID: "a1", Text: "10-20"}
	got := FromBet(bet, sampleContract(), answer)
	if got.Answer == nil || got.Answer.ID != "a1" || got.Answer.Text != "10-20" {
		t.Errorf("answer snapshot = %+v", got.Answer)
	}
}

// --- txn-driven changes ---

func TestFromTxn_SignByDirection(t *testing.T) {
	tests := []struct {
		name string
		txn  Txn
		want int64
	}{
		{
			"incoming bonus is positive",
			Txn{FromID: "BANK", FromType: SourceBank, ToID: "u1", ToType: SourceUser,
				Amount: decimal.NewFromInt(25), Category: CategorySignupBonus},
			25,
		},
		{
			"outgoing donation is negative",
			Txn{FromID: "u1", FromType: SourceUser, ToID: "givewell", ToType: SourceCharity,
				Amount: decimal.NewFromInt(40), Category: CategoryCharity},
			-40,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromTxn(&tt.txn, "u1")
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !got.Amount.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("amount = %s, want %d", got.Amount, tt.want)
			}
			if got.Type != string(tt.txn.Category) {
				t.Errorf("type = %s, want %s", got.Type, tt.txn.Category)
			}
		})
	}
}

func TestFromTxn_UnsurfacedCategory(t *testing.T) {
	// Cert mints move shares around but never show in the balance feed.
	txn := &Txn{FromType: SourceBank, ToType: SourceUser,
		Amount: decimal.NewFromInt(1), Category: CategoryCertMint}
	if _, err := FromTxn(txn, "u1"); !errors.Is(err, ErrUnknownChangeType) {
		t.Errorf("err = %v, want ErrUnknownChangeType", err)
	}
}

// --- structural discrimination ---

func TestChangeDiscrimination(t *testing.T) {
	raw := BalanceChange{Key: "k1", Type: "adjustment", Amount: decimal.NewFromInt(5)}
	bet := FromBet(&model.Bet{Amount: 100}, sampleContract(), nil)
	txn, err := FromTxn(&Txn{FromType: SourceBank, ToType: SourceUser,
		Amount: decimal.NewFromInt(10), Category: CategoryLoan}, "u1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	tests := []struct {
		name                string
		change              Change
		isBet, isTxn, isRaw bool
	}{
		{"raw", raw, false, false, true},
		{"bet", bet, true, false, false},
		{"txn", txn, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBetChange(tt.change); got != tt.isBet {
				t.Errorf("IsBetChange = %v, want %v", got, tt.isBet)
			}
			if got := IsTxnChange(tt.change); got != tt.isTxn {
				t.Errorf("IsTxnChange = %v, want %v", got, tt.isTxn)
			}
			if got := IsRawChange(tt.change); got != tt.isRaw {
				t.Errorf("IsRawChange = %v, want %v", got, tt.isRaw)
			}
		})
	}
}

func TestTxnChangeTypes_StartingBalanceHasNoLedgerCategory(t *testing.T) {
	if !TxnChangeTypes["STARTING_BALANCE"] {
		t.Fatal("STARTING_BALANCE must be a surfaced change type")
	}
	if _, ok := txnRules["STARTING_BALANCE"]; ok {
		t.Fatal("STARTING_BALANCE must not be a ledger category")
	}
}
