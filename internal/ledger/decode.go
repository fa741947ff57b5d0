package ledger

import "encoding/json"

// DecodeData unmarshals a stored payload into the typed struct for its
// category. Categories without a structured payload return nil with no
// error; the raw bytes are the caller's to keep if they matter.
func DecodeData(category Category, raw []byte) (Data, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var data Data
	switch category {
	case CategoryTip:
		data = &TipData{}
	case CategoryUniqueBettorBonus:
		data = &UniqueBettorBonusData{}
	case CategoryBettingStreakBonus:
		data = &BettingStreakBonusData{}
	case CategoryCancelUniqueBettor:
		data = &CancelUniqueBettorData{}
	case CategoryManaPurchase:
		data = &ManaPurchaseData{}
	case CategoryResolutionPayout:
		data = &ResolutionPayoutData{}
	case CategoryProduceSpice:
		data = &ProduceSpiceData{}
	case CategoryUndoResolutionPayout:
		data = &UndoResolutionPayoutData{}
	case CategoryUndoProduceSpice:
		data = &UndoProduceSpiceData{}
	case CategoryConsumeSpice:
		data = &ConsumeSpiceData{}
	case CategoryConsumeSpiceDone:
		data = &ConsumeSpiceDoneData{}
	case CategoryQuestReward:
		data = &QuestRewardData{}
	case CategoryLeaguePrize:
		data = &LeaguePrizeData{}
	case CategoryMarketBoostCreate:
		data = &MarketBoostCreateData{}
	case CategoryManaPayment:
		data = &ManaPaymentData{}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, err
	}
	return data, nil
}
