package governance

import (
	"errors"
	"math"
)

// Million is the fixed scale of discount ratios and the profit deduct rate.
const Million uint64 = 1_000_000

// ErrArithmeticOverflow reports fee math exceeding uint64 range. A silent
// wraparound here would make fee accounting diverge between independently
// executing nodes, so overflow is always surfaced as an explicit error.
var ErrArithmeticOverflow = errors.New("governance: arithmetic overflow")

func checkedMul(a, b uint64) (uint64, error) {
	if b != 0 && a > math.MaxUint64/b {
		return 0, ErrArithmeticOverflow
	}
	return a * b, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if math.MaxUint64-a < b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// discountRatio selects the ratio of the highest tier whose threshold the
// origin fee reaches. Tiers must be sorted ascending by Amount; the scan runs
// from the highest threshold down and falls back to full price when no tier
// qualifies.
func discountRatio(originFee uint64, levels []DiscountLevel) uint64 {
	for i := len(levels) - 1; i >= 0; i-- {
		if originFee >= levels[i].Amount {
			return levels[i].DiscountPerMillion
		}
	}
	return Million
}

// calcDiscountFee applies the selected tier's ratio to the origin fee.
func calcDiscountFee(originFee uint64, levels []DiscountLevel) (uint64, error) {
	scaled, err := checkedMul(originFee, discountRatio(originFee, levels))
	if err != nil {
		return 0, err
	}
	return scaled / Million, nil
}

// calcTxFee derives the transaction fee owed on accumulated profit: deduct at
// the configured per-million rate, discount by tier, and never drop below the
// floor fee.
func calcTxFee(profit uint64, info GovernanceInfo) (uint64, error) {
	deducted, err := checkedMul(profit, info.ProfitDeductRate)
	if err != nil {
		return 0, err
	}
	fee, err := calcDiscountFee(deducted/Million, info.TxFeeDiscount)
	if err != nil {
		return 0, err
	}
	if fee < info.TxFloorFee {
		fee = info.TxFloorFee
	}
	return fee, nil
}
