package governance

import (
	"math"
	"testing"
)

func TestCalcDiscountFeeDefaultsToFullPrice(t *testing.T) {
	fee, err := calcDiscountFee(500, []DiscountLevel{{Amount: 1000, DiscountPerMillion: 500_000}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 500 {
		t.Fatalf("expected full price 500 below every threshold, got %d", fee)
	}
}

func TestCalcDiscountFeeSelectsHighestQualifyingTier(t *testing.T) {
	levels := []DiscountLevel{
		{Amount: 0, DiscountPerMillion: 1_000_000},
		{Amount: 100, DiscountPerMillion: 900_000},
		{Amount: 1000, DiscountPerMillion: 500_000},
	}

	cases := []struct {
		origin uint64
		want   uint64
	}{
		{origin: 50, want: 50},
		{origin: 100, want: 90},
		{origin: 999, want: 899}, // 999 * 900000 / 1000000
		{origin: 1000, want: 500},
		{origin: 4000, want: 2000},
	}
	for _, tc := range cases {
		fee, err := calcDiscountFee(tc.origin, levels)
		if err != nil {
			t.Fatalf("origin %d: unexpected error: %v", tc.origin, err)
		}
		if fee != tc.want {
			t.Fatalf("origin %d: expected fee %d, got %d", tc.origin, tc.want, fee)
		}
	}
}

func TestCalcDiscountFeeMonotonicSelection(t *testing.T) {
	levels := []DiscountLevel{
		{Amount: 10, DiscountPerMillion: 800_000},
		{Amount: 100, DiscountPerMillion: 600_000},
		{Amount: 1000, DiscountPerMillion: 300_000},
	}

	// The selected ratio must never increase as the origin fee grows:
	// crossing a threshold can only deepen the discount.
	lastRatio := uint64(1_000_000)
	for origin := uint64(0); origin <= 2000; origin += 7 {
		ratio := discountRatio(origin, levels)
		if ratio > lastRatio {
			t.Fatalf("origin %d: selected ratio %d exceeds previous %d", origin, ratio, lastRatio)
		}
		lastRatio = ratio
	}
}

func TestCalcDiscountFeeOverflow(t *testing.T) {
	levels := []DiscountLevel{{Amount: 0, DiscountPerMillion: 1_000_000}}
	if _, err := calcDiscountFee(math.MaxUint64, levels); err != ErrArithmeticOverflow {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestCalcTxFeeEnforcesFloor(t *testing.T) {
	info := GovernanceInfo{
		TxFloorFee:       100,
		ProfitDeductRate: 1_000_000,
		TxFeeDiscount:    []DiscountLevel{{Amount: 0, DiscountPerMillion: 1_000_000}},
	}
	fee, err := calcTxFee(50, info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 100 {
		t.Fatalf("expected floor fee 100, got %d", fee)
	}
}

func TestCalcTxFeeNeverBelowFloor(t *testing.T) {
	info := GovernanceInfo{
		TxFloorFee:       42,
		ProfitDeductRate: 10, // 10 ppm
		TxFeeDiscount:    []DiscountLevel{{Amount: 0, DiscountPerMillion: 1}},
	}
	for _, profit := range []uint64{0, 1, 1000, 1_000_000, 1_000_000_000} {
		fee, err := calcTxFee(profit, info)
		if err != nil {
			t.Fatalf("profit %d: unexpected error: %v", profit, err)
		}
		if fee < info.TxFloorFee {
			t.Fatalf("profit %d: fee %d below floor %d", profit, fee, info.TxFloorFee)
		}
	}
}

func TestCalcTxFeeAppliesDeductRateAndDiscount(t *testing.T) {
	info := GovernanceInfo{
		TxFloorFee:       10,
		ProfitDeductRate: 500_000, // 50%
		TxFeeDiscount:    []DiscountLevel{{Amount: 100, DiscountPerMillion: 400_000}},
	}
	// profit 1000 -> deducted 500 -> tier 100 qualifies -> 500 * 0.4 = 200
	fee, err := calcTxFee(1000, info)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 200 {
		t.Fatalf("expected fee 200, got %d", fee)
	}
}

func TestCalcTxFeeOverflowSurfacesError(t *testing.T) {
	info := GovernanceInfo{
		ProfitDeductRate: 2,
	}
	if _, err := calcTxFee(math.MaxUint64, info); err != ErrArithmeticOverflow {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestCheckedAdd(t *testing.T) {
	if _, err := checkedAdd(math.MaxUint64, 1); err != ErrArithmeticOverflow {
		t.Fatalf("expected overflow error, got %v", err)
	}
	sum, err := checkedAdd(math.MaxUint64-1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != math.MaxUint64 {
		t.Fatalf("expected MaxUint64, got %d", sum)
	}
}
