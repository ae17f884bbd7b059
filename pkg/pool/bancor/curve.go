package bancor

import (
	"cosmossdk.io/math"
	"lukechampine.com/uint128"
)

// CurveState is the market snapshot a quote is priced against.
type CurveState struct {
	Supply           uint64
	VaultLamports    uint64
	ExemptionMinimum uint64
	Fee              uint16
}

// BuyQuote is the settlement of a Buy.
type BuyQuote struct {
	AmountIn    uint64
	AdjustedIn  uint64 // deposited into the vault
	TokensOut   uint64
	ProviderFee uint64
	PoolFee     uint64
}

// SellQuote is the settlement of a Sell.
type SellQuote struct {
	AmountIn    uint64
	GrossOut    uint64
	ProviderFee uint64
	NetOut      uint64
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := uint128.From64(a).Add64(b)
	if sum.Hi != 0 {
		return 0, ErrOverflow
	}
	return sum.Lo, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// mulDiv returns floor(a*b/d) with a 128-bit intermediate.
func mulDiv(a, b, d uint64) uint64 {
	return uint128.From64(a).Mul64(b).Div64(d).Lo
}

func (s CurveState) effectiveSupply() (uint64, error) {
	return checkedAdd(s.Supply, VirtualSupply)
}

func (s CurveState) usableReserve() (uint64, error) {
	return checkedSub(s.VaultLamports, s.ExemptionMinimum)
}

// QuoteBuy prices a purchase of tokens with amountIn lamports:
//
//	tokens = (supply + virtual) * ((1 + adjusted/reserve)^w - 1)
func QuoteBuy(s CurveState, amountIn uint64) (BuyQuote, error) {
	if s.Fee > MaxFee {
		return BuyQuote{}, ErrInvalidFee
	}
	supply, err := s.effectiveSupply()
	if err != nil {
		return BuyQuote{}, err
	}
	reserve, err := s.usableReserve()
	if err != nil {
		return BuyQuote{}, err
	}
	if reserve == 0 {
		return BuyQuote{}, ErrReserveError
	}

	keep := FeeDenominator - ProviderFeeNumerator - uint64(s.Fee)
	adjusted := decFromUint64(amountIn).MulInt64(int64(keep)).QuoTruncate(decFromUint64(FeeDenominator))

	base := decOne.Add(adjusted.QuoTruncate(decFromUint64(reserve)))
	growth, err := powFrac(base, reserveWeightNumerator, reserveWeightDenominator)
	if err != nil {
		return BuyQuote{}, err
	}
	tokens := decFromUint64(supply).MulTruncate(growth.Sub(decOne)).TruncateInt()
	if tokens.IsNegative() {
		tokens = math.ZeroInt()
	}
	if !tokens.IsUint64() {
		return BuyQuote{}, ErrOverflow
	}

	return BuyQuote{
		AmountIn:    amountIn,
		AdjustedIn:  adjusted.TruncateInt().Uint64(),
		TokensOut:   tokens.Uint64(),
		ProviderFee: mulDiv(amountIn, ProviderFeeNumerator, FeeDenominator),
		PoolFee:     mulDiv(amountIn, uint64(s.Fee), FeeDenominator),
	}, nil
}

// QuoteSell prices a sale of amountIn tokens:
//
//	gross = reserve * (1 - (1 - amount/(supply + virtual))^(1/w))
//
// The payout may never dig into the bootstrap collateral.
func QuoteSell(s CurveState, amountIn uint64) (SellQuote, error) {
	supply, err := s.effectiveSupply()
	if err != nil {
		return SellQuote{}, err
	}
	reserve, err := s.usableReserve()
	if err != nil {
		return SellQuote{}, err
	}
	if reserve == 0 {
		return SellQuote{}, ErrReserveError
	}
	if amountIn >= supply {
		return SellQuote{}, ErrInvalidInput
	}

	base := decOne.Sub(decFromUint64(amountIn).QuoTruncate(decFromUint64(supply)))
	remaining, err := powFrac(base, reserveWeightDenominator, reserveWeightNumerator)
	if err != nil {
		return SellQuote{}, err
	}
	shrink := decOne.Sub(remaining)
	if shrink.IsNegative() {
		shrink = decZero
	}
	gross := decFromUint64(reserve).MulTruncate(shrink)

	limit, err := checkedSub(reserve, BootstrapCollateral)
	if err != nil {
		return SellQuote{}, err
	}
	grossOut := gross.TruncateInt()
	if !grossOut.IsUint64() || grossOut.Uint64() > limit {
		return SellQuote{}, ErrReserveError
	}

	fee := gross.QuoTruncate(math.LegacyNewDec(100))
	return SellQuote{
		AmountIn:    amountIn,
		GrossOut:    grossOut.Uint64(),
		ProviderFee: fee.TruncateInt().Uint64(),
		NetOut:      gross.Sub(fee).TruncateInt().Uint64(),
	}, nil
}
