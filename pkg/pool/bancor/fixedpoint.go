package bancor

import (
	"cosmossdk.io/math"
)

// All curve arithmetic runs on 18-place decimals with truncating rounding,
// so every host computes identical results.

const maxSeriesTerms = 128

// maxExpArgument bounds exp inputs so 2^k stays inside LegacyDec range.
var maxExpArgument = math.LegacyNewDec(120)

var (
	decZero = math.LegacyZeroDec()
	decOne  = math.LegacyOneDec()
	decTwo  = math.LegacyNewDec(2)
	// ln 2 truncated to 18 places.
	decLn2 = math.LegacyMustNewDecFromStr("0.693147180559945309")
)

func decFromUint64(v uint64) math.LegacyDec {
	return math.LegacyNewDecFromInt(math.NewIntFromUint64(v))
}

// lnDec computes the natural logarithm of a positive decimal.
func lnDec(x math.LegacyDec) (math.LegacyDec, error) {
	if !x.IsPositive() {
		return math.LegacyDec{}, ErrInvalidInput
	}

	// x = m * 2^k with m in [1, 2)
	k := int64(0)
	m := x
	for m.GTE(decTwo) {
		m = m.QuoTruncate(decTwo)
		k++
	}
	for m.LT(decOne) {
		m = m.MulTruncate(decTwo)
		k--
	}

	// ln m = 2 atanh(z), z = (m-1)/(m+1) in [0, 1/3)
	z := m.Sub(decOne).QuoTruncate(m.Add(decOne))
	z2 := z.MulTruncate(z)
	sum := decZero
	term := z
	for i := int64(1); i < 2*maxSeriesTerms && !term.IsZero(); i += 2 {
		sum = sum.Add(term.QuoTruncate(math.LegacyNewDec(i)))
		term = term.MulTruncate(z2)
	}
	return sum.MulInt64(2).Add(decLn2.MulInt64(k)), nil
}

// expDec computes e^y.
func expDec(y math.LegacyDec) (math.LegacyDec, error) {
	if y.Abs().GT(maxExpArgument) {
		return math.LegacyDec{}, ErrOverflow
	}

	// y = k ln2 + r with r in [0, ln2)
	k := y.QuoTruncate(decLn2).TruncateInt64()
	r := y.Sub(decLn2.MulInt64(k))
	for r.IsNegative() {
		k--
		r = r.Add(decLn2)
	}
	for r.GTE(decLn2) {
		k++
		r = r.Sub(decLn2)
	}

	sum := decOne
	term := decOne
	for i := int64(1); i < maxSeriesTerms; i++ {
		term = term.MulTruncate(r).QuoTruncate(math.LegacyNewDec(i))
		if term.IsZero() {
			break
		}
		sum = sum.Add(term)
	}

	switch {
	case k > 0:
		sum = sum.Mul(decTwo.Power(uint64(k)))
	case k < 0:
		sum = sum.QuoTruncate(decTwo.Power(uint64(-k)))
	}
	return sum, nil
}

// powFrac computes base^(num/den) as exp(ln(base) * num / den).
func powFrac(base math.LegacyDec, num, den int64) (math.LegacyDec, error) {
	if base.Equal(decOne) {
		return decOne, nil
	}
	l, err := lnDec(base)
	if err != nil {
		return math.LegacyDec{}, err
	}
	return expDec(l.MulInt64(num).QuoTruncate(math.LegacyNewDec(den)))
}
