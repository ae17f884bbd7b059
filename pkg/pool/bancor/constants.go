package bancor

import (
	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
)

// Program IDs
var (
	BANCOR_PROGRAM_ID = solana.MustPublicKeyFromBase58("4EYSfZxBY9h9JjbuHks75chtTn85ucNRqahsH5YcexVa")

	// Receives the 1% provider fee on every swap.
	PROVIDER_FEE_COLLECTOR_ID = solana.MustPublicKeyFromBase58("CohZhJhnHkdutc7iktrrGVUX4oUM3VctSX7DybSzRN4f")
)

// Account sizes
const (
	PoolSize = 37
)

// Fee configuration, all at scale 1/FeeDenominator
const (
	FeeDenominator       uint64 = 100000
	ProviderFeeNumerator uint64 = 1000
	DefaultFee           uint16 = 2500
	MaxFee               uint16 = 50000
)

// Curve configuration
const (
	// VirtualSupply is added to the real supply so an empty market still has
	// a finite price.
	VirtualSupply uint64 = 1_000_000_000
	// BootstrapCollateral is the permanent reserve seeded at Initialize.
	BootstrapCollateral uint64 = 36
	MintDecimals        uint8  = 9

	reserveWeightNumerator   int64 = 60976
	reserveWeightDenominator int64 = 100000
)

// ReserveWeight is the connector weight w of the curve.
var ReserveWeight = math.LegacyNewDec(reserveWeightNumerator).QuoInt64(reserveWeightDenominator)
