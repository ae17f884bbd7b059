package sol

import "github.com/gagliardetto/solana-go"

var (
	WSOL      = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	NativeSOL = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

	TokenAccountSize = uint64(165)
	MintSize         = uint64(82)
)

// Default rent parameters of the cluster.
const (
	LamportsPerByteYear    uint64 = 3480
	ExemptionThreshold     uint64 = 2
	AccountStorageOverhead uint64 = 128
)
