package sol

// MinimumBalance returns the lamports an account holding dataLen bytes needs
// to be exempt from rent under the default cluster parameters.
func MinimumBalance(dataLen uint64) uint64 {
	return (AccountStorageOverhead + dataLen) * LamportsPerByteYear * ExemptionThreshold
}

// RentExempt reports whether lamports keeps an account of dataLen bytes alive.
// An empty account is always allowed since the ledger reclaims it.
func RentExempt(lamports, dataLen uint64) bool {
	return lamports == 0 || lamports >= MinimumBalance(dataLen)
}
