package bancor

import "github.com/gagliardetto/solana-go"

// ChangeFee applies a fee-administration request signed by the collector
// current. The returned record is unchanged when the request fails.
func (s PoolState) ChangeFee(current, next solana.PublicKey, fee uint16) (PoolState, error) {
	updated := s
	if !current.Equals(next) {
		updated.FeeCollector = next
	}
	if fee != s.Fee {
		if fee > MaxFee {
			return s, ErrInvalidFee
		}
		updated.Fee = fee
	}
	return updated, nil
}
