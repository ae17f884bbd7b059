package sol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// TopUp returns the lamports needed to bring balance up to the rent exemption
// minimum of an account holding dataLen bytes.
func TopUp(balance, dataLen uint64) uint64 {
	need := MinimumBalance(dataLen)
	if balance >= need {
		return 0
	}
	return need - balance
}

// FundRentExempt transfers from the payer whatever target lacks to be rent
// exempt at dataLen bytes and returns the amount sent.
func (t *Client) FundRentExempt(ctx context.Context, payer solana.PrivateKey, target solana.PublicKey, dataLen uint64, isSimulate bool) (uint64, error) {
	balance, err := t.RpcClient.GetBalance(ctx, target, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", target, err)
	}
	amount := TopUp(balance.Value, dataLen)
	if amount == 0 {
		return 0, nil
	}

	transferInst, err := system.NewTransferInstruction(
		amount,
		payer.PublicKey(),
		target,
	).ValidateAndBuild()
	if err != nil {
		return 0, fmt.Errorf("failed to build transfer: %w", err)
	}
	if _, err := t.SendInstructions(ctx, []solana.PrivateKey{payer}, []solana.Instruction{transferInst}, isSimulate); err != nil {
		return 0, err
	}
	t.logger.Info("funded account",
		zap.Stringer("account", target),
		zap.Uint64("lamports", amount),
	)
	return amount, nil
}
