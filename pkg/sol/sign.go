package sol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// signTransaction creates and signs a new transaction with the given instructions.
// The first signer pays the fees.
func signTransaction(blockhash solana.Hash, signers []solana.PrivateKey, instrs ...solana.Instruction) (*solana.Transaction, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("at least one signer is required")
	}

	tx, err := solana.NewTransaction(
		instrs,
		blockhash,
		solana.TransactionPayer(signers[0].PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(
		func(key solana.PublicKey) *solana.PrivateKey {
			for _, payer := range signers {
				if payer.PublicKey().Equals(key) {
					return &payer
				}
			}
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// SendTx sends or simulates a transaction based on the isSimulate flag
func (c *Client) SendTx(ctx context.Context, blockhash solana.Hash, signers []solana.PrivateKey, insts []solana.Instruction, isSimulate bool) (solana.Signature, error) {
	tx, err := signTransaction(blockhash, signers, insts...)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if isSimulate {
		res, err := c.RpcClient.SimulateTransaction(ctx, tx)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("failed to simulate transaction: %w", err)
		}
		if res != nil && res.Value != nil {
			if res.Value.Err != nil {
				return solana.Signature{}, fmt.Errorf("simulation failed: %v", res.Value.Err)
			}
			for _, line := range res.Value.Logs {
				c.logger.Debug("simulation log", zap.String("line", line))
			}
		}
		return solana.Signature{}, nil
	}

	sig, err := c.RpcClient.SendTransactionWithOpts(
		ctx, tx,
		rpc.TransactionOpts{
			SkipPreflight:       true,
			PreflightCommitment: rpc.CommitmentProcessed,
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Info("transaction sent", zap.Stringer("signature", sig))
	return sig, nil
}

// SendInstructions fetches a recent blockhash, then sends or simulates insts.
// Sent transactions are awaited when a WebSocket connection is available.
func (c *Client) SendInstructions(ctx context.Context, signers []solana.PrivateKey, insts []solana.Instruction, isSimulate bool) (solana.Signature, error) {
	recent, err := c.RpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	sig, err := c.SendTx(ctx, recent.Value.Blockhash, signers, insts, isSimulate)
	if err != nil || isSimulate {
		return sig, err
	}
	if err := c.WaitConfirmed(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// WaitConfirmed blocks until sig reaches confirmed commitment. Without a
// WebSocket connection it returns immediately.
func (c *Client) WaitConfirmed(ctx context.Context, sig solana.Signature) error {
	if c.WsClient == nil {
		return nil
	}
	sub, err := c.WsClient.SignatureSubscribe(sig, rpc.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", sig, err)
	}
	defer sub.Unsubscribe()

	res, err := sub.Recv(ctx)
	if err != nil {
		return fmt.Errorf("failed to await %s: %w", sig, err)
	}
	if res.Value.Err != nil {
		return fmt.Errorf("transaction %s failed: %v", sig, res.Value.Err)
	}
	c.logger.Info("transaction confirmed", zap.Stringer("signature", sig))
	return nil
}
