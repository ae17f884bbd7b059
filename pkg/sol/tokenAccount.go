package sol

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// SelectOrCreateSPLTokenAccount returns the owner's token account for
// tokenMint, creating the associated token account when none exists.
func (t *Client) SelectOrCreateSPLTokenAccount(ctx context.Context, privateKey solana.PrivateKey, tokenMint solana.PublicKey) (solana.PublicKey, error) {
	user := privateKey.PublicKey()
	ataAddress, _, err := solana.FindAssociatedTokenAddress(user, tokenMint)
	if err != nil {
		t.logger.Error("FindAssociatedTokenAddress failed", zap.Error(err))
		return solana.PublicKey{}, err
	}

	acc, err := t.RpcClient.GetTokenAccountsByOwner(ctx, user,
		&rpc.GetTokenAccountsConfig{Mint: tokenMint.ToPointer()},
		&rpc.GetTokenAccountsOpts{
			Encoding: "jsonParsed",
		},
	)
	if err != nil {
		t.logger.Error("GetTokenAccountsByOwner failed", zap.Stringer("mint", tokenMint), zap.Error(err))
		return solana.PublicKey{}, err
	}
	// pool swaps only accept the associated account
	for _, v := range acc.Value {
		if v.Pubkey.Equals(ataAddress) {
			return ataAddress, nil
		}
	}

	createAtaInst, err := associatedtokenaccount.NewCreateInstruction(
		user,
		user,
		tokenMint,
	).ValidateAndBuild()
	if err != nil {
		return solana.PublicKey{}, err
	}

	signers := []solana.PrivateKey{privateKey}
	if _, err := t.SendInstructions(ctx, signers, []solana.Instruction{createAtaInst}, false); err != nil {
		t.logger.Error("failed to create token account", zap.Stringer("ata", ataAddress), zap.Error(err))
		return solana.PublicKey{}, err
	}
	t.logger.Info("created token account", zap.Stringer("ata", ataAddress), zap.Stringer("mint", tokenMint))
	return ataAddress, nil
}

// TokenAccountInstructions returns the instruction creating the owner's
// associated token account for tokenMint, or nothing when it already exists.
// It lets a simulated swap include the account creation a first buy needs.
func (t *Client) TokenAccountInstructions(ctx context.Context, owner, tokenMint solana.PublicKey) ([]solana.Instruction, error) {
	ataAddress, _, err := solana.FindAssociatedTokenAddress(owner, tokenMint)
	if err != nil {
		return nil, err
	}
	_, err = t.RpcClient.GetAccountInfo(ctx, ataAddress)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, rpc.ErrNotFound) {
		t.logger.Error("GetAccountInfo failed", zap.Stringer("ata", ataAddress), zap.Error(err))
		return nil, err
	}
	createAtaInst, err := associatedtokenaccount.NewCreateInstruction(
		owner,
		owner,
		tokenMint,
	).ValidateAndBuild()
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{createAtaInst}, nil
}
