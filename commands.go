package main

import (
	"fmt"
	"strconv"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Solana-ZH/bondswap/pkg/pool/bancor"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

const defaultSlippageBps = 100

func newDeriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "derive <mint>",
		Short: "Print the pool and vault addresses of a market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			mint, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid mint: %w", err)
			}
			pool, bump, err := bancor.DerivePoolAddress(a.programID, mint)
			if err != nil {
				return err
			}
			vault, bumpSol, err := bancor.DeriveVaultAddress(a.programID, pool)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pool:  %s (bump %d)\n", pool, bump)
			fmt.Fprintf(out, "vault: %s (bump %d)\n", vault, bumpSol)
			return nil
		},
	}
}

func newQuoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote <mint> <buy|sell> <amount>",
		Short: "Quote a swap against the live market",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, stop := signalContext()
			defer stop()

			mint, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid mint: %w", err)
			}
			inputMint, err := inputMintFor(args[1], mint)
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}

			c, err := a.client(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			pool, err := a.protocol(c).FetchPoolByMint(ctx, mint)
			if err != nil {
				return err
			}
			if pool == nil {
				return fmt.Errorf("no market for mint %s", mint)
			}
			out, err := pool.QuoteLocal(inputMint, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s (supply %d, vault %d, fee %d)\n",
				args[1], amount, out, pool.Supply, pool.VaultLamports, pool.State.Fee)
			return nil
		},
	}
}

func newSwapCmd(side string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   side + " <mint> <amount>",
		Short: fmt.Sprintf("Send a %s instruction with a slippage bound", side),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, stop := signalContext()
			defer stop()

			slippageBps, _ := cmd.Flags().GetUint64("slippage-bps")
			if slippageBps > 10000 {
				return fmt.Errorf("slippage %d bps exceeds 100%%", slippageBps)
			}
			mint, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid mint: %w", err)
			}
			inputMint, err := inputMintFor(side, mint)
			if err != nil {
				return err
			}
			amountIn, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			key, err := a.wallet()
			if err != nil {
				return err
			}

			c, err := a.client(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			pool, err := a.protocol(c).FetchPoolByMint(ctx, mint)
			if err != nil {
				return err
			}
			if pool == nil {
				return fmt.Errorf("no market for mint %s", mint)
			}
			amountOut, err := pool.QuoteLocal(inputMint, amountIn)
			if err != nil {
				return err
			}
			minAmountOut := amountOut.Mul(math.NewIntFromUint64(10000 - slippageBps)).Quo(math.NewInt(10000))
			a.logger.Info("quoted",
				zap.String("side", side),
				zap.Stringer("amount_in", amountIn),
				zap.Stringer("expected_out", amountOut),
				zap.Stringer("minimum_out", minAmountOut),
			)

			var insts []solana.Instruction
			if a.cfg.Simulate {
				// the simulated batch creates a missing token account itself
				if insts, err = c.TokenAccountInstructions(ctx, key.PublicKey(), mint); err != nil {
					return err
				}
			} else if _, err := c.SelectOrCreateSPLTokenAccount(ctx, key, mint); err != nil {
				return err
			}
			swap, err := pool.BuildSwapInstructions(ctx, c.RpcClient, key.PublicKey(), inputMint, amountIn, minAmountOut)
			if err != nil {
				return err
			}
			insts = append(insts, swap...)
			sig, err := c.SendInstructions(ctx, []solana.PrivateKey{key}, insts, a.cfg.Simulate)
			if err != nil {
				return err
			}
			report(cmd, a.cfg.Simulate, sig)
			return nil
		},
	}
	cmd.Flags().Uint64("slippage-bps", defaultSlippageBps, "accepted slippage in basis points")
	return cmd
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new token and its market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, stop := signalContext()
			defer stop()

			key, err := a.wallet()
			if err != nil {
				return err
			}
			collector := key.PublicKey()
			if s, _ := cmd.Flags().GetString("fee-collector"); s != "" {
				if collector, err = solana.PublicKeyFromBase58(s); err != nil {
					return fmt.Errorf("invalid fee collector: %w", err)
				}
			}
			mintKey, err := solana.NewRandomPrivateKey()
			if err != nil {
				return err
			}

			c, err := a.client(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			// pool fees paid into an empty collector would leave it below the rent minimum
			if _, err := c.FundRentExempt(ctx, key, collector, 0, a.cfg.Simulate); err != nil {
				return err
			}
			inst, err := bancor.NewInitializeInstruction(a.programID, bancor.InitializeAccounts{
				Payer:        key.PublicKey(),
				Mint:         mintKey.PublicKey(),
				FeeCollector: collector,
			})
			if err != nil {
				return err
			}
			sig, err := c.SendInstructions(ctx, []solana.PrivateKey{key, mintKey}, []solana.Instruction{inst}, a.cfg.Simulate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mint: %s\n", mintKey.PublicKey())
			report(cmd, a.cfg.Simulate, sig)
			return nil
		},
	}
	cmd.Flags().String("fee-collector", "", "pool fee collector, defaults to the wallet")
	return cmd
}

func newChangeFeeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change-fee <mint> <fee>",
		Short: "Change the pool fee and optionally hand over fee collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, stop := signalContext()
			defer stop()

			mint, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("invalid mint: %w", err)
			}
			fee, err := strconv.ParseUint(args[1], 10, 16)
			if err != nil || uint16(fee) > bancor.MaxFee {
				return fmt.Errorf("fee must be between 0 and %d", bancor.MaxFee)
			}
			key, err := a.wallet()
			if err != nil {
				return err
			}
			next := key.PublicKey()
			if s, _ := cmd.Flags().GetString("new-fee-collector"); s != "" {
				if next, err = solana.PublicKeyFromBase58(s); err != nil {
					return fmt.Errorf("invalid new fee collector: %w", err)
				}
			}

			c, err := a.client(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			inst, err := bancor.NewChangeFeeInstruction(a.programID, bancor.ChangeFeeAccounts{
				FeeCollector:    key.PublicKey(),
				NewFeeCollector: next,
				Mint:            mint,
			}, uint16(fee))
			if err != nil {
				return err
			}
			sig, err := c.SendInstructions(ctx, []solana.PrivateKey{key}, []solana.Instruction{inst}, a.cfg.Simulate)
			if err != nil {
				return err
			}
			report(cmd, a.cfg.Simulate, sig)
			return nil
		},
	}
	cmd.Flags().String("new-fee-collector", "", "collector taking over, defaults to the wallet")
	return cmd
}

// inputMintFor maps a trade side to the mint the trader pays with.
func inputMintFor(side string, mint solana.PublicKey) (string, error) {
	switch side {
	case "buy":
		return sol.NativeSOL.String(), nil
	case "sell":
		return mint.String(), nil
	}
	return "", fmt.Errorf("side must be buy or sell, got %q", side)
}

func parseAmount(s string) (math.Int, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return math.Int{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return math.NewIntFromUint64(v), nil
}

func report(cmd *cobra.Command, simulated bool, sig solana.Signature) {
	if simulated {
		fmt.Fprintln(cmd.OutOrStdout(), "simulation succeeded")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "transaction: https://solscan.io/tx/%s\n", sig)
}
