package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Solana-ZH/bondswap/pkg/ledger"
	"github.com/Solana-ZH/bondswap/pkg/pool/bancor"
	"github.com/Solana-ZH/bondswap/pkg/simulate"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run initialize, buy, sell and change-fee on a local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			ctx, stop := signalContext()
			defer stop()

			buyAmount, _ := cmd.Flags().GetUint64("buy-amount")
			fee, _ := cmd.Flags().GetUint16("fee")

			store, err := ledger.OpenPebbleStore(a.cfg.LedgerPath, a.cfg.CacheSize)
			if err != nil {
				return err
			}
			l := ledger.New(store, ledger.WithLogger(a.logger))
			defer l.Close()

			reg := prometheus.NewRegistry()
			proc := bancor.NewProcessor(bancor.Config{
				ProgramID:            a.programID,
				ProviderFeeCollector: a.providerFeeCollector,
				Logger:               a.logger,
				Metrics:              bancor.NewMetrics(reg),
			})
			l.Register(proc)

			report, err := simulate.Run(ctx, l, proc, simulate.Options{
				BuyAmount: buyAmount,
				Fee:       fee,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mint:              %s\n", report.Mint)
			fmt.Fprintf(out, "pool:              %s\n", report.Pool)
			fmt.Fprintf(out, "vault:             %s\n", report.Vault)
			fmt.Fprintf(out, "fee collector:     %s\n", report.Collector)
			fmt.Fprintf(out, "tokens bought:     %d\n", report.TokensBought)
			fmt.Fprintf(out, "lamports returned: %d\n", report.LamportsReturned)
			fmt.Fprintf(out, "supply:            %d\n", report.Supply)
			fmt.Fprintf(out, "vault lamports:    %d\n", report.VaultLamports)
			fmt.Fprintf(out, "collector fees:    %d\n", report.CollectorFees)
			fmt.Fprintf(out, "provider fees:     %d\n", report.ProviderFees)
			fmt.Fprintf(out, "fee:               %d\n", report.Fee)

			families, err := reg.Gather()
			if err != nil {
				return fmt.Errorf("gather metrics: %w", err)
			}
			for _, mf := range families {
				for _, m := range mf.GetMetric() {
					fields := []zap.Field{zap.Float64("value", m.GetCounter().GetValue())}
					for _, lp := range m.GetLabel() {
						fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
					}
					a.logger.Debug(mf.GetName(), fields...)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("ledger-path", "./data/ledger", "pebble directory of the local ledger")
	cmd.Flags().Int("cache-size", ledger.DefaultCacheSize, "account cache entries")
	cmd.Flags().Uint64("buy-amount", simulate.DefaultBuyAmount, "lamports spent on the buy")
	cmd.Flags().Uint16("fee", bancor.DefaultFee, "pool fee set by change-fee")
	return cmd
}
