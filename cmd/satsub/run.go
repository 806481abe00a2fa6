package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/satsub/satsub/internal/config"
	"github.com/satsub/satsub/internal/core/application"
	"github.com/satsub/satsub/internal/core/domain"
	"github.com/satsub/satsub/internal/interface/web/types"
	"github.com/satsub/satsub/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		invoice    string
		message    string
		bidMsat    uint64
		maxBidRate uint64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Place a broadcast order and pay it through a submarine swap",
		Long: "Place a broadcast order for a message, or pay an existing invoice, and " +
			"wait until the swap server settles it. A random message is sent when " +
			"neither --message nor --invoice is given.",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			order, err := runOrder(ctx, application.CreateOrderRequest{
				Message:    []byte(message),
				Invoice:    invoice,
				BidMsat:    bidMsat,
				MaxBidRate: maxBidRate,
			})
			if order != nil {
				// nolint:all
				printJSON(types.FromOrder(*order))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&invoice, "invoice", "", "pay this invoice instead of bidding")
	cmd.Flags().StringVar(&message, "message", "", "message to broadcast")
	cmd.Flags().Uint64Var(&bidMsat, "bid", 0, "first bid in msat")
	cmd.Flags().Uint64Var(&maxBidRate, "max-bid-rate", 0, "max bid in msat per byte")
	cmd.MarkFlagsMutuallyExclusive("invoice", "message")

	return cmd
}

func messageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message",
		Short: "Print a random message",
		RunE: func(c *cobra.Command, args []string) error {
			message, err := utils.RandomMessage()
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}
}

func runOrder(
	ctx context.Context, req application.CreateOrderRequest,
) (*domain.Order, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.SetLevel(log.Level(cfg.LogLevel))

	repoManager, err := cfg.RepoManager()
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	defer repoManager.Close()

	broadcastSvc, err := cfg.BroadcastService()
	if err != nil {
		return nil, err
	}
	swapSvc, err := cfg.SwapService()
	if err != nil {
		return nil, err
	}
	walletSvc, err := cfg.WalletService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet: %w", err)
	}
	defer walletSvc.Close()

	buildInfo := application.BuildInfo{Version: version, Commit: commit, Date: date}
	appSvc, err := application.NewService(
		buildInfo, cfg.AppConfig(), repoManager, broadcastSvc, swapSvc, walletSvc, nil, nil,
	)
	if err != nil {
		return nil, err
	}

	order, err := appSvc.CreateOrder(ctx, req)
	if err != nil {
		return order, err
	}
	return appSvc.RunOrder(ctx, order.Id)
}

func printJSON(v any) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(buf))
	return err
}
