package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"escrowd/config"
	"escrowd/core"
	"escrowd/crypto"
	"escrowd/observability/logging"
	"escrowd/rpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.toml", "path to the node configuration file")
	flag.Parse()

	logger := logging.Setup("escrowd", os.Getenv("ESCROWD_ENV"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	node := core.NewNode()
	if err := applyConfig(node, cfg); err != nil {
		log.Fatalf("apply config: %v", err)
	}

	server := rpc.NewServer(node, os.Getenv("ESCROWD_RPC_TOKEN"))
	srv := &http.Server{
		Addr:    cfg.RPCAddress,
		Handler: server.Handler(),
	}

	go func() {
		logger.Info("escrow node listening", "address", cfg.RPCAddress, "network", cfg.NetworkName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down escrow node")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "graceful shutdown failed: %v\n", err)
	}
}

func applyConfig(node *core.Node, cfg *config.Config) error {
	engine := node.EscrowEngine()
	threshold, err := cfg.MultiSigThresholdInt()
	if err != nil {
		return err
	}
	engine.SetMultiSigThreshold(threshold)
	engine.SetDefaultFeePct(cfg.DefaultArbitratorFeePct)
	engine.SetTTL(cfg.EscrowTTLSeconds)
	engine.SetMilestoneAutoRelease(cfg.MilestoneAutoRelease)

	for _, module := range cfg.PausedModules {
		node.SetPaused(module, true)
	}
	for _, acc := range cfg.Accounts {
		addr, err := crypto.ParseAddress(acc.Address)
		if err != nil {
			return fmt.Errorf("genesis account %q: %w", acc.Address, err)
		}
		balance, ok := new(big.Int).SetString(acc.Balance, 10)
		if !ok {
			return fmt.Errorf("genesis account %q: invalid balance %q", acc.Address, acc.Balance)
		}
		if err := node.Ledger().Credit(addr, balance); err != nil {
			return fmt.Errorf("genesis account %q: %w", acc.Address, err)
		}
	}
	return nil
}
