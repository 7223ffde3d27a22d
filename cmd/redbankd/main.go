package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"redbank/config"
	"redbank/core/state"
	"redbank/native/creditmanager"
	"redbank/native/incentives"
	"redbank/native/params"
	"redbank/native/redbank"
	"redbank/observability/logging"
	"redbank/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the service configuration file")
	flag.Parse()

	logger := logging.Setup("redbankd", os.Getenv("REDBANK_ENV"))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "redbank"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	registry := params.NewRegistry(cfg.Owner, cfg.EmergencyOwner)
	registry.SetState(manager)

	ledger := redbank.NewEngine(cfg.ModuleAddress, cfg.FeeCollector, cfg.Owner)
	ledger.SetState(manager)
	ledger.SetParamsSource(registry)
	ledger.SetLogger(logger)
	ledger.SetTargetHealthFactor(cfg.TargetHF())

	rewards := incentives.NewEngine(cfg.Incentives, cfg.Owner)
	rewards.SetState(manager)
	rewards.SetCollateralSource(ledger)
	rewards.SetLogger(logger)
	ledger.SetCollateralHook(rewards)

	accounts := creditmanager.NewEngine(cfg.CreditManager, cfg.FeeCollector)
	accounts.SetState(manager)
	accounts.SetMoneyMarket(ledger)
	accounts.SetParamsSource(registry)
	accounts.SetLogger(logger)
	accounts.SetTargetHealthFactor(cfg.TargetHF())

	// The ledger grows interest against wall-clock seconds between requests.
	clockStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-clockStop:
				return
			case now := <-ticker.C:
				ledger.SetBlockTime(uint64(now.Unix()))
				accounts.SetBlockTime(uint64(now.Unix()))
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/markets", func(w http.ResponseWriter, _ *http.Request) {
		markets, err := ledger.Markets("", 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type marketView struct {
			Denom          string `json:"denom"`
			BorrowRate     string `json:"borrow_rate"`
			LiquidityRate  string `json:"liquidity_rate"`
			BorrowIndex    string `json:"borrow_index"`
			LiquidityIndex string `json:"liquidity_index"`
		}
		out := make([]marketView, 0, len(markets))
		for _, m := range markets {
			out = append(out, marketView{
				Denom:          m.Denom,
				BorrowRate:     m.BorrowRate.String(),
				LiquidityRate:  m.LiquidityRate.String(),
				BorrowIndex:    m.BorrowIndex.String(),
				LiquidityIndex: m.LiquidityIndex.String(),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/v1/params/assets", func(w http.ResponseWriter, _ *http.Request) {
		type assetView struct {
			Denom          string `json:"denom"`
			MaxLoanToValue string `json:"max_loan_to_value"`
			Threshold      string `json:"liquidation_threshold"`
			Whitelisted    bool   `json:"whitelisted"`
		}
		var out []assetView
		err := registry.AllAssetParams("", func(p params.AssetParams) bool {
			out = append(out, assetView{
				Denom:          p.Denom,
				MaxLoanToValue: p.MaxLoanToValue.String(),
				Threshold:      p.LiquidationThreshold.String(),
				Whitelisted:    p.Whitelisted,
			})
			return true
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "address", cfg.ListenAddress)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("serve", "error", err)
		}
	}
	close(clockStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
