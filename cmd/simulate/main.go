package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"propTradeSim/internal/adapters/logger"
	"propTradeSim/internal/app"
	"propTradeSim/internal/domain"
	"propTradeSim/internal/execution"
	"propTradeSim/internal/marketdata"
	"propTradeSim/internal/position"
	"propTradeSim/internal/risk"
	"propTradeSim/internal/utils"
)

// simulate runs a headless evaluation session: it opens one account,
// alternates between entering and flattening a position on a fixed
// cadence, and prints the resulting risk state and trade statistics.
// Useful for eyeballing rule behavior under different seeds and plans.
func main() {
	var (
		cycles   = flag.Int("cycles", 2000, "number of tick cycles to run")
		symbol   = flag.String("symbol", "MES", "contract symbol to trade")
		quantity = flag.Int64("qty", 2, "contracts per entry")
		holdFor  = flag.Int("hold", 20, "cycles to hold before flattening")
		seed     = flag.Int64("seed", 42, "price walk seed")
		balance  = flag.Float64("balance", 50000, "initial account balance")
		drawdown = flag.Float64("drawdown", 2500, "trailing drawdown allowance")
		target   = flag.Float64("target", 3000, "profit target")
		csvOut   = flag.String("csv", "", "optional path to export candles as CSV")
		logLevel = flag.String("log", "WARN", "log level")
	)
	flag.Parse()

	appLogger := logger.NewStdLogger(logger.ParseLevel(*logLevel))
	ctx := context.Background()

	generator, err := marketdata.NewGenerator(marketdata.Config{
		Contracts:      marketdata.DefaultContracts(),
		CandleInterval: time.Minute,
		Seed:           *seed,
		Logger:         appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	riskEngine, err := risk.NewEngine(risk.Config{
		Plan: domain.RiskPlan{
			InitialBalance:    *balance,
			MaxDrawdown:       *drawdown,
			DailyLossLimitPct: 0.02,
			ProfitTarget:      *target,
			MinTradingDays:    5,
		},
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	execEngine, err := execution.NewEngine(execution.Config{
		Prices: generator,
		Gate:   riskEngine,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	aggregator, err := position.NewAggregator(generator, appLogger)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	service, err := app.NewService(app.Config{
		Logger:    appLogger,
		Market:    generator,
		Engine:    execEngine,
		Positions: aggregator,
		Risk:      riskEngine,
	})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	const accountID = "sim-account"
	if _, err := service.OpenAccount(ctx, accountID); err != nil {
		log.Fatalf("FATAL: failed to open account: %v", err)
	}

	inPosition := false
	heldCycles := 0
	for i := 0; i < *cycles; i++ {
		acct, err := service.Account(accountID)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		if acct.Status.IsTerminal() {
			fmt.Printf("account reached terminal status %q after %d cycles\n", acct.Status, i)
			break
		}

		if !inPosition && !acct.DailyLossLimitHit {
			_, validation, err := service.SubmitOrder(ctx, domain.OrderRequest{
				AccountID: accountID,
				Symbol:    *symbol,
				Type:      domain.Market,
				Side:      domain.Buy,
				Quantity:  *quantity,
			})
			if err != nil {
				log.Fatalf("FATAL: submit failed: %v", err)
			}
			if validation.Valid {
				inPosition = true
				heldCycles = 0
			}
		} else if inPosition {
			heldCycles++
			if heldCycles >= *holdFor {
				if _, _, err := service.ClosePosition(ctx, accountID, *symbol); err != nil {
					log.Fatalf("FATAL: close failed: %v", err)
				}
				inPosition = false
			}
		}

		if _, err := service.TickSymbol(ctx, *symbol); err != nil {
			log.Fatalf("FATAL: tick failed: %v", err)
		}
	}

	acct, err := service.Account(accountID)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	metrics := service.Performance(accountID)

	fmt.Printf("phase=%s status=%s balance=%.2f hwm=%.2f drawdown=%.2f threshold=%.2f tradingDays=%d\n",
		acct.Phase, acct.Status, acct.CurrentBalance, acct.HighWaterMark,
		acct.CurrentDrawdown, acct.DrawdownThreshold, acct.TradingDays)
	fmt.Printf("trades=%d winRate=%.1f%% netProfit=%.2f profitFactor=%.2f expectancy=%.2f\n",
		metrics.TotalTrades, metrics.WinRate*100, metrics.NetProfit,
		metrics.ProfitFactor, metrics.Expectancy)

	if *csvOut != "" {
		candles, err := service.HistoricalCandles(*symbol, 500)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		if err := utils.WriteCandlesToCSV(candles, *csvOut); err != nil {
			log.Fatalf("FATAL: CSV export failed: %v", err)
		}
		fmt.Printf("exported %d candles to %s\n", len(candles), *csvOut)
	}
}
