package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lequangminh/ema-futures-bot/internal/config"
	"github.com/lequangminh/ema-futures-bot/internal/control"
	"github.com/lequangminh/ema-futures-bot/internal/engine"
	"github.com/lequangminh/ema-futures-bot/internal/exchange"
	"github.com/lequangminh/ema-futures-bot/internal/exchange/bybit"
	"github.com/lequangminh/ema-futures-bot/internal/execution"
	"github.com/lequangminh/ema-futures-bot/internal/logger"
	"github.com/lequangminh/ema-futures-bot/internal/monitoring"
	"github.com/lequangminh/ema-futures-bot/internal/notifications"
	"github.com/lequangminh/ema-futures-bot/internal/portfolio"
	"github.com/lequangminh/ema-futures-bot/internal/risk"
	"github.com/lequangminh/ema-futures-bot/internal/storage"
	"github.com/lequangminh/ema-futures-bot/internal/strategy"
)

func main() {
	var (
		configFile = flag.String("config", "configs/paper.json", "Path to the engine config file")
		envFile    = flag.String("env", ".env", "Environment file with exchange credentials")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: could not load %s (%v), relying on environment variables", *envFile, err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Engine failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	fileLogger, err := logger.New(cfg.Logging.Dir)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer fileLogger.Close()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	interlocks, err := control.NewFileInterlocks(cfg.Control.Dir)
	if err != nil {
		return fmt.Errorf("failed to set up interlocks: %w", err)
	}

	client, err := buildExchangeClient(cfg)
	if err != nil {
		return err
	}

	riskManager := risk.NewManager(risk.Limits{
		DailyLossLimitPct:    cfg.DailyLossLimitPct,
		MaxConsecutiveLosses: cfg.MaxConsecutiveLosses,
		Cooldown:             cfg.Cooldown(),
	}, cfg.InitialEquity)

	executor := execution.NewExecutor(cfg.Mode, cfg.SlippagePct, client, store, fileLogger)

	var notifier notifications.Notifier
	if cfg.Notifications != nil && cfg.Notifications.Enabled {
		notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChat)
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, monitoring.NewServeMux()); err != nil {
				fileLogger.Error("Metrics server stopped: %v", err)
			}
		}()
		fileLogger.Info("Metrics endpoint listening on %s", cfg.Metrics.ListenAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, engine.Deps{
		Exchange:   client,
		Strategy:   strategy.NewEMACross(cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod),
		Risk:       riskManager,
		Portfolio:  portfolio.New(cfg.InitialEquity),
		Executor:   executor,
		Store:      store,
		Interlocks: interlocks,
		Logger:     fileLogger,
		Notifier:   notifier,
	})

	return eng.Run(ctx)
}

// buildExchangeClient constructs the exchange client for the configured
// venue and mode. Paper mode only polls public market data, so missing
// credentials are fine there; testnet and live need signed requests.
func buildExchangeClient(cfg *config.Config) (exchange.Client, error) {
	switch cfg.Exchange.Name {
	case "bybit":
		bybitCfg := cfg.Exchange.Bybit
		if bybitCfg == nil {
			bybitCfg = &exchange.BybitConfig{}
		}
		bybitCfg.APIKey = os.Getenv("BYBIT_API_KEY")
		bybitCfg.APISecret = os.Getenv("BYBIT_API_SECRET")
		// Testnet mode runs against Bybit's demo trading environment:
		// paper-money fills on mainnet market data.
		bybitCfg.Demo = cfg.Mode == config.ModeTestnet

		if cfg.Mode != config.ModePaper && (bybitCfg.APIKey == "" || bybitCfg.APISecret == "") {
			return nil, fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET are required in %s mode", cfg.Mode)
		}

		return bybit.NewClient(bybitCfg), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %q", cfg.Exchange.Name)
	}
}
