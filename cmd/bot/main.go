package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"updownbot/internal/client/binance"
	"updownbot/internal/client/polymarket/clob"
	polymarketgamma "updownbot/internal/client/polymarket/gamma"
	"updownbot/internal/config"
	cronrunner "updownbot/internal/cron"
	"updownbot/internal/db"
	"updownbot/internal/executor"
	"updownbot/internal/gate"
	"updownbot/internal/handler"
	"updownbot/internal/logger"
	gormrepository "updownbot/internal/repository/gorm"
	"updownbot/internal/scheduler"
	"updownbot/internal/service"
	"updownbot/internal/settlement"
	"updownbot/internal/stoploss"
	"updownbot/internal/strategy"
)

func main() {
	cfgPath := os.Getenv("UD_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("UD_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	gammaHTTP := &http.Client{Timeout: cfg.Gamma.Timeout}
	gammaClient := polymarketgamma.NewClient(gammaHTTP, cfg.Gamma.BaseURL)
	clobHTTP := &http.Client{Timeout: cfg.ClobREST.Timeout}
	clobClient := clob.NewClient(clobHTTP, cfg.ClobREST.BaseURL, clob.Auth{
		APIKey:     cfg.ClobREST.APIKey,
		APISecret:  cfg.ClobREST.APISecret,
		Passphrase: cfg.ClobREST.Passphrase,
		Address:    cfg.ClobREST.Address,
	})
	if clobClient.ReadOnly() {
		logger.Warn("no clob credentials, orders will be simulated")
	}

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}
	assetsSvc := &service.AssetSettingsService{Repo: store}
	if err := assetsSvc.SeedFromConfig(context.Background(), cfg.Assets); err != nil {
		logger.Fatal("seed asset settings failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	spotFeed := &binance.SpotFeed{
		Logger:        logger,
		RESTEndpoint:  cfg.Binance.RESTEndpoint,
		StreamURL:     cfg.Binance.StreamURL,
		PollInterval:  cfg.Binance.PollInterval,
		WindowSeconds: cfg.Binance.WindowSeconds,
	}
	var spotSymbols []string
	for _, asset := range cfg.Assets {
		if asset.Enabled && asset.SpotSymbol != "" {
			spotSymbols = append(spotSymbols, asset.SpotSymbol)
		}
	}
	if len(spotSymbols) > 0 {
		go func() {
			if err := spotFeed.Run(ctx, spotSymbols); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("spot feed stopped", zap.Error(err))
			}
		}()
	}

	exec := &executor.Executor{
		Orders:          clobClient,
		Books:           clobClient,
		Repo:            store,
		Logger:          logger,
		Straddle:        cfg.Executor.Straddle,
		AggressionTicks: cfg.Executor.AggressionTicks,
	}

	volGate := &gate.VolatilityGate{
		VolatileHoursUTC: cfg.Volatility.VolatileHoursUTC,
		SwingWindow:      cfg.Volatility.SwingWindow,
		MaxSwingPct:      cfg.Volatility.MaxSwingPct,
		MaxSpreadBps:     int64(cfg.Volatility.MaxSpreadBps),
		DeepChecks:       cfg.Volatility.DeepChecks,
		Swings:           spotFeed,
		Logger:           logger,
	}

	sched := &scheduler.Scheduler{
		Assets:  assetsSvc,
		Markets: gammaClient,
		Books:   clobClient,
		Calc: &strategy.Calculator{
			WinRates: strategy.NewWinRateTable(cfg.Strategy.WinRateOverrides),
			Logger:   logger,
		},
		Window: gate.Window{
			StartMinute: cfg.Window.StartMinute,
			EndMinute:   cfg.Window.EndMinute,
		},
		VolGate:          volGate,
		Exec:             exec,
		Repo:             store,
		Switches:         settingsSvc,
		Logger:           logger,
		ScanInterval:     cfg.Scheduler.ScanInterval,
		MinFetchInterval: cfg.Scheduler.MinFetchInterval,
		Horizon:          time.Duration(cfg.Scheduler.HorizonMinutes) * time.Minute,
	}
	go sched.Run(ctx)

	monitor := &stoploss.Monitor{
		Repo:          store,
		Positions:     clobClient,
		Seller:        exec,
		Switches:      settingsSvc,
		Logger:        logger,
		Threshold:     decimal.NewFromFloat(cfg.StopLoss.Threshold),
		CheckInterval: cfg.StopLoss.CheckInterval,
	}
	go monitor.Run(ctx)

	claimer := &settlement.Claimer{
		Assets:       assetsSvc,
		Markets:      gammaClient,
		Repo:         store,
		Logger:       logger,
		SuccessDelay: cfg.AutoClaim.SuccessDelay,
		SkipDelay:    cfg.AutoClaim.SkipDelay,
	}
	if key := strings.TrimSpace(cfg.Settlement.PrivateKey); key != "" {
		chain := &settlement.ChainClient{
			Endpoints: cfg.Settlement.RPCEndpoints,
			Logger:    logger,
		}
		defer chain.Close()
		gasOracle := &settlement.GasOracle{
			StationURL: cfg.Settlement.GasStationURL,
			SpeedTier:  cfg.Settlement.GasSpeedTier,
			Logger:     logger,
		}
		redeemer, err := settlement.NewRedeemer(chain, gasOracle, key, cfg.Settlement.ReceiptTimeout, logger)
		if err != nil {
			logger.Fatal("init redeemer failed", zap.Error(err))
		}
		claimer.Redeemer = redeemer
		if err := redeemer.EnsureApprovals(ctx); err != nil {
			logger.Warn("approvals check failed (continuing)", zap.Error(err))
		}
	} else {
		logger.Warn("no settlement private key, auto-claim will only record skips")
	}

	cronRunner := cronrunner.New(logger, ctx)
	claimSpec := "@every " + cfg.AutoClaim.ScanInterval.String()
	_, err = cronRunner.Add(claimSpec, func(ctx context.Context) {
		if !settingsSvc.IsEnabled(ctx, service.FeatureAutoClaim, true) {
			return
		}
		result, err := claimer.ClaimAll(ctx, cfg.AutoClaim.LookbackDays)
		if err != nil {
			logger.Warn("auto-claim sweep failed", zap.Error(err))
			return
		}
		logger.Info("auto-claim sweep done",
			zap.Int("attempted", result.Attempted),
			zap.Int("success", result.Success),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	})
	if err != nil {
		logger.Warn("cron register auto-claim failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	assetsHandler := &handler.AssetsHandler{Repo: store, Assets: assetsSvc}
	assetsHandler.Register(engine)
	tradingHandler := &handler.TradingHandler{
		Scanner:           sched,
		StopLoss:          monitor,
		Claimer:           claimer,
		Settings:          settingsSvc,
		ClaimLookbackDays: cfg.AutoClaim.LookbackDays,
	}
	tradingHandler.Register(engine)
	recordsHandler := &handler.RecordsHandler{Repo: store}
	recordsHandler.Register(engine)
	settingsHandler := &handler.SystemSettingsHandler{Repo: store, Settings: settingsSvc}
	settingsHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
