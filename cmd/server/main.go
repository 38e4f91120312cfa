package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stopguard/internal/api"
	"stopguard/internal/bot"
	"stopguard/internal/config"
	"stopguard/internal/exchange"
	"stopguard/internal/repository"
	"stopguard/internal/service"
	"stopguard/internal/telegram"
	"stopguard/internal/websocket"
	"stopguard/pkg/utils"
)

func main() {
	// .env опционален: в контейнере конфигурация приходит из окружения
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		utils.L().Fatal("failed to load config", utils.Err(err))
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logger.Sync()

	logger.Info("starting stopguard",
		utils.String("exchange", cfg.Exchange.Name),
		utils.String("quote_currency", cfg.Exchange.QuoteCurrency),
		utils.String("db", cfg.Database.DSNWithoutPassword()))

	// База данных
	db, err := repository.NewPostgresDB(repository.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()

	// Репозитории
	flagRepo := repository.NewFlagRepository(db)
	stopLossRepo := repository.NewStopLossRepository(db)
	signalsConfigRepo := repository.NewSignalsConfigRepository(db)
	marketSignalRepo := repository.NewMarketSignalRepository(db)

	// Сервисы
	configService := service.NewConfigService(
		signalsConfigRepo,
		stopLossRepo,
		flagRepo,
		cfg.Exchange.TakerFee,
		cfg.Exchange.QuoteCurrency,
		cfg.Bot.DefaultStopLossPercent,
	)

	var sender service.MessageSender
	if cfg.Telegram.Enabled {
		tgSender, err := telegram.NewSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Fatal("failed to init telegram sender", utils.Err(err))
		}
		sender = tgSender
	}
	notifier := service.NewNotificationService(sender, logger)

	// Биржевой шлюз
	ex, err := exchange.NewExchange(cfg.Exchange.Name, cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
	if err != nil {
		logger.Fatal("failed to init exchange", utils.Err(err))
	}

	// WebSocket hub для real-time обновлений дашборда
	hub := websocket.NewHub(cfg.Server.AllowedOrigins, logger)
	hubDone := make(chan struct{})
	go hub.Run(hubDone)

	// Ядро guard-задач
	engine := bot.NewEngine(
		bot.Config{
			TrailingStopInterval:     cfg.Bot.TrailingStopInterval,
			LimitSellGuardInterval:   cfg.Bot.LimitSellGuardInterval,
			SignalEvaluationInterval: cfg.Bot.SignalEvaluationInterval,
			SignalRetentionDays:      cfg.Bot.SignalRetentionDays,
		},
		ex,
		configService,
		configService,
		notifier,
		marketSignalRepo,
		hub,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	// HTTP API
	router := api.SetupRoutes(&api.Dependencies{
		ConfigStore:    configService,
		GuardMetrics:   engine,
		SignalHistory:  marketSignalRepo,
		WSHandler:      hub,
		Logger:         logger,
		APITokenHash:   cfg.Security.APITokenHash,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", utils.Err(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Останавливаем задачи до HTTP: идущий guard-проход дорабатывает,
	// новые не стартуют
	cancel()
	engine.Stop()
	close(hubDone)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", utils.Err(err))
	}

	logger.Info("stopped")
}
