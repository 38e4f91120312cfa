// Package integration contains integration tests for the sell-order guard bot.
//
// These tests verify the correct interaction between components:
// - API integration tests: full HTTP request cycle through all layers
// - WebSocket tests: connection, broadcast messaging
// - Database tests: schema, repository round-trips, concurrent access
//
// Integration tests use build tag "integration" to separate from unit tests.
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"stopguard/internal/api"
	"stopguard/internal/repository"
	"stopguard/internal/service"
	"stopguard/internal/websocket"
	"stopguard/pkg/crypto"
	"stopguard/pkg/utils"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

// testAPIToken - bearer-токен, которым тесты ходят в /api/v1
const testAPIToken = "integration-test-token"

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing
type TestServer struct {
	DB      *sql.DB
	Router  *mux.Router
	Server  *httptest.Server
	Hub     *websocket.Hub
	Repos   *TestRepositories
	Config  *service.ConfigService
	Cleanup func()
}

// TestRepositories contains all repository instances for testing
type TestRepositories struct {
	Flag          *repository.FlagRepository
	StopLoss      *repository.StopLossRepository
	SignalsConfig *repository.SignalsConfigRepository
	MarketSignal  *repository.MarketSignalRepository
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "stopguard_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func testLogger() *utils.Logger {
	return utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})
}

// authedRequest builds an HTTP request with the test bearer token set
func authedRequest(t *testing.T, method, url string, body io.Reader) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIToken)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	config := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.DBHost, config.DBPort, config.DBUser, config.DBPassword, config.DBName, config.DBSSLMode,
	)

	db, err := sql.Open(config.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server with all components
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		t.Skipf("Skipping integration test: cannot initialize tables: %v", err)
		return nil
	}

	logger := testLogger()

	hub := websocket.NewHub(nil, logger)
	hubDone := make(chan struct{})
	go hub.Run(hubDone)

	repos := &TestRepositories{
		Flag:          repository.NewFlagRepository(db),
		StopLoss:      repository.NewStopLossRepository(db),
		SignalsConfig: repository.NewSignalsConfigRepository(db),
		MarketSignal:  repository.NewMarketSignalRepository(db),
	}

	configSvc := service.NewConfigService(
		repos.SignalsConfig,
		repos.StopLoss,
		repos.Flag,
		0.0026,
		"USDT",
		2.25,
	)

	tokenHash, err := crypto.HashToken(testAPIToken)
	if err != nil {
		t.Fatalf("failed to hash test token: %v", err)
	}

	router := api.SetupRoutes(&api.Dependencies{
		ConfigStore:   configSvc,
		SignalHistory: repos.MarketSignal,
		WSHandler:     hub,
		Logger:        logger,
		APITokenHash:  tokenHash,
	})

	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		close(hubDone)
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:      db,
		Router:  router,
		Server:  server,
		Hub:     hub,
		Repos:   repos,
		Config:  configSvc,
		Cleanup: cleanup,
	}
}

// initTestTables creates or truncates tables for testing
func initTestTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS global_flag (
			name VARCHAR(50) PRIMARY KEY,
			value BOOLEAN NOT NULL,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS stop_loss_percent (
			symbol VARCHAR(20) PRIMARY KEY,
			value DECIMAL(6, 2) NOT NULL,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS buy_sell_signals_config (
			symbol VARCHAR(20) PRIMARY KEY,
			ema_short_period INT NOT NULL,
			ema_mid_period INT NOT NULL,
			ema_long_period INT NOT NULL,
			stop_loss_atr_multiplier DECIMAL(10, 4) NOT NULL,
			take_profit_atr_multiplier DECIMAL(10, 4) NOT NULL,
			enable_adx_filter BOOLEAN DEFAULT false,
			adx_threshold DECIMAL(10, 4) DEFAULT 0,
			enable_buy_volume_filter BOOLEAN DEFAULT false,
			buy_volume_threshold DECIMAL(10, 4) DEFAULT 0,
			enable_sell_volume_filter BOOLEAN DEFAULT false,
			sell_volume_threshold DECIMAL(10, 4) DEFAULT 0,
			enable_exit_on_sell_signal BOOLEAN DEFAULT false,
			enable_exit_on_divergence BOOLEAN DEFAULT false,
			enable_exit_on_take_profit BOOLEAN DEFAULT false,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS market_signal (
			id SERIAL PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			signal_type VARCHAR(30) NOT NULL,
			rsi_state VARCHAR(30) NOT NULL DEFAULT '',
			atr DECIMAL(20, 8) NOT NULL DEFAULT 0,
			closing_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			ema_long_price DECIMAL(20, 8) NOT NULL DEFAULT 0
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// cleanupTestTables truncates all test tables
func cleanupTestTables(db *sql.DB) {
	tables := []string{
		"market_signal",
		"buy_sell_signals_config",
		"stop_loss_percent",
		"global_flag",
	}

	for _, table := range tables {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// TruncateTable truncates a specific table for testing
func TruncateTable(db *sql.DB, tableName string) error {
	_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tableName))
	return err
}
