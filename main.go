package main

import (
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/gamerisk/config"
	"github.com/wfunc/gamerisk/logger"
	"github.com/wfunc/gamerisk/monitor"
	"github.com/wfunc/gamerisk/persistence"
	"github.com/wfunc/gamerisk/reports"
	"github.com/wfunc/gamerisk/risk"
	"github.com/wfunc/gamerisk/segment"
	"github.com/wfunc/gamerisk/server"
	"github.com/wfunc/gamerisk/services"
)

// newStore 按配置选择存储后端
func newStore(cfg *config.Config) (persistence.RecordStore, error) {
	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case "gorm":
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "postgres":
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return persistence.NewMemoryStore(), nil
	}
}

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load config: %v", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to open record store: %v", err)
	}

	segmenter, err := segment.New(cfg.Engine.Segments)
	if err != nil {
		logger.Log.Fatalf("Failed to build segmenter: %v", err)
	}

	rules := cfg.Rules
	if len(rules) == 0 {
		rules = risk.DefaultRules()
	}

	svc, err := services.NewAnalyticsService(store, segmenter, rules)
	if err != nil {
		logger.Log.Fatalf("Failed to build analytics service: %v", err)
	}

	// SQL 后端才有报表跑批
	if sqlStore, ok := store.(interface{ SQLDB() (*sql.DB, error) }); ok {
		if db, err := sqlStore.SQLDB(); err == nil {
			svc.SetReportRunner(reports.NewRunner(db))
		}
	}

	mon := monitor.NewMonitor("gamerisk")
	mon.StartServer(cfg.Server.MonitorAddress)

	riskServer := server.NewRiskServer(cfg, svc, mon)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Log.Infof("Received signal %s, shutting down", sig)
		riskServer.Shutdown()
		store.Close()
		logger.Sync()
		os.Exit(0)
	}()

	logger.Log.Infof("Starting risk feed server on %s", cfg.Server.HTTPAddress)
	if err := riskServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
