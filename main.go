package main

import (
	"collabboard/internal/config"
	"collabboard/internal/database/db_client"
	"collabboard/internal/database/roomstore"
	"collabboard/internal/http/http_server"
	"collabboard/internal/http/roomhandler"
	"collabboard/internal/redis/redis_client"
	"collabboard/internal/redis/tokencache"
	"collabboard/internal/services/collab"
	"collabboard/internal/services/token"
	"collabboard/internal/session"
	"collabboard/internal/stats"
	"collabboard/internal/syncdb"
	"collabboard/internal/ws"
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var store roomstore.IRoomStore
	var mirror token.Mirror

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if l, err := cfg.NewLogger(); err != nil {
		Log.Warn("Failed to build configured logger, keeping development logger", zap.Error(err))
	} else {
		Log = l
		zap.ReplaceGlobals(Log)
	}
	defer Log.Sync()
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Durable storage
	var db *sql.DB
	driver := ""
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		driver = db_client.DriverPostgres
		db, err = db_client.OpenPostgres(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	case config.StorageSQLite:
		driver = db_client.DriverSQLite
		db, err = db_client.OpenSQLite(cfg.SqlitePath)
	}
	if err != nil {
		Log.Fatal("db-open", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	if db != nil {
		defer db.Close()
		if err := db_client.Migrate(ctx, db, driver); err != nil {
			Log.Fatal("db-migrate", zap.Error(err))
		}
		store = roomstore.New(db, driver)
	} else {
		store = roomstore.NewMemory()
		Log.Warn("in-memory storage: room content is lost on exit")
	}

	// 4. Optional redis mirror of the token map
	if cfg.RedisEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		mirror = tokencache.NewRedisMirror(redisClient)
		Log.Debug("Redis token mirror enabled")
	}

	// 5. Token store, warmed from storage after legacy rows get their token
	tokenService, err := token.NewTokenService(store, mirror, cfg.TokenLength)
	if err != nil {
		Log.Fatal("token-service", zap.Error(err))
	}
	if db != nil {
		if _, err := db_client.RepairTokens(ctx, db, driver, tokenService.Generate); err != nil {
			Log.Fatal("token-repair", zap.Error(err))
		}
	}
	n, err := tokenService.Warm(ctx)
	if err != nil {
		Log.Fatal("token-warm", zap.Error(err))
	}
	Log.Info("room tokens loaded", zap.Int("rooms", n))

	// 6. Live state + background loops
	registry := session.NewRegistry()
	monitor := stats.NewMonitor(registry, cfg.StatsInterval, cfg.PreviewLength)
	monitor.Run(ctx)

	writer := syncdb.NewWriter(store, cfg.PersistQueueSize)
	writer.Run(ctx)

	collabService := collab.NewCollabService(tokenService, registry, store, writer, monitor, collab.Options{
		MaxContentLength: cfg.MaxContentLength,
		UpdateInterval:   cfg.UpdateInterval,
	})

	// 7. HTTP + WS server
	wsSrv := ws.NewWsServer(collabService, cfg.MaxContentLength)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, roomhandler.New(tokenService, monitor, store, cfg.PreviewLength))

	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}

	// 8. Let the write-behind queue drain before the db handle closes
	<-writer.Done()
	Log.Info("shutdown complete")
}
