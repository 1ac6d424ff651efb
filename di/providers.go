package di

import (
	"context"
	"fmt"
	"huddle/contract"
	"huddle/errors"
	"huddle/grpc"
	"huddle/httpapi"
	"huddle/internal"
	"huddle/observability"
	"huddle/repositories"
	"huddle/repositories/mongostore"
	"huddle/repositories/sqlstore"
	"huddle/runtime"
	"huddle/runtime/workers"
	"huddle/services"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/wire"
	"github.com/mama165/sdk-go/logs"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// App is everything cmd/server starts and stops.
type App struct {
	Config     internal.Config
	Log        *slog.Logger
	Supervisor *workers.Supervisor
	Registry   *runtime.Registry
	Handler    *httpapi.Handler
	GrpcServer *grpc.Server
	Heartbeat  *workers.HeartbeatWorker
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideBadger,
	ProvideMessageStore,
	repositories.NewProfileRepository,
	ProvideSupervisor,
	observability.NewMonitoringManager,
	ProvideGrpcServer,
	ProvideRegistry,
	ProvideChatService,
	ProvideHandler,
	ProvideHeartbeat,
	wire.Bind(new(contract.IRegistry), new(*runtime.Registry)),
	wire.Bind(new(contract.ProfileDirectory), new(*repositories.ProfileRepository)),
	wire.Bind(new(services.IChatService), new(*services.ChatService)),
)

func ProvideLogger(config internal.Config) *slog.Logger {
	return logs.GetLoggerFromString(config.LogLevel)
}

// ProvideBadger opens the local store. It always holds the profile directory,
// and the messages too with the badger driver.
func ProvideBadger(config internal.Config, log *slog.Logger) (*badger.DB, func(), error) {
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, nil, fmt.Errorf("database opening failed: %w", err)
	}
	return db, func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}, nil
}

// ProvideMessageStore selects the store driver.
func ProvideMessageStore(ctx context.Context, config internal.Config, db *badger.DB,
	log *slog.Logger) (contract.MessageStore, func(), error) {
	switch config.StoreDriver {
	case internal.DriverBadger:
		return repositories.NewMessageRepository(db, log), func() {}, nil

	case internal.DriverMySQL:
		gdb, err := gorm.Open(mysql.Open(config.MySQLDSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		broker := repositories.NewBroker(log)
		store := sqlstore.NewStore(gdb, broker, log)
		if err := store.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		return store, func() {
			broker.Shutdown()
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil

	case internal.DriverMongo:
		client, database, err := mongostore.Connect(ctx, config.MongoURI, config.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.NewStore(database, log)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("creating indexes: %w", err)
		}
		return store, func() {
			_ = client.Disconnect(context.Background())
		}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", errors.ErrUnknownDriver, config.StoreDriver)
	}
}

func ProvideSupervisor(config internal.Config, log *slog.Logger) *workers.Supervisor {
	return workers.NewSupervisor(log, workers.RestartPolicy{
		BaseDelay:   config.ResubscribeBaseDelay,
		MaxDelay:    config.ResubscribeMaxDelay,
		MaxAttempts: config.MaxResubscribeAttempts,
	})
}

func ProvideGrpcServer(config internal.Config, log *slog.Logger) *grpc.Server {
	return grpc.NewServer(log, []byte(config.JwtSecret))
}

// ProvideRegistry attaches the monitoring and health sinks to every channel.
func ProvideRegistry(config internal.Config, log *slog.Logger, supervisor *workers.Supervisor,
	store contract.MessageStore, monitoring *observability.MonitoringManager,
	grpcServer *grpc.Server) (*runtime.Registry, func()) {
	registry := runtime.NewRegistry(log, supervisor, store, runtime.ChannelConfig{
		FetchTimeout:   config.FetchTimeout,
		SinkTimeout:    config.SinkTimeout,
		FeedBufferSize: config.FeedBufferSize,
	})
	registry.Add(monitoring, grpc.NewHealthSink(grpcServer.Health()))
	return registry, registry.Stop
}

func ProvideChatService(config internal.Config, log *slog.Logger, registry contract.IRegistry,
	store contract.MessageStore, profiles contract.ProfileDirectory) *services.ChatService {
	return services.NewChatService(log, registry, store, profiles, config.MaxContentLength)
}

func ProvideHandler(config internal.Config, log *slog.Logger, service services.IChatService,
	monitoring *observability.MonitoringManager) *httpapi.Handler {
	return httpapi.NewHandler(log, service, monitoring, httpapi.Config{
		Secret:               []byte(config.JwtSecret),
		AllowedOrigins:       config.Origins(),
		ConnectionBufferSize: config.ConnectionBufferSize,
		RequestTimeout:       config.FetchTimeout * 2,
	})
}

func ProvideHeartbeat(config internal.Config, log *slog.Logger,
	monitoring *observability.MonitoringManager) *workers.HeartbeatWorker {
	return workers.NewHeartbeatWorker(log, monitoring, config.HeartbeatInterval)
}
