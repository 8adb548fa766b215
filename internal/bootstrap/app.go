package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/config"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/knowledge"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/model"
	mysqlClient "github.com/SQ-Kust408/poet-1v1-chat-room/internal/platform/mysql"
	rabbitmqClient "github.com/SQ-Kust408/poet-1v1-chat-room/internal/platform/rabbitmq"
	redisClient "github.com/SQ-Kust408/poet-1v1-chat-room/internal/platform/redis"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/ratelimit"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/repository"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/worker"
)

type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Poets       *knowledge.Store
	Limiter     *ratelimit.Limiter
	StatsWorker *worker.TurnStatsWorker

	StartedAt   time.Time
	stopSweeper func()
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.Message{}, &model.PoetStat{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	poets, err := knowledge.Load(cfg.Knowledge.Dir, cfg.Knowledge.FileSuffix)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		cfg.RateLimit.MaxRequests,
	)
	stopSweeper := limiter.StartSweeper(time.Duration(cfg.RateLimit.SweepIntervalSecond) * time.Second)

	statRepo := repository.NewPoetStatRepository(mysqlDB)
	statsWorker := worker.NewTurnStatsWorker(mqConn, statRepo, cfg.RabbitMQ.TurnEventQueue)
	if err := statsWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start turn stats worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		Poets:       poets,
		Limiter:     limiter,
		StatsWorker: statsWorker,
		StartedAt:   time.Now(),
		stopSweeper: stopSweeper,
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.stopSweeper != nil {
		a.stopSweeper()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.StatsWorker != nil {
		a.StatsWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
