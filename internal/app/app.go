package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"acdmx.com/internal/api"
	"acdmx.com/internal/api/ws"
	"acdmx.com/internal/broker"
	"acdmx.com/internal/engine"
	"acdmx.com/internal/governance"
	"acdmx.com/internal/ledger"
	"acdmx.com/internal/platform"
	"acdmx.com/internal/readmodel"
	"acdmx.com/pkg/config"
	"acdmx.com/pkg/logger"
	"acdmx.com/pkg/metrics"
	"acdmx.com/pkg/orm"
	"acdmx.com/pkg/ratelimit"
	"acdmx.com/pkg/safe"
	"acdmx.com/pkg/trace"
	"acdmx.com/pkg/xredis"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type App struct {
	cfg *Config

	rdb    *redis.Client
	db     *gorm.DB
	bk     broker.Broker
	eng    *engine.Engine
	store  *ratelimit.Store
	closer []func(context.Context) error
}

// New 加载配置并初始化日志，file 为空时按约定找 config/platform-service.yaml
func New(file string) (*App, error) {
	cfg := &Config{}
	a := &App{cfg: cfg}
	_, err := config.LoadAndWatch(ServiceName, cfg, config.Options{File: file, OnChange: a.reload})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	name := cfg.Name
	if name == "" {
		name = ServiceName
	}
	if cfg.LogFile != "" {
		logger.InitWithFile(name, cfg.LogLevel, cfg.LogFile)
	} else {
		logger.Init(name, cfg.LogLevel)
	}
	return a, nil
}

// reload 只有日志级别和限流参数支持热更新
func (a *App) reload() {
	logger.SetLevel(a.cfg.LogLevel)
	if a.store != nil && a.cfg.HTTP.RateLimit > 0 {
		burst := a.cfg.HTTP.Burst
		if burst <= 0 {
			burst = int(a.cfg.HTTP.RateLimit * 2)
		}
		a.store.SetLimit(rate.Limit(a.cfg.HTTP.RateLimit), burst)
	}
	logger.Info(context.Background(), "config reloaded", zap.String("log_level", a.cfg.LogLevel))
}

// Run 阻塞直到 ctx 取消或 http 出错，返回前完成优雅关闭
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.shutdown()

	cfg := a.cfg
	traceShutdown, err := trace.InitTrace(ctx, ServiceName, cfg.Trace)
	if err != nil {
		return fmt.Errorf("init trace: %w", err)
	}
	a.closer = append(a.closer, traceShutdown)
	metrics.MustRegister(nil)

	var cache readmodel.Cache
	if cfg.Redis.Enabled {
		if a.rdb, err = xredis.NewRedis(ctx, &cfg.Redis.Config); err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		metrics.ObserveRedis(ctx, a.rdb)
		if cfg.Redis.MasterLock {
			if err := a.becomeMaster(ctx, cancel); err != nil {
				return err
			}
		}
		prefix := cfg.Redis.CachePrefix
		if prefix == "" {
			prefix = "acdm:rm"
		}
		cache = readmodel.NewRedisCache(a.rdb, prefix)
	}

	var (
		projector *readmodel.Projector
		rm        *readmodel.Service
	)
	if cfg.DB.Enabled {
		if a.db, err = orm.Open(&cfg.DB.Config); err != nil {
			return fmt.Errorf("init db: %w", err)
		}
		sqlDB, err := a.db.DB()
		if err != nil {
			return err
		}
		metrics.ObserveDB(ctx, sqlDB)
		repo := readmodel.NewRepo(a.db)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate read model: %w", err)
		}
		projector = readmodel.NewProjector(repo, cache)
		rm = readmodel.NewService(repo, cache, cfg.Redis.CacheTTL)
	}

	pcfg, govAddr, err := cfg.platformConfig()
	if err != nil {
		return err
	}
	p := platform.New(pcfg, ledger.New())
	a.eng = engine.NewEngine(cfg.Engine, p)
	if err := a.eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	var gov *governance.Executor
	if govAddr != (common.Address{}) {
		if gov, err = governance.NewExecutor(pcfg.Self, govAddr, a.eng); err != nil {
			return err
		}
	}

	// 下游顺序：读模型先落库，再推 broker 和 ws
	var sinks []engine.Sink
	if projector != nil {
		sinks = append(sinks, projector)
	}
	if a.bk, err = newBroker(cfg.Broker); err != nil {
		return fmt.Errorf("init broker: %w", err)
	}
	if a.bk != nil {
		cb := ratelimit.NewManager(ServiceName, cfg.Breaker, nil)
		sinks = append(sinks, broker.NewRelay(a.bk, cb))
	}
	hub := ws.NewHub()
	sinks = append(sinks, ws.NewBridge(hub))
	safe.GoNamed("event-dispatch", func() { engine.Dispatch(ctx, a.eng.Events(), sinks...) })

	if cfg.PprofAddr != "" {
		a.startPprof(ctx)
	}

	a.store = api.NewStore(ctx, cfg.HTTP)
	h := api.NewHandler(a.eng, gov, rm)
	srv := api.NewHTTPServer(cfg.HTTP, api.NewRouter(ctx, cfg.HTTP, h, hub, a.store))

	errCh := make(chan error, 1)
	safe.GoNamed("http-server", func() {
		logger.Info(ctx, "http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
		err = nil
	case err = <-errCh:
		logger.Error(context.Background(), "http server error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if e := srv.Shutdown(shutdownCtx); e != nil {
		logger.Warn(shutdownCtx, "http shutdown", zap.Error(e))
	}
	return err
}

// becomeMaster 阻塞等锁，锁丢了直接取消整个服务，避免两个写者同时追加 wal
func (a *App) becomeMaster(ctx context.Context, cancel context.CancelFunc) error {
	key := a.cfg.Redis.LockKey
	if key == "" {
		key = "acdm:platform:master"
	}
	ttl := a.cfg.Redis.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	lock := xredis.NewRedisLockMaster(a.rdb)
	logger.Info(ctx, "waiting for master lock", zap.String("key", key), zap.String("id", lock.ID()))
	err := lock.KeepMaster(ctx, key, ttl, func(err error) {
		logger.Error(context.Background(), "master lock lost", zap.Error(err))
		cancel()
	})
	if err != nil {
		return fmt.Errorf("acquire master lock: %w", err)
	}
	logger.Info(ctx, "became master", zap.String("key", key))
	return nil
}

func newBroker(c BrokerConfig) (broker.Broker, error) {
	switch c.Driver {
	case "":
		return nil, nil
	case "mem":
		return broker.NewMemBroker(), nil
	case "nats":
		b, err := broker.NewNatsBroker(c.URL)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", c.Driver)
	}
}

func (a *App) startPprof(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	srv := &http.Server{Addr: a.cfg.PprofAddr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
	safe.GoNamed("pprof", func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn(ctx, "pprof listen", zap.Error(err))
		}
	})
	a.closer = append(a.closer, srv.Shutdown)
}

// shutdown 先停引擎让 wal 落盘，再关外部连接
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.eng != nil {
		a.eng.Stop()
	}
	if a.bk != nil {
		_ = a.bk.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	for i := len(a.closer) - 1; i >= 0; i-- {
		if err := a.closer[i](ctx); err != nil {
			logger.Warn(ctx, "shutdown", zap.Error(err))
		}
	}
	logger.Sync()
}
