// Package bootstrap 统一启动流程
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/elrs-feeder/internal/api"
	"github.com/taoyao-code/elrs-feeder/internal/api/middleware"
	"github.com/taoyao-code/elrs-feeder/internal/app"
	cfgpkg "github.com/taoyao-code/elrs-feeder/internal/config"
	"github.com/taoyao-code/elrs-feeder/internal/event"
	"github.com/taoyao-code/elrs-feeder/internal/health"
	"github.com/taoyao-code/elrs-feeder/internal/metrics"
	"github.com/taoyao-code/elrs-feeder/internal/mixer"
)

// Run 启动链路、事件分发与 HTTP 服务，收到 SIGINT/SIGTERM 后优雅退出
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, cfg, log)
}

// RunContext 与 Run 相同，由调用方控制退出
func RunContext(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	log.Info("starting elrs feeder",
		zap.String("env", cfg.App.Env),
		zap.String("serial", cfg.Serial.Port),
		zap.Int("baud", cfg.Serial.Baud))

	// ========== 阶段1: 基础组件 ==========
	reg, lm := app.NewMetrics()
	metricsHandler := metrics.Handler(reg)
	table := mixer.NewTable(cfg.Channels)
	store := event.NewStore()

	// ========== 阶段2: Redis（可选，失败只告警）==========
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("redis unavailable, event publishing disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sinks := []event.Sink{store, event.NewLogSink(log)}
	var history api.History
	if redisClient != nil {
		rs := app.NewRedisSink(redisClient, cfg.Redis, log)
		sinks = append(sinks, rs)
		history = rs
	}

	// ========== 阶段3: 串口链路 ==========
	lnk := app.NewLink(cfg, lm, log)
	dispatcher := event.NewDispatcher(log, sinks...)

	readyFn := health.LinkReady(lnk)
	healthAgg := app.NewHealthAggregator(lnk, readyFn)
	app.AddRedisChecker(healthAgg, redisClient)

	// ========== 阶段4: HTTP 服务 ==========
	httpSrv := app.NewHTTPServer(cfg.HTTP, cfg.Metrics, metricsHandler, readyFn, log)

	opts := []api.Option{
		api.WithMetrics(lm),
		api.WithOpenerFactory(app.SerialOpener(cfg.Serial)),
	}
	if history != nil {
		opts = append(opts, api.WithHistory(history))
	}
	handler := api.NewHandler(lnk, table, store, log, opts...)
	httpSrv.Register(func(r *gin.Engine) {
		api.RegisterRoutes(r, handler, api.RouteConfig{
			Auth: middleware.AuthConfig{
				APIKeys: cfg.HTTP.Auth.APIKeys,
				Enabled: cfg.HTTP.Auth.Enabled,
			},
			InputRate:  cfg.HTTP.InputRate,
			InputBurst: cfg.HTTP.InputBurst,
			CORS:       cfg.HTTP.CORS,
		}, log)
		app.RegisterHealthRoutes(r, healthAgg)
	})

	httpErr := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			httpErr <- err
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// ========== 阶段5: 链路与事件分发 ==========
	linkCtx, cancelLink := context.WithCancel(ctx)
	defer cancelLink()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		// 链路退出时关闭事件通道，Run 随之返回
		dispatcher.Run(context.Background(), lnk.Events())
	}()

	linkErr := make(chan error, 1)
	go func() { linkErr <- lnk.Run(linkCtx) }()
	log.Info("link running, waiting for shutdown signal")

	// ========== 阶段6: 等待退出 ==========
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, gracefully shutting down...")
	case runErr = <-httpErr:
	case err := <-linkErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(shutdownCtx)
	log.Info("http server stopped")

	lnk.Close()
	cancelLink()
	select {
	case <-lnk.Done():
	case <-shutdownCtx.Done():
		log.Warn("link did not stop in time")
	}
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
	}
	log.Info("shutdown complete")
	return runErr
}
