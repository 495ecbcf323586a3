package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/staticd/config"
	"github.com/BaSui01/staticd/internal/httpd"
	"github.com/BaSui01/staticd/internal/metrics"
	"github.com/BaSui01/staticd/internal/pool"
	"github.com/BaSui01/staticd/internal/server"
	"github.com/BaSui01/staticd/internal/telemetry"
)

// =============================================================================
// 🖥️ 服务编排
// =============================================================================

// runServer 启动文件服务与管理端点，阻塞到 ctx 取消或任一组件失败。
// 文件服务自身的关闭顺序（断开连接 → 等待 worker → 关闭监听）由 httpd 保证，
// 之后再停止管理端点并刷新遥测数据。
func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := httpd.OpenDirStore(cfg.Server.DocRoot)
	if err != nil {
		return err
	}
	defer store.Close()

	providers, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	collector := metrics.NewCollector(cfg.Metrics.Namespace, logger)
	collector.ObserveBufferPool("response", pool.Buffers.Stats)

	opts := []httpd.Option{
		httpd.WithLogger(logger),
		httpd.WithMetrics(collector),
		httpd.WithTracerProvider(providers.TracerProvider()),
	}
	if cfg.Server.AcceptRate > 0 {
		opts = append(opts, httpd.WithAcceptLimiter(
			rate.NewLimiter(rate.Limit(cfg.Server.AcceptRate), cfg.Server.AcceptBurst),
		))
	}

	srv := httpd.NewServer(httpd.Config{
		Addr:            cfg.Server.Addr(),
		DefaultDocument: cfg.Server.DefaultDocument,
		MaxHeaderBytes:  cfg.Server.MaxHeaderBytes,
	}, store, opts...)

	if err := srv.Listen(); err != nil {
		return errors.Join(err, providers.Shutdown(context.Background()))
	}

	var admin *server.Manager
	if cfg.Metrics.Port > 0 {
		admin = newAdminManager(cfg, srv.Registry(), logger)
		if err := admin.Start(); err != nil {
			return errors.Join(err,
				srv.Shutdown(context.Background()),
				providers.Shutdown(context.Background()),
			)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := srv.Serve(gctx)
		if errors.Is(err, httpd.ErrServerClosed) {
			return nil
		}
		return err
	})

	if admin != nil {
		g.Go(func() error {
			select {
			case err := <-admin.Errors():
				return fmt.Errorf("admin server: %w", err)
			case <-gctx.Done():
				return nil
			}
		})
	}

	runErr := g.Wait()

	// 正常退出时 Serve 已完成排空，这里只覆盖监听循环异常退出的情况
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("shutdown file server: %w", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown admin server: %w", err))
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry flush failed", zap.Error(err))
	}

	return errors.Join(errs...)
}

func newAdminManager(cfg *config.Config, stats server.RegistryStats, logger *zap.Logger) *server.Manager {
	adminCfg := server.DefaultConfig()
	adminCfg.Addr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Metrics.Port))
	adminCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	handler := server.NewAdminHandler(stats, prometheus.DefaultGatherer, Version)
	return server.NewManager(handler, adminCfg, logger)
}
