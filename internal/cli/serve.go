package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/journeywatch/internal/audit"
	"github.com/ppiankov/journeywatch/internal/dispatch"
	"github.com/ppiankov/journeywatch/internal/httpapi"
	"github.com/ppiankov/journeywatch/internal/logging"
	"github.com/ppiankov/journeywatch/internal/metrics"
	"github.com/ppiankov/journeywatch/internal/notify"
	"github.com/ppiankov/journeywatch/internal/pipeline"
	"github.com/ppiankov/journeywatch/internal/server"
	"github.com/ppiankov/journeywatch/internal/store"
)

const shutdownTimeout = 8 * time.Second

var (
	serveHTTPAddr string
	serveGRPCPort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().IntVar(&serveGRPCPort, "grpc-port", 0, "gRPC listen port (overrides config, -1 disables)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC telemetry servers",
	Long:  "Runs the telemetry pipeline behind HTTP (/v1/telemetry, /v1/analyze-risk) and gRPC.\nThe notifier config is hot-reloaded when it changes on disk.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveHTTPAddr != "" {
		cfg.HTTPAddr = serveHTTPAddr
	}
	if serveGRPCPort != 0 {
		cfg.GRPCPort = serveGRPCPort
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := loadCore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alerts, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open alert store: %w", err)
	}
	defer alerts.Close()

	auditLog, err := audit.Open(cfg.AuditLog)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()

	collector := metrics.New()

	notifyCfg, err := notify.LoadConfig(cfg.NotifyConfig)
	if err != nil {
		return err
	}
	fanout := notify.NewFanout(notifyCfg,
		notify.WithKafkaFallback(cfg.Kafka),
		notify.WithFanoutLogger(logger.Named("notify")),
		notify.WithFanoutMetrics(collector))
	defer fanout.Close()

	if reloader, err := notify.NewReloader(fanout, cfg.NotifyConfig, logger.Named("notify")); err != nil {
		logger.Info("notifier hot-reload disabled", zap.Error(err))
	} else {
		go reloader.Run(ctx)
	}

	dispatcher := dispatch.New(alerts, auditLog,
		dispatch.WithLogger(logger.Named("dispatch")),
		dispatch.WithNotifier(fanout),
		dispatch.WithMetrics(collector))
	p := pipeline.New(c.analyzer, c.engine, dispatcher, auditLog,
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithMetrics(collector))

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Pipeline: p,
			Alerts:   alerts,
			Audit:    auditLog,
			Metrics:  collector,
			Logger:   logger.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcSrv *server.Server
	if cfg.GRPCPort > 0 {
		grpcSrv = server.New(server.Config{Port: cfg.GRPCPort}, p, logger.Named("grpc"))
		go func() {
			if err := grpcSrv.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	fmt.Fprintf(os.Stderr, "journeywatch serving HTTP on %s", cfg.HTTPAddr)
	if grpcSrv != nil {
		fmt.Fprintf(os.Stderr, ", gRPC on :%d", cfg.GRPCPort)
	}
	fmt.Fprintf(os.Stderr, "\nStore: %s | Audit log: %s\n", cfg.Store.Backend, cfg.AuditLog)

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "\nShutting down...")
	case err = <-errCh:
		logger.Error("server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if shutdownErr := httpSrv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("http shutdown", zap.Error(shutdownErr))
	}
	return err
}
