package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vibast-solutions/ms-go-locks/app/controller"
	grpcserver "github.com/vibast-solutions/ms-go-locks/app/grpc"
	"github.com/vibast-solutions/ms-go-locks/app/lock"
	"github.com/vibast-solutions/ms-go-locks/app/service"
	"github.com/vibast-solutions/ms-go-locks/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC lock inspection servers",
	Long:  "Start an HTTP (Echo) server that reports the state of lock files in LOCK_DIR and exposes Prometheus metrics, and a gRPC health server with one service per lock file.",
	Run:   runServe,
}

// init registers the serve command.
func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires dependencies and starts HTTP and gRPC servers.
func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := newLogger(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lock.RegisterMetrics(reg)

	inspector := service.NewInspector(cfg.LockDir, lock.WithLogger(logger))
	lockController := controller.NewLockController(inspector, logger)

	e := setupHTTPServer(lockController, reg)

	lockHealth := grpcserver.NewLockHealth(inspector, logger)
	grpcServer, lis, err := setupGRPCServer(cfg, lockHealth)
	if err != nil {
		logger.Fatalf("Failed to listen on gRPC port: %v", err)
	}

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go lockHealth.Run(healthCtx, cfg.LockHealthInterval)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
		logger.Infof("Starting HTTP server on %s (lock dir %s)", httpAddr, inspector.Dir())
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	go func() {
		logger.Infof("Starting gRPC server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatalf("gRPC server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	stopHealth()
	lockHealth.Shutdown()
	grpcServer.GracefulStop()

	logger.Info("Server stopped")
}

// setupHTTPServer configures the Echo HTTP server and routes.
func setupHTTPServer(lockController *controller.LockController, gatherer prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())

	locks := e.Group("/locks")
	locks.GET("/:name", lockController.Status)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return e
}

// setupGRPCServer builds the gRPC server and listener. The lock health
// server answers grpc.health.v1 checks with the lock file name as service.
func setupGRPCServer(cfg *config.Config, lockHealth *grpcserver.LockHealth) (*grpc.Server, net.Listener, error) {
	grpcAddr := net.JoinHostPort(cfg.GRPCHost, cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return nil, nil, err
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, lockHealth.Server())
	reflection.Register(grpcServer)

	return grpcServer, lis, nil
}
