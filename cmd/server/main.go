package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/crm/internal/adapter/handler"
	"github.com/rl1809/crm/internal/app"
	"github.com/rl1809/crm/internal/config"
	"github.com/rl1809/crm/internal/jobs"
	"github.com/rl1809/crm/internal/platform/logger"
)

func main() {
	cmd := &cli.App{
		Name:  "crm-server",
		Usage: "serve the CRM HTTP and gRPC APIs and run scheduled jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config",
				EnvVars: []string{"CRM_CONFIG"},
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"))
		},
	}
	if err := cmd.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer application.Close()

	gw := handler.NewGateway(application.Mutations, application.Queries, cfg.Validation.LowStockThreshold)

	// Scheduled jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler, err = jobs.NewFromConfig(cfg.Jobs, application.Queries, application.Mutations, application.Probes, log)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		scheduler.Start()
		log.Info("scheduler started")
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogger(log)))
	handler.RegisterCRMServer(grpcServer, handler.NewGRPCHandler(gw, log))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc on %s: %w", cfg.Server.GRPCAddr, err)
	}

	// HTTP server
	if mode := cfg.Log.Mode; mode == "prod" || mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	probes := make(map[string]handler.Pinger, len(application.Probes))
	for _, p := range application.Probes {
		probes[p.Name] = p.Pinger
	}
	httpHandler := handler.NewHTTPHandler(gw, probes, log, handler.WithCORS(cfg.Server.CORSOrigins))

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: httpHandler.Engine(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("gRPC server listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Graceful shutdown on signal or when either server fails
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown", "error", err)
		}
		log.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")

		if scheduler != nil {
			scheduler.Stop()
			log.Info("scheduler stopped")
		}
		return nil
	})

	return g.Wait()
}
