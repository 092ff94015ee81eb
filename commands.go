package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/artifact-api/internal/config"
	"github.com/example/artifact-api/internal/di"
	"github.com/example/artifact-api/internal/grpcclient"
	"github.com/example/artifact-api/internal/grpcserver"
	"github.com/example/artifact-api/internal/logging"
	"github.com/example/artifact-api/internal/repository"
)

const startupTimeout = 2 * time.Minute

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "artifact-api",
		Short:        "Artifact AI backend",
		Long:         "HTTP API that stores artwork submissions and classifies images as AI or human made.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the gRPC health service",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), configFile)
			},
		},
		newHealthcheckCommand(),
	)
	return root
}

func newHealthcheckCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Query the gRPC health service of a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := grpcclient.CheckHealth(cmd.Context(), addr, grpcserver.ServiceName, zap.NewNop())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service is %s", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9090", "gRPC health service address")
	return cmd
}

func buildContainer(ctx context.Context, configFile string) (*dig.Container, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	container, err := di.BuildContainer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return container, cfg, nil
}

func runMigrate(ctx context.Context, configFile string) error {
	container, _, err := buildContainer(ctx, configFile)
	if err != nil {
		return err
	}
	return container.Invoke(func(repo *repository.Repository, logger *zap.Logger) error {
		defer logger.Sync() //nolint:errcheck
		migrateCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		defer cancel()
		if err := repo.AutoMigrate(migrateCtx); err != nil {
			logger.Error("auto migrate failed", logging.ErrorFields(err)...)
			return err
		}
		logger.Info("schema up to date")
		return nil
	})
}

func runServe(ctx context.Context, configFile string) error {
	// Google clients keep this context for token refreshes, so it must
	// outlive startup.
	container, cfg, err := buildContainer(ctx, configFile)
	if err != nil {
		return err
	}

	return container.Invoke(func(router *gin.Engine, health *grpcserver.Server, repo *repository.Repository, logger *zap.Logger) error {
		defer logger.Sync() //nolint:errcheck

		migrateCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		err := repo.AutoMigrate(migrateCtx)
		cancel()
		if err != nil {
			logger.Error("auto migrate failed", logging.ErrorFields(err)...)
			return err
		}

		grpcListener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
		}

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runServers(ctx, server, nil, health, grpcListener, cfg.Server.ShutdownTimeout, logger, nil)
	})
}

// runServers runs the HTTP API and the health service until the HTTP server
// exits; the health service is stopped with it.
func runServers(ctx context.Context, server *http.Server, httpListener net.Listener, health *grpcserver.Server, grpcListener net.Listener, shutdownTimeout time.Duration, logger *zap.Logger, signalCh <-chan os.Signal) error {
	g, gctx := errgroup.WithContext(ctx)
	grpcCtx, stopGRPC := context.WithCancel(gctx)
	defer stopGRPC()

	g.Go(func() error {
		logger.Info("gRPC health service listening", zap.String("addr", grpcListener.Addr().String()))
		return health.Serve(grpcCtx, grpcListener)
	})
	g.Go(func() error {
		defer stopGRPC()
		// A failed sibling or a cancelled parent drains the HTTP server too.
		stop := context.AfterFunc(gctx, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP shutdown after group cancellation failed", zap.Error(err))
			}
		})
		defer stop()
		logger.Info("HTTP API listening", zap.String("addr", server.Addr))
		return serveHTTPServerWithOptions(server, shutdownTimeout, logger, httpListener, signalCh)
	})
	return g.Wait()
}
