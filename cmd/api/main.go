package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/Tushar13233u/my-new-chat-app/internal/auth"
	"github.com/Tushar13233u/my-new-chat-app/internal/config"
	"github.com/Tushar13233u/my-new-chat-app/internal/data"
	"github.com/Tushar13233u/my-new-chat-app/internal/db"
	"github.com/Tushar13233u/my-new-chat-app/internal/gateway"
	"github.com/Tushar13233u/my-new-chat-app/internal/logging"
	"github.com/Tushar13233u/my-new-chat-app/internal/middleware"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Read configuration from .env and the environment
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Logger)
	slog.SetDefault(logger)

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	// Create stores
	accounts := data.NewAccountsStore(dbClient.AccountsCollection())
	docs := data.NewDocumentsStore(dbClient.DocumentsCollection(), logger.With("component", "documents"))
	tree := realtime.NewTree(realtime.WithLogger(logger.With("component", "realtime")))

	// JWT_KEYS enables rotation; a bare JWT_SECRET is a single "default" key
	keys, activeKid := cfg.SigningKeys()
	jwtMgr := auth.NewJWTManagerFromKeys(keys, activeKid, cfg.JWT.TTL)

	// Build a rate limiter for SignUp and SignIn, then chain interceptors.
	limiterStore := middleware.NewLimiterStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, time.Minute)
	defer limiterStore.Stop()
	limited := map[string]bool{
		rpc.Auth_SignUp_FullMethodName: true,
		rpc.Auth_SignIn_FullMethodName: true,
	}

	var serverOpts []grpc.ServerOption

	// If TLS certs are configured, create server credentials
	if cfg.TLS.CertFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certs: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	// error mapping -> rate limiter -> auth
	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(
		errorUnaryInterceptor(logger),
		middleware.RateLimitUnaryInterceptor(limiterStore, limited),
		authUnaryInterceptor(jwtMgr),
	))
	serverOpts = append(serverOpts, grpc.ChainStreamInterceptor(
		errorStreamInterceptor(logger),
		authStreamInterceptor(jwtMgr),
	))

	grpcServer := grpc.NewServer(serverOpts...)

	hub := push.NewHub()
	srv := newServer(accounts, docs, tree, hub, jwtMgr, cfg.AppURL, logger)
	registerServices(grpcServer, srv)

	httpApp := gateway.New(gateway.Options{
		Tokens:    srv.tokens,
		Hub:       hub,
		JWT:       jwtMgr,
		Logger:    logger.With("component", "gateway"),
		AccessLog: cfg.Logger.Development,
	})

	// Listen and serve
	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", listenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("gRPC server exit: %w", err)
		}
	}()
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
		logger.Info("HTTP gateway listening", "addr", addr)
		if err := httpApp.Listen(addr); err != nil {
			errCh <- fmt.Errorf("HTTP gateway exit: %w", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		logger.Error("server failed", "err", err)
	}

	logger.Info("shutting down")
	if err := httpApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("HTTP gateway shutdown", "err", err)
	}
	// long-lived streams never finish on their own; cut them after a grace period
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		grpcServer.Stop()
	}
	srv.wait()
	return nil
}
