package main

import (
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/httpserver"
	"chat-relay/internal"
	"chat-relay/observability"
	pb "chat-relay/proto/relay"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the servers lifecycle, and centralizes error reporting.
// Deferred cleanups always run before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Supervision & Orchestration
	clock := clockwork.NewRealClock()
	promRegistry := observability.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	sup := workers.NewSupervisor(logger, config.RestartInterval)

	orchestrator := runtime.NewOrchestrator(logger, sup, runtime.NewRegistry(), clock, metrics, runtime.Options{
		BufferSize:           config.BufferSize,
		SinkTimeout:          config.SinkTimeout,
		HeartbeatInterval:    config.HeartbeatInterval,
		MetricInterval:       config.MetricInterval,
		LowCapacityThreshold: config.LowCapacityThreshold,
		Moderation:           config.ModerationEnabled,
		CharReplacement:      charReplacement,
	})
	// The orchestrator outlives ctx: it must process the leaves of the sessions closed on shutdown.
	if err := orchestrator.Start(context.Background()); err != nil {
		return exitRuntime, fmt.Errorf("orchestrator error: %w", err)
	}

	relay := services.NewRelayService(logger, orchestrator, metrics, services.RelayOptions{
		ConnectionBufferSize: config.ConnectionBufferSize,
		InboundRatePerSecond: config.InboundRatePerSecond,
		InboundBurst:         config.InboundBurst,
	})
	codec := protocol.NewCodec(config.MaxNameLength, config.MaxContentLength)

	// Error (gRPC & HTTP)
	errChan := make(chan error, 2)

	// 4. gRPC Server Setup
	listener, err := net.Listen("tcp", config.GrpcAddress())
	if err != nil {
		orchestrator.Stop()
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.GrpcAddress(), err)
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(logger)))
	pb.RegisterRelayServiceServer(s, server.NewRelayServer(ctx, logger, relay, codec))

	go func() {
		logger.Info("Starting gRPC server", "address", config.GrpcAddress(), "at", clock.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 5. HTTP Server Setup (WebSocket, health, presence, metrics)
	httpServer := httpserver.NewServer(ctx, logger, relay, codec, metrics, promRegistry, clock, httpserver.Options{
		WriteTimeout:  config.WriteTimeout,
		MaxFrameBytes: config.MaxFrameBytes,
	})
	go func() {
		if err := httpServer.Start(config.HttpAddress()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	code, runErr := exitOK, error(nil)
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
		stop()
	}

	// 7. Final Cleanup (Graceful Shutdown)
	// Open sessions end first so their leave notices go through the still running coordinator.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	stopGrpc(s, shutdownCtx)
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// stopGrpc waits for open streams to end, then cuts the remaining ones once ctx is done.
func stopGrpc(s *grpc.Server, ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.Stop()
		<-stopped
	}
}
