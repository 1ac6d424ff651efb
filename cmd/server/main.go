package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"huddle/di"
	"huddle/internal"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the engine, serves HTTP and gRPC, and returns once both are stopped
// so that deferred cleanups run before exit.
func run() error {
	// 1. Configuration
	config, err := internal.Load()
	if err != nil {
		return err
	}

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Dependency graph (store, registry, service, surfaces)
	app, cleanup, err := di.InitializeApp(ctx, config)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()
	log := app.Log

	// 4. Background workers
	go app.Supervisor.Add(app.Heartbeat).Run(ctx)

	// 5. gRPC health server
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	errChan := make(chan error, 2)
	go func() {
		if err := app.GrpcServer.Serve(ctx, listener); err != nil {
			errChan <- err
		}
	}()

	// 6. HTTP server
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           app.Handler.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Starting HTTP server", "address", httpServer.Addr, "driver", config.StoreDriver)
		if err := httpServer.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup: websockets unwatch on close, then channels are released
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	app.Registry.Stop()
	app.Supervisor.Stop()
	log.Info("Program stopped cleanly")
	return nil
}
