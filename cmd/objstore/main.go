// Command objstore serves an in-memory object store for trying surge
// locally:
//
//	objstore --listen :9000 --latency 5ms --error-rate 0.01
//	surge run --host http://localhost:9000 --container bench --rate 100
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/logging"
	"github.com/wesleyorama2/surge/internal/objstore"
)

func main() {
	listen := flag.String("listen", ":9000", "address to listen on")
	latency := flag.Duration("latency", 0, "latency added to every request")
	errorRate := flag.Float64("error-rate", 0, "fraction of requests answered with 503")
	maxSize := flag.Int64("max-object-size", 0, "reject larger writes with 413 (0 = unlimited)")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := logging.New(*logLevel, "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	store := objstore.New(objstore.Options{
		Latency:       *latency,
		ErrorRate:     *errorRate,
		MaxObjectSize: *maxSize,
	})

	// Configure server for high throughput
	server := &http.Server{
		Addr:              *listen,
		Handler:           store,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("object store listening",
		zap.String("listen", *listen),
		zap.Duration("latency", *latency),
		zap.Float64("errorRate", *errorRate))

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("object store stopped", zap.Int("objects", store.Len()))
}
