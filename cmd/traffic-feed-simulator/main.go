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

	"github.com/chrissnell/signalcontrol/internal/log"
	"github.com/chrissnell/signalcontrol/internal/mockfeed"
	"github.com/chrissnell/signalcontrol/internal/randengine"
)

func main() {
	var (
		listen = flag.String("listen", "127.0.0.1:5000", "Address to serve the traffic feed on")
		seed   = flag.Uint64("seed", 0, "Random seed; 0 seeds from the clock")
		debug  = flag.Bool("debug", false, "Log every generated payload")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger := log.GetSugaredLogger()

	feed := mockfeed.NewServer(randengine.New(*seed), nil, logger)
	server := &http.Server{
		Addr:              *listen,
		Handler:           log.HTTPMiddleware(logger)(feed.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received, stopping...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Infow("Serving simulated traffic feed", "url", "http://"+*listen+"/traffic", "seed", *seed)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Traffic feed server error: %v", err)
		os.Exit(1)
	}
}
