package main

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/GideonBature/nodegaze-sub000/http"
	"github.com/GideonBature/nodegaze-sub000/logger"
	"github.com/GideonBature/nodegaze-sub000/service"
)

func main() {
	// Create a channel to receive OS signals.
	osSignalChannel := make(chan os.Signal, 1)
	// Notify the channel on os.Interrupt, syscall.SIGTERM. os.Kill cannot be caught.
	signal.Notify(osSignalChannel, os.Interrupt, syscall.SIGTERM, syscall.SIGPIPE)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for {
			// wait for exit signal
			sig := <-osSignalChannel
			logger.Logger.Info().Interface("signal", sig).Msg("Received OS signal")

			if sig == syscall.SIGPIPE {
				logger.Logger.Warn().Interface("signal", sig).Msg("Ignoring SIGPIPE signal")
				continue
			}

			cancel()
			break
		}
	}()

	svc, err := service.NewService(ctx)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create service")
		return
	}

	if err := svc.StartEnvNode(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to connect node from environment")
	}
	svc.StartNodes(ctx)

	e := echo.New()

	httpSvc := http.NewHttpService(svc)
	httpSvc.RegisterSharedRoutes(e)

	go func() {
		if err := e.Start(fmt.Sprintf(":%v", svc.Config().Port)); err != nil && err != nethttp.ErrServerClosed {
			logger.Logger.Error().Err(err).Msg("echo server failed to start")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Logger.Info().Msg("Shutting down echo server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to shutdown echo server")
	}
	logger.Logger.Info().Msg("Echo server exited")
	svc.Shutdown()
	logger.Logger.Info().Msg("Service exited")
}
