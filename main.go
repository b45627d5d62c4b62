package main

import (
	"context"
	"dht-to-mqtt/adapters"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var Flags = []cli.Flag{
	FlagLogLevel,
	FlagLogWriter,
	FlagMQTTUrl,
	FlagMQTTUsername,
	FlagMQTTPassword,
	FlagMQTTClientPrefix,
	FlagBaseTopic,
	FlagConfig,
	FlagMetricsAddr,
}

var logger zerolog.Logger

func main() {
	app := cli.App{
		Name:    "dht-to-mqtt",
		Usage:   "DHT22 climate node publishing telemetry over MQTT",
		Version: "v0.1.0",
		Flags:   Flags,
		Before: func(ctx *cli.Context) error {
			var logWriter io.Writer
			switch ctx.String(FlagLogWriter.Name) {
			case "console":
				logWriter = zerolog.ConsoleWriter{
					Out:        os.Stderr,
					TimeFormat: time.RFC3339Nano,
				}
			case "json":
				logWriter = os.Stderr
			default:
				return fmt.Errorf("invalid log writer %q", ctx.String(FlagLogWriter.Name))
			}

			logger = zerolog.New(logWriter).With().Timestamp().
				Str("service", "dht-to-mqtt").
				Str("module", "main").
				Logger()

			level, err := zerolog.ParseLevel(ctx.String(FlagLogLevel.Name))
			if err != nil {
				return err
			}

			zerolog.SetGlobalLevel(level)
			adapters.RoutePahoLogs(logger)

			return nil
		},
		Commands: []*cli.Command{
			CommandRun,
			CommandSimulate,
			CommandMonitor,
		},
		DefaultCommand: CommandRun.Name,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Err(err).Msg("service terminated")
		os.Exit(1)
	}
}

// newAppContext returns a context cancelled on SIGINT or SIGTERM.
func newAppContext() (context.Context, context.CancelFunc) {
	appCtx, cancel := context.WithCancel(logger.WithContext(context.Background()))
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		select {
		case <-c:
			logger.Warn().Msg("interrupt signal received")
			cancel()
		case <-appCtx.Done():
		}
	}()
	return appCtx, cancel
}
