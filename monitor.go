package main

import (
	"context"
	"dht-to-mqtt/adapters"
	"dht-to-mqtt/application"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const monitorRetryDelay = 5 * time.Second

var CommandMonitor = &cli.Command{
	Name:  "monitor",
	Usage: "follow telemetry and status of every node under the base topic",
	Flags: []cli.Flag{
		FlagStaleAfter,
	},
	Action: monitorField,
}

func monitorField(ctx *cli.Context) error {
	logger.Info().Msg("monitor starting...")

	appCtx, cancel := newAppContext()
	defer cancel()

	log := logger.With().Str("module", "monitor").Logger()

	var monitor *application.FieldMonitor
	mqttClient := adapters.NewMQTTClient(adapters.MQTTClientParams{
		ClientID:      application.DeriveClientID("dashboard", "monitor"),
		Username:      ctx.String(FlagMQTTUsername.Name),
		Password:      ctx.String(FlagMQTTPassword.Name),
		MQTTUrl:       ctx.String(FlagMQTTUrl.Name),
		AutoReconnect: true,
		OnConnect: func() {
			if err := monitor.Subscribe(); err != nil {
				log.Err(err).Msg("failed to subscribe")
			}
		},
		Log: logger.With().Str("module", "mqtt-client").Logger(),
	})
	defer mqttClient.Disconnect(250)

	var err error
	monitor, err = application.NewFieldMonitor(application.FieldMonitorParams{
		MQTTClient: mqttClient,
		BaseTopic:  ctx.String(FlagBaseTopic.Name),
		StaleAfter: ctx.Duration(FlagStaleAfter.Name),
		Log:        log,
	})
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(appCtx)
	g.Go(func() error {
		return connectWithRetry(gCtx, mqttClient)
	})
	g.Go(func() error {
		return monitor.Run(gCtx)
	})

	logger.Info().Msg("monitor started")
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info().Msg("monitor terminating...")
	return nil
}

// connectWithRetry connects once, retrying until it succeeds or ctx is
// done. Later session losses are handled by the client itself.
func connectWithRetry(ctx context.Context, client *adapters.MQTTClient) error {
	for {
		err := client.Connect()
		if err == nil {
			return nil
		}
		logger.Warn().Err(err).Dur("retry_in", monitorRetryDelay).Msg("failed to connect")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(monitorRetryDelay):
		}
	}
}
