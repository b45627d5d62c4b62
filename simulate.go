package main

import (
	"dht-to-mqtt/adapters"
	"dht-to-mqtt/application"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"
	"github.com/urfave/cli/v2"
)

const simulateStartupStagger = 500 * time.Millisecond

var CommandSimulate = &cli.Command{
	Name:  "simulate",
	Usage: "run every provisioned node against one broker",
	Flags: []cli.Flag{
		FlagSampleInterval,
		FlagNoiseTempDelta,
		FlagNoiseHumDelta,
		FlagLinkTimeout,
		FlagSessionBackoff,
		FlagNonBlockingBackoff,
		FlagCommands,
		FlagLEDs,
		FlagAlarm,
		FlagAlarmLow,
		FlagAlarmHigh,
		FlagPayloadNodeID,
		FlagPayloadPosition,
		FlagPayloadTimestamp,
	},
	Action: simulateNodes,
}

func simulateNodes(ctx *cli.Context) error {
	logger.Info().Msg("simulation starting...")

	appCtx, cancel := newAppContext()
	defer cancel()

	prov := adapters.DefaultProvisioning()
	if path := ctx.String(FlagConfig.Name); path != "" {
		var err error
		if prov, err = adapters.LoadProvisioning(path); err != nil {
			return err
		}
	}

	base := nodeConfigFromFlags(ctx)
	if ctx.IsSet(FlagBaseTopic.Name) || prov.BaseTopic == "" {
		prov.BaseTopic = base.BaseTopic
	}
	base.BaseTopic = prov.BaseTopic

	registry := prometheus.NewRegistry()
	metrics, err := adapters.NewPrometheusMetrics(registry)
	if err != nil {
		return err
	}

	nodes := prov.Enabled()
	logger.Info().
		Int("nodes", len(nodes)).
		Int("disabled", len(prov.Nodes)-len(nodes)).
		Str("base_topic", prov.BaseTopic).
		Msg("provisioning loaded")

	var wg conc.WaitGroup
	for i, profile := range nodes {
		i, profile := i, profile

		wg.Go(func() {
			select {
			case <-appCtx.Done():
				return
			case <-time.After(time.Duration(i) * simulateStartupStagger):
			}

			cfg := base
			profile.Apply(&cfg)

			err := runUntilStopped(appCtx, func() (*application.Node, *adapters.MQTTClient, error) {
				return newNode(ctx, nodeDeps{
					Config: cfg,
					Sensor: profile.SensorProfile(),
					Restarter: adapters.NewProcessRestarter(logger.With().
						Str("module", "restarter").
						Str("node_id", profile.ID).
						Logger()),
					Metrics: metrics,
				})
			})
			if err != nil {
				logger.Err(err).Str("node_id", profile.ID).Msg("node stopped")
			}
		})
	}

	if addr := ctx.String(FlagMetricsAddr.Name); addr != "" {
		wg.Go(func() {
			err := adapters.ServeStatus(appCtx, adapters.StatusServerParams{
				Addr:     addr,
				Gatherer: registry,
				Metrics:  metrics,
				Log:      logger.With().Str("module", "status-server").Logger(),
			})
			if err != nil {
				logger.Err(err).Msg("status server stopped")
			}
		})
	}

	logger.Info().Msg("simulation started")
	wg.Wait()

	logger.Info().Msg("simulation terminating...")
	return nil
}
