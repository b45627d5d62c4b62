package main

import (
	"context"
	"dht-to-mqtt/adapters"
	"dht-to-mqtt/application"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var CommandRun = &cli.Command{
	Name:  "run",
	Usage: "run a single node",
	Flags: []cli.Flag{
		FlagNodeID,
		FlagPosX,
		FlagPosY,
		FlagSampleInterval,
		FlagPublishInterval,
		FlagNoiseTempDelta,
		FlagNoiseHumDelta,
		FlagLinkTimeout,
		FlagLinkInterface,
		FlagLinkTarget,
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
		FlagConsole,
		FlagSensorGlitch,
	},
	Action: runNode,
}

// nodeConfigFromFlags reads the node variant from the command line.
func nodeConfigFromFlags(ctx *cli.Context) application.NodeConfig {
	cfg := application.DefaultNodeConfig()

	cfg.Identity = application.NodeIdentity{
		ID:        ctx.String(FlagNodeID.Name),
		PositionX: ctx.Float64(FlagPosX.Name),
		PositionY: ctx.Float64(FlagPosY.Name),
	}
	cfg.BaseTopic = ctx.String(FlagBaseTopic.Name)

	cfg.SampleInterval = ctx.Duration(FlagSampleInterval.Name)
	cfg.PublishInterval = ctx.Duration(FlagPublishInterval.Name)
	cfg.LinkTimeout = ctx.Duration(FlagLinkTimeout.Name)
	cfg.SessionBackoff = ctx.Duration(FlagSessionBackoff.Name)
	cfg.NonBlockingBackoff = ctx.Bool(FlagNonBlockingBackoff.Name)

	cfg.Noise = application.NoiseFilter{
		MaxTemperatureDelta: ctx.Float64(FlagNoiseTempDelta.Name),
		MaxHumidityDelta:    ctx.Float64(FlagNoiseHumDelta.Name),
	}
	cfg.Fields = application.PayloadFields{
		NodeID:    ctx.Bool(FlagPayloadNodeID.Name),
		Position:  ctx.Bool(FlagPayloadPosition.Name),
		Timestamp: ctx.Bool(FlagPayloadTimestamp.Name),
	}

	cfg.CommandsEnabled = ctx.Bool(FlagCommands.Name)
	cfg.LEDsEnabled = ctx.Bool(FlagLEDs.Name)
	cfg.AlarmEnabled = ctx.Bool(FlagAlarm.Name)
	cfg.Alarm = application.AlarmThresholds{
		Low:  ctx.Float64(FlagAlarmLow.Name),
		High: ctx.Float64(FlagAlarmHigh.Name),
	}

	return cfg
}

func runNode(ctx *cli.Context) error {
	logger.Info().Msg("service starting...")

	appCtx, cancel := newAppContext()
	defer cancel()

	cfg := nodeConfigFromFlags(ctx)
	sensorProfile := adapters.DefaultSensorProfile()
	sensorProfile.GlitchProbability = ctx.Float64(FlagSensorGlitch.Name)

	if path := ctx.String(FlagConfig.Name); path != "" {
		prov, err := adapters.LoadProvisioning(path)
		if err != nil {
			return err
		}
		if prov.BaseTopic != "" {
			cfg.BaseTopic = prov.BaseTopic
		}
		if profile, ok := prov.Node(cfg.Identity.ID); ok {
			profile.Apply(&cfg)
			sensorProfile = profile.SensorProfile()
		} else {
			logger.Warn().Str("node_id", cfg.Identity.ID).Msg("node not provisioned, using flags")
		}
	}

	registry := prometheus.NewRegistry()
	metrics, err := adapters.NewPrometheusMetrics(registry)
	if err != nil {
		return err
	}

	restarter := adapters.NewProcessRestarter(logger.With().Str("module", "restarter").Logger())

	var console <-chan string
	if ctx.Bool(FlagConsole.Name) {
		console = adapters.ReadConsole(appCtx, os.Stdin)
	}

	node, mqttClient, err := newNode(ctx, nodeDeps{
		Config:    cfg,
		Sensor:    sensorProfile,
		Interface: ctx.String(FlagLinkInterface.Name),
		Target:    ctx.String(FlagLinkTarget.Name),
		Restarter: restarter,
		Metrics:   metrics,
		Console:   console,
	})
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect(250)

	g, gCtx := errgroup.WithContext(appCtx)
	g.Go(func() error {
		return node.Run(gCtx)
	})
	if addr := ctx.String(FlagMetricsAddr.Name); addr != "" {
		g.Go(func() error {
			return adapters.ServeStatus(gCtx, adapters.StatusServerParams{
				Addr:     addr,
				Gatherer: registry,
				Metrics:  metrics,
				Log:      logger.With().Str("module", "status-server").Logger(),
			})
		})
	}

	logger.Info().Msg("service started")
	err = g.Wait()
	if errors.Is(err, application.ErrRestartRequested) {
		mqttClient.Disconnect(250)
		return restarter.Exec()
	}
	if err != nil {
		return err
	}

	logger.Info().Msg("service terminating...")
	return nil
}

type nodeDeps struct {
	Config    application.NodeConfig
	Sensor    adapters.SensorProfile
	Interface string
	Target    string
	Restarter application.Restarter
	Metrics   application.Metrics
	Console   <-chan string
}

// newNode wires one node to its broker client, network link and simulated
// sensor. The link never checks the broker itself: a broker outage must stay
// a session failure with backoff. The broker announces the node offline
// through the last will.
func newNode(ctx *cli.Context, deps nodeDeps) (*application.Node, *adapters.MQTTClient, error) {
	cfg := deps.Config
	cfg.ClientID = application.DeriveClientID(ctx.String(FlagMQTTClientPrefix.Name), cfg.Identity.ID)

	log := logger.With().
		Str("module", "node").
		Str("node_id", cfg.Identity.ID).
		Logger()

	topics := application.NewTopics(cfg.BaseTopic, cfg.Identity.ID)
	mqttClient := adapters.NewMQTTClient(adapters.MQTTClientParams{
		ClientID:    cfg.ClientID,
		Username:    ctx.String(FlagMQTTUsername.Name),
		Password:    ctx.String(FlagMQTTPassword.Name),
		MQTTUrl:     ctx.String(FlagMQTTUrl.Name),
		WillTopic:   topics.Status,
		WillPayload: application.OfflineStatusPayload(cfg.Identity.ID),
		Log:         log.With().Str("module", "mqtt-client").Logger(),
	})

	link := adapters.NewNetLink(adapters.NetLinkParams{
		Interface:    deps.Interface,
		ProbeAddress: deps.Target,
		Log:          log.With().Str("module", "link").Logger(),
	})

	node, err := application.NewNode(application.NodeParams{
		Config:     cfg,
		MQTTClient: mqttClient,
		Link:       link,
		Sensor:     adapters.NewSensorSimulator(adapters.SensorSimulatorParams{Profile: deps.Sensor}),
		Indicator:  adapters.NewLogIndicator(log.With().Str("module", "indicator").Logger()),
		Restarter:  deps.Restarter,
		Metrics:    deps.Metrics,
		Console:    deps.Console,
		Log:        log,
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("client_id", cfg.ClientID).
		Str("broker", ctx.String(FlagMQTTUrl.Name)).
		Str("topic", node.Topics().Data).
		Msg("node configured")

	return node, mqttClient, nil
}

// runUntilStopped keeps a node running, recreating it in place after each
// restart request, until ctx is cancelled.
func runUntilStopped(ctx context.Context, create func() (*application.Node, *adapters.MQTTClient, error)) error {
	for {
		node, mqttClient, err := create()
		if err != nil {
			return err
		}

		err = node.Run(ctx)
		mqttClient.Disconnect(250)

		if !errors.Is(err, application.ErrRestartRequested) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
